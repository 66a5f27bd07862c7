package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"
)

// SessionTTL is the lifetime of a refresh token.
const SessionTTL = 7 * 24 * time.Hour

var (
	ErrTOTPRequired = errors.New("2FA code required")
	ErrInvalidTOTP  = errors.New("invalid 2FA code")
)

type AuthService struct {
	db          *sql.DB
	jwtSecret   string
	superAdmins map[string]bool
}

func NewAuthService(db *sql.DB, jwtSecret string, superAdminEmails []string) *AuthService {
	admins := map[string]bool{}
	for _, email := range superAdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return &AuthService{db: db, jwtSecret: jwtSecret, superAdmins: admins}
}

func (s *AuthService) IsSuperAdmin(email string) bool {
	return s.superAdmins[strings.ToLower(strings.TrimSpace(email))]
}

const userColumns = `id, tenant_id, email, name, role, super_admin, COALESCE(avatar, ''), password_hash,
	COALESCE(totp_secret, ''), COALESCE(totp_enabled, FALSE), created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.SuperAdmin, &u.Avatar,
		&u.PasswordHash, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, dbError(err)
	}
	return u, nil
}

func (s *AuthService) User(ctx context.Context, userID string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, dbError(err)
	}
	return u, nil
}

// ============================================================================
// SESSIONS
// ============================================================================

func (s *AuthService) issue(ctx context.Context, q querier, u *models.User) (*models.AuthResponse, error) {
	accessToken, err := utils.GenerateAccessToken(s.jwtSecret, utils.Claims{
		UserID:     u.ID,
		TenantID:   u.TenantID,
		Email:      u.Email,
		Role:       u.Role,
		SuperAdmin: u.SuperAdmin,
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO sessions (user_id, refresh_token, expires_at)
		VALUES ($1, $2, $3)
	`, u.ID, refreshToken, time.Now().Add(SessionTTL)); err != nil {
		return nil, err
	}

	tenant, err := loadTenant(ctx, q, u.TenantID)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         *u,
		Tenant:       *tenant,
	}, nil
}

// Signup creates the company on the default plan with its owner, default
// categories and pipeline stages, all or nothing.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	document, err := NormalizeDocument(req.Document)
	if err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var resp *models.AuthResponse
	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return conflictf("email already registered")
		}

		var tenantID string
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO tenants (name, document, plan_code)
			VALUES ($1, $2, $3)
			RETURNING id
		`, strings.TrimSpace(req.CompanyName), nullString(document), models.DefaultPlanCode).Scan(&tenantID); err != nil {
			return dbError(err)
		}

		u, err := scanUser(tx.QueryRowContext(ctx, `
			INSERT INTO users (tenant_id, email, password_hash, name, role, super_admin)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+userColumns,
			tenantID, email, passwordHash, strings.TrimSpace(req.Name), models.RoleOwner, s.IsSuperAdmin(email)))
		if err != nil {
			return dbError(err)
		}

		if err := SeedDefaults(ctx, tx, tenantID); err != nil {
			return err
		}
		if err := SeedStages(ctx, tx, tenantID); err != nil {
			return err
		}

		resp, err = s.issue(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	u, err := s.userByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if !utils.CheckPassword(req.Password, u.PasswordHash) {
		return nil, ErrUnauthorized
	}

	if u.TOTPEnabled {
		if req.TOTPCode == "" {
			return nil, ErrTOTPRequired
		}
		if !utils.VerifyTOTP(u.TOTPSecret, req.TOTPCode) {
			return nil, ErrInvalidTOTP
		}
	}

	// The super-admin list lives in the environment and may change between logins.
	if flag := s.IsSuperAdmin(u.Email); flag != u.SuperAdmin {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET super_admin = $2 WHERE id = $1`, u.ID, flag); err != nil {
			return nil, err
		}
		u.SuperAdmin = flag
	}

	return s.issue(ctx, s.db, u)
}

// Refresh mints a new access token for a live session. The refresh token is rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	var resp *models.AuthResponse
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var userID string
		err := tx.QueryRowContext(ctx, `
			DELETE FROM sessions WHERE refresh_token = $1 AND expires_at > NOW()
			RETURNING user_id
		`, refreshToken).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnauthorized
		}
		if err != nil {
			return err
		}

		u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
		if err != nil {
			return dbError(err)
		}

		resp, err = s.issue(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1 AND refresh_token = $2`, userID, refreshToken)
	return err
}

// CleanupSessions removes expired refresh tokens.
func (s *AuthService) CleanupSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ============================================================================
// PROFILE
// ============================================================================

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, avatar = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, strings.TrimSpace(req.Name), nullString(req.Avatar)))
	if err != nil {
		return nil, dbError(err)
	}
	return u, nil
}

// ChangePassword also ends every other session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	u, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(req.CurrentPassword, u.PasswordHash) {
		return ErrUnauthorized
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
		return err
	})
}

// ============================================================================
// TWO-FACTOR
// ============================================================================

// SetupTOTP stores a fresh secret; 2FA stays off until VerifyTOTP succeeds.
func (s *AuthService) SetupTOTP(ctx context.Context, userID string) (*models.TOTPSetupResponse, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.TOTPEnabled {
		return nil, conflictf("2FA already enabled")
	}

	secret, url, err := utils.GenerateTOTPSecret(u.Email)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = $2, totp_enabled = FALSE, updated_at = NOW() WHERE id = $1
	`, userID, secret); err != nil {
		return nil, err
	}

	return &models.TOTPSetupResponse{Secret: secret, QRCode: url}, nil
}

func (s *AuthService) VerifyTOTP(ctx context.Context, userID, code string) error {
	u, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	if u.TOTPSecret == "" {
		return invalidf("2FA setup not started")
	}
	if !utils.VerifyTOTP(u.TOTPSecret, code) {
		return ErrInvalidTOTP
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

func (s *AuthService) DisableTOTP(ctx context.Context, userID, code string) error {
	u, err := s.User(ctx, userID)
	if err != nil {
		return err
	}
	if !u.TOTPEnabled {
		return invalidf("2FA is not enabled")
	}
	if !utils.VerifyTOTP(u.TOTPSecret, code) {
		return ErrInvalidTOTP
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = NULL, totp_enabled = FALSE, updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}
