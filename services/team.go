package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	InvitationTTL = 7 * 24 * time.Hour

	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRevoked  = "revoked"
	InvitationExpired  = "expired"
)

type TeamService struct {
	db    *sql.DB
	auth  *AuthService
	email *EmailService
	log   *logrus.Logger
}

func NewTeamService(db *sql.DB, auth *AuthService, email *EmailService, log *logrus.Logger) *TeamService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TeamService{db: db, auth: auth, email: email, log: log}
}

// InviteResult carries the invitation plus the link when the e-mail could not be sent.
type InviteResult struct {
	Invitation *models.Invitation `json:"invitation"`
	EmailSent  bool               `json:"email_sent"`
	Link       string             `json:"link,omitempty"`
}

// seatsLeft counts members and live invitations against the plan's max_users.
func seatsLeft(ctx context.Context, q querier, tenantID string) (int, error) {
	var maxUsers, used int
	err := q.QueryRowContext(ctx, `
		SELECT p.max_users,
			(SELECT COUNT(*) FROM users u WHERE u.tenant_id = t.id) +
			(SELECT COUNT(*) FROM invitations i WHERE i.tenant_id = t.id AND i.status = 'pending' AND i.expires_at > NOW())
		FROM tenants t JOIN plans p ON p.code = t.plan_code
		WHERE t.id = $1
	`, tenantID).Scan(&maxUsers, &used)
	if err != nil {
		return 0, dbError(err)
	}
	return maxUsers - used, nil
}

func (s *TeamService) Invite(ctx context.Context, tenantID, inviterID string, req models.InvitationRequest) (*InviteResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := req.Role
	if role == "" {
		role = models.RoleMember
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictf("user already registered")
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM invitations
			WHERE tenant_id = $1 AND email = $2 AND status = 'pending' AND expires_at > NOW()
		)
	`, tenantID, email).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictf("invitation already sent")
	}

	left, err := seatsLeft(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if left <= 0 {
		return nil, conflictf("plan user limit reached")
	}

	inv := &models.Invitation{
		TenantID:  tenantID,
		Email:     email,
		Role:      role,
		InvitedBy: inviterID,
		Token:     uuid.New().String(),
		Status:    InvitationPending,
		ExpiresAt: time.Now().Add(InvitationTTL),
	}
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO invitations (tenant_id, email, role, invited_by, token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, tenantID, email, role, inviterID, inv.Token, inv.ExpiresAt).Scan(&inv.ID, &inv.CreatedAt); err != nil {
		return nil, dbError(err)
	}

	var inviterName, companyName string
	if err := s.db.QueryRowContext(ctx, `
		SELECT u.name, t.name FROM users u JOIN tenants t ON t.id = u.tenant_id WHERE u.id = $1
	`, inviterID).Scan(&inviterName, &companyName); err != nil {
		inviterName, companyName = "Um usuário", "sua empresa"
	}

	result := &InviteResult{Invitation: inv}
	if err := s.email.SendInvitation(ctx, email, inviterName, companyName, inv.Token); err != nil {
		s.log.WithError(err).WithField("invitation_id", inv.ID).Warn("invitation e-mail not sent")
		result.Link = s.email.InvitationURL(inv.Token)
		return result, nil
	}
	result.EmailSent = true
	return result, nil
}

func (s *TeamService) ListInvitations(ctx context.Context, tenantID string) ([]models.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, email, role, COALESCE(invited_by::text, ''),
			CASE WHEN status = 'pending' AND expires_at <= NOW() THEN 'expired' ELSE status END,
			expires_at, created_at
		FROM invitations
		WHERE tenant_id = $1 AND status IN ('pending', 'expired')
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := []models.Invitation{}
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Status,
			&inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (s *TeamService) RevokeInvitation(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'pending'
	`, id, tenantID, InvitationRevoked)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Accept creates the invited user inside the inviting tenant and signs them in.
func (s *TeamService) Accept(ctx context.Context, req models.AcceptInvitationRequest) (*models.AuthResponse, error) {
	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var resp *models.AuthResponse
	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var inv models.Invitation
		err := tx.QueryRowContext(ctx, `
			SELECT id, tenant_id, email, role FROM invitations
			WHERE token = $1 AND status = 'pending' AND expires_at > NOW()
			FOR UPDATE
		`, req.Token).Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.Role)
		if errors.Is(err, sql.ErrNoRows) {
			return invalidf("invitation is invalid or expired")
		}
		if err != nil {
			return err
		}

		u, err := scanUser(tx.QueryRowContext(ctx, `
			INSERT INTO users (tenant_id, email, password_hash, name, role, super_admin)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+userColumns,
			inv.TenantID, inv.Email, passwordHash, strings.TrimSpace(req.Name), inv.Role, s.auth.IsSuperAdmin(inv.Email)))
		if err != nil {
			return dbError(err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE invitations SET status = $2, updated_at = NOW() WHERE id = $1
		`, inv.ID, InvitationAccepted); err != nil {
			return err
		}

		resp, err = s.auth.issue(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CleanupExpired flags pending invitations past their expiry.
func (s *TeamService) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET status = $1, updated_at = NOW()
		WHERE status = 'pending' AND expires_at <= NOW()
	`, InvitationExpired)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ============================================================================
// MEMBERS
// ============================================================================

func (s *TeamService) Members(ctx context.Context, tenantID string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *TeamService) UpdateRole(ctx context.Context, tenantID, userID, role string) error {
	if role == models.RoleOwner {
		return invalidf("ownership cannot be assigned")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET role = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND role <> 'owner'
	`, userID, tenantID, role)
	if err != nil {
		return dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveMember never removes the owner.
func (s *TeamService) RemoveMember(ctx context.Context, tenantID, actorID, userID string) error {
	if actorID == userID {
		return invalidf("you cannot remove yourself")
	}

	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1 AND tenant_id = $2`, userID, tenantID).Scan(&role)
	if err != nil {
		return dbError(err)
	}
	if role == models.RoleOwner {
		return ErrForbidden
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND tenant_id = $2`, userID, tenantID)
	return err
}
