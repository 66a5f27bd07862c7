package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/shopspring/decimal"
)

type ContactService struct {
	db *sql.DB
}

func NewContactService(db *sql.DB) *ContactService {
	return &ContactService{db: db}
}

const contactColumns = `id, tenant_id, kind, name, COALESCE(document, ''), COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(notes, ''), stage_id, position, deal_value, created_at, updated_at`

func scanContact(row interface{ Scan(...interface{}) error }) (*models.Contact, error) {
	var c models.Contact
	var stage sql.NullString
	err := row.Scan(&c.ID, &c.TenantID, &c.Kind, &c.Name, &c.Document, &c.Email, &c.Phone,
		&c.Notes, &stage, &c.Position, &c.DealValue, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.StageID = stringPtr(stage)
	return &c, nil
}

// NormalizeDocument keeps only the digits of a CPF/CNPJ and checks its length.
func NormalizeDocument(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch len(digits) {
	case 0, 11, 14:
		return digits, nil
	}
	return "", invalidf("document must be a CPF (11 digits) or CNPJ (14 digits)")
}

func (s *ContactService) List(ctx context.Context, tenantID, kind, search string, limit, offset int) ([]models.Contact, int64, error) {
	where := ` WHERE tenant_id = $1 AND deleted_at IS NULL`
	args := []interface{}{tenantID}
	if kind != "" {
		args = append(args, kind)
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR document ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + contactColumns + ` FROM contacts` + where + ` ORDER BY name`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, total, rows.Err()
}

func (s *ContactService) Get(ctx context.Context, tenantID, id string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	c, err := scanContact(row)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

func (s *ContactService) Create(ctx context.Context, tenantID string, req models.ContactRequest) (*models.Contact, error) {
	document, err := NormalizeDocument(req.Document)
	if err != nil {
		return nil, err
	}
	if req.DealValue.IsNegative() {
		return nil, invalidf("deal value cannot be negative")
	}
	stageID := req.StageID
	if req.Kind != models.ContactCliente {
		stageID = nil
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"pipeline_stages": stageID}); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (tenant_id, kind, name, document, email, phone, notes, stage_id, position, deal_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::uuid,
		        COALESCE((SELECT MAX(position) + 1 FROM contacts WHERE stage_id = $8::uuid AND deleted_at IS NULL), 0), $9)
		RETURNING `+contactColumns,
		tenantID, req.Kind, strings.TrimSpace(req.Name), nullString(document), nullString(strings.ToLower(req.Email)),
		nullString(req.Phone), nullString(req.Notes), nullable(stageID), req.DealValue.Round(2))
	c, err := scanContact(row)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

// Update edits the contact fields. Stage changes go through the pipeline move.
func (s *ContactService) Update(ctx context.Context, tenantID, id string, req models.ContactRequest) (*models.Contact, error) {
	document, err := NormalizeDocument(req.Document)
	if err != nil {
		return nil, err
	}
	if req.DealValue.IsNegative() {
		return nil, invalidf("deal value cannot be negative")
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE contacts
		SET kind = $3, name = $4, document = $5, email = $6, phone = $7, notes = $8, deal_value = $9, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING `+contactColumns,
		id, tenantID, req.Kind, strings.TrimSpace(req.Name), nullString(document), nullString(strings.ToLower(req.Email)),
		nullString(req.Phone), nullString(req.Notes), req.DealValue.Round(2))
	c, err := scanContact(row)
	if err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

// Delete is a soft delete. Ledger entries and installments keep their
// contact_id so history stays intact.
func (s *ContactService) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET deleted_at = NOW(), stage_id = NULL, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// History lists the contact's ledger entries and installments.
func (s *ContactService) History(ctx context.Context, tenantID, id string, installments *InstallmentService) (*models.ContactHistory, error) {
	contact, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, transactionSelect+`
		WHERE t.tenant_id = $1 AND t.contact_id = $2 AND t.deleted_at IS NULL
		ORDER BY t.date DESC`, tenantID, id)
	if err != nil {
		return nil, err
	}
	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}

	items, _, err := installments.List(ctx, tenantID, models.InstallmentFilter{ContactID: id}, utils.Today())
	if err != nil {
		return nil, err
	}

	history := &models.ContactHistory{
		Contact:      *contact,
		Transactions: txs,
		Installments: items,
		TotalPaid:    decimal.Zero,
		TotalOpen:    decimal.Zero,
	}
	for _, t := range txs {
		if t.Status == models.StatusPago {
			history.TotalPaid = history.TotalPaid.Add(t.Amount)
		}
	}
	for _, i := range items {
		if i.Status == models.InstallmentPendente || i.Status == models.InstallmentVencido {
			history.TotalOpen = history.TotalOpen.Add(i.Amount)
		}
	}
	return history, nil
}
