package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/sirupsen/logrus"
)

const maxOccurrences = 5000

type RecurringService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewRecurringService(db *sql.DB, log *logrus.Logger) *RecurringService {
	return &RecurringService{db: db, log: log}
}

var frequencyMonths = map[string]int{
	models.FreqMensal:     1,
	models.FreqBimestral:  2,
	models.FreqTrimestral: 3,
	models.FreqSemestral:  6,
	models.FreqAnual:      12,
}

func validFrequency(freq string) bool {
	_, ok := frequencyMonths[freq]
	return ok || freq == models.FreqSemanal
}

// Occurrence returns the k-th date of the schedule. Monthly steps are taken
// from the start date so a 31st keeps coming back after shorter months.
func Occurrence(freq string, start time.Time, k int) time.Time {
	if freq == models.FreqSemanal {
		return utils.DateOnly(start).AddDate(0, 0, 7*k)
	}
	return utils.AddMonthsClamped(start, frequencyMonths[freq]*k)
}

// OccurrencesBetween lists schedule dates within [from, to] and not after
// the template's end date.
func OccurrencesBetween(t models.RecurringTemplate, from, to time.Time) []time.Time {
	out := []time.Time{}
	from, to = utils.DateOnly(from), utils.DateOnly(to)
	for k := 0; k < maxOccurrences; k++ {
		d := Occurrence(t.Frequency, t.StartDate, k)
		if d.After(to) || (t.EndDate != nil && d.After(utils.DateOnly(*t.EndDate))) {
			break
		}
		if !d.Before(from) {
			out = append(out, d)
		}
	}
	return out
}

// FirstOnOrAfter returns the first schedule date >= day; ok is false when the
// schedule has ended by then.
func FirstOnOrAfter(t models.RecurringTemplate, day time.Time) (time.Time, bool) {
	day = utils.DateOnly(day)
	for k := 0; k < maxOccurrences; k++ {
		d := Occurrence(t.Frequency, t.StartDate, k)
		if t.EndDate != nil && d.After(utils.DateOnly(*t.EndDate)) {
			return time.Time{}, false
		}
		if !d.Before(day) {
			return d, true
		}
	}
	return time.Time{}, false
}

// Preview lists the next n dates starting at next_date.
func Preview(t models.RecurringTemplate, n int) []time.Time {
	out := []time.Time{}
	if n <= 0 {
		return out
	}
	day := t.NextDate
	for len(out) < n {
		d, ok := FirstOnOrAfter(t, day)
		if !ok {
			break
		}
		out = append(out, d)
		day = d.AddDate(0, 0, 1)
	}
	return out
}

// ============================================================================
// CRUD
// ============================================================================

const recurringColumns = `id, tenant_id, description, type, amount, category_id, bank_account_id, contact_id,
	frequency, start_date, end_date, next_date, active, auto_pay, created_at, updated_at`

func scanRecurring(row interface{ Scan(...interface{}) error }) (*models.RecurringTemplate, error) {
	var t models.RecurringTemplate
	var category, account, contact sql.NullString
	var end sql.NullTime
	err := row.Scan(&t.ID, &t.TenantID, &t.Description, &t.Type, &t.Amount, &category, &account, &contact,
		&t.Frequency, &t.StartDate, &end, &t.NextDate, &t.Active, &t.AutoPay, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.CategoryID = stringPtr(category)
	t.BankAccountID = stringPtr(account)
	t.ContactID = stringPtr(contact)
	if end.Valid {
		t.EndDate = &end.Time
	}
	return &t, nil
}

func (s *RecurringService) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.RecurringTemplate, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_templates WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY next_date, description`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RecurringTemplate{}
	for rows.Next() {
		t, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *RecurringService) Get(ctx context.Context, tenantID, id string) (*models.RecurringTemplate, error) {
	t, err := scanRecurring(s.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_templates WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, dbError(err)
	}
	return t, nil
}

// templateFromRequest validates the request and computes next_date as the
// first schedule date on or after today.
func templateFromRequest(req models.RecurringRequest, today time.Time) (*models.RecurringTemplate, error) {
	if !req.Amount.IsPositive() {
		return nil, invalidf("amount must be greater than zero")
	}
	if !validFrequency(req.Frequency) {
		return nil, invalidf("invalid frequency %q", req.Frequency)
	}
	start, err := utils.ParseDate(req.StartDate, utils.DateLayout)
	if err != nil {
		return nil, invalidf("invalid start_date %q", req.StartDate)
	}

	t := &models.RecurringTemplate{
		Description:   strings.TrimSpace(req.Description),
		Type:          req.Type,
		Amount:        req.Amount.Round(2),
		CategoryID:    req.CategoryID,
		BankAccountID: req.BankAccountID,
		ContactID:     req.ContactID,
		Frequency:     req.Frequency,
		StartDate:     start,
		Active:        true,
		AutoPay:       req.AutoPay,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	if req.EndDate != "" {
		end, err := utils.ParseDate(req.EndDate, utils.DateLayout)
		if err != nil {
			return nil, invalidf("invalid end_date %q", req.EndDate)
		}
		if end.Before(start) {
			return nil, invalidf("end_date before start_date")
		}
		t.EndDate = &end
	}

	next, ok := FirstOnOrAfter(*t, today)
	if !ok {
		next = start
		t.Active = false
	}
	t.NextDate = next
	return t, nil
}

func (s *RecurringService) Create(ctx context.Context, tenantID string, req models.RecurringRequest) (*models.RecurringTemplate, error) {
	t, err := templateFromRequest(req, utils.Today())
	if err != nil {
		return nil, err
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{
		"categories": t.CategoryID, "bank_accounts": t.BankAccountID, "contacts": t.ContactID,
	}); err != nil {
		return nil, err
	}

	created, err := scanRecurring(s.db.QueryRowContext(ctx, `
		INSERT INTO recurring_templates (tenant_id, description, type, amount, category_id, bank_account_id, contact_id,
		                                 frequency, start_date, end_date, next_date, active, auto_pay)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+recurringColumns,
		tenantID, t.Description, t.Type, t.Amount, nullable(t.CategoryID), nullable(t.BankAccountID), nullable(t.ContactID),
		t.Frequency, t.StartDate, t.EndDate, t.NextDate, t.Active, t.AutoPay))
	if err != nil {
		return nil, dbError(err)
	}
	return created, nil
}

func (s *RecurringService) Update(ctx context.Context, tenantID, id string, req models.RecurringRequest) (*models.RecurringTemplate, error) {
	t, err := templateFromRequest(req, utils.Today())
	if err != nil {
		return nil, err
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{
		"categories": t.CategoryID, "bank_accounts": t.BankAccountID, "contacts": t.ContactID,
	}); err != nil {
		return nil, err
	}

	updated, err := scanRecurring(s.db.QueryRowContext(ctx, `
		UPDATE recurring_templates
		SET description = $3, type = $4, amount = $5, category_id = $6, bank_account_id = $7, contact_id = $8,
		    frequency = $9, start_date = $10, end_date = $11, next_date = $12, active = $13, auto_pay = $14,
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+recurringColumns,
		id, tenantID, t.Description, t.Type, t.Amount, nullable(t.CategoryID), nullable(t.BankAccountID), nullable(t.ContactID),
		t.Frequency, t.StartDate, t.EndDate, t.NextDate, t.Active, t.AutoPay))
	if err != nil {
		return nil, dbError(err)
	}
	return updated, nil
}

// Delete removes the template. Generated entries keep existing with
// recurring_id set to NULL.
func (s *RecurringService) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// GENERATION
// ============================================================================

// Generate creates the entries due up to today for one tenant, or for every
// active tenant when tenantID is empty. The (recurring_id, date) unique index
// keeps reruns from duplicating entries.
func (s *RecurringService) Generate(ctx context.Context, tenantID string, today time.Time) (*models.GenerateResult, error) {
	query := `SELECT ` + prefixColumns("r", recurringColumns) + `
		FROM recurring_templates r
		JOIN tenants tn ON tn.id = r.tenant_id AND tn.status = 'ativo'
		WHERE r.active AND r.next_date <= $1`
	args := []interface{}{today}
	if tenantID != "" {
		query += ` AND r.tenant_id = $2`
		args = append(args, tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	templates := []models.RecurringTemplate{}
	for rows.Next() {
		t, err := scanRecurring(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		templates = append(templates, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &models.GenerateResult{Templates: len(templates)}
	for _, t := range templates {
		n, err := s.generateTemplate(ctx, t, today)
		if err != nil {
			if s.log != nil {
				s.log.WithError(err).WithField("recurring_id", t.ID).Error("recurring generation failed")
			}
			continue
		}
		result.Generated += n
	}
	return result, nil
}

func (s *RecurringService) generateTemplate(ctx context.Context, t models.RecurringTemplate, today time.Time) (int, error) {
	dates := OccurrencesBetween(t, t.NextDate, today)
	status := models.StatusPendente
	if t.AutoPay {
		status = models.StatusPago
	}

	generated := 0
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		for _, d := range dates {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (tenant_id, type, description, amount, date, category_id, bank_account_id,
				                          contact_id, status, recurring_id, tags)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '{recorrente}')
				ON CONFLICT (recurring_id, date) WHERE recurring_id IS NOT NULL AND deleted_at IS NULL DO NOTHING
			`, t.TenantID, t.Type, t.Description, t.Amount, d, nullable(t.CategoryID), nullable(t.BankAccountID),
				nullable(t.ContactID), status, t.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				generated++
			}
		}

		next, ok := FirstOnOrAfter(t, today.AddDate(0, 0, 1))
		if !ok {
			_, err := tx.ExecContext(ctx, `UPDATE recurring_templates SET active = FALSE, updated_at = NOW() WHERE id = $1`, t.ID)
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE recurring_templates SET next_date = $2, updated_at = NOW() WHERE id = $1`, t.ID, next)
		return err
	})
	return generated, err
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
