package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// InvoiceDueDay is the day of the billed month on which invoices fall due.
const InvoiceDueDay = 10

type AdminService struct {
	db *sql.DB
}

func NewAdminService(db *sql.DB) *AdminService {
	return &AdminService{db: db}
}

// ============================================================================
// MODULE RESOLUTION
// ============================================================================

// EffectiveModules is the plan's modules plus the tenant's enabled overrides
// minus its disabled overrides, in catalogue order.
func EffectiveModules(plan, enabled, disabled []string) []string {
	set := map[string]bool{}
	for _, m := range plan {
		set[m] = true
	}
	for _, m := range enabled {
		set[m] = true
	}
	for _, m := range disabled {
		delete(set, m)
	}

	out := []string{}
	for _, m := range models.AllModules {
		if set[m] {
			out = append(out, m)
		}
	}
	return out
}

func validModules(modules []string) error {
	known := map[string]bool{}
	for _, m := range models.AllModules {
		known[m] = true
	}
	for _, m := range modules {
		if !known[m] {
			return invalidf("unknown module %q", m)
		}
	}
	return nil
}

func dedupe(values []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// TENANTS
// ============================================================================

const tenantSelect = `
	SELECT t.id, t.name, COALESCE(t.document, ''), t.plan_code, p.name, p.monthly_price, t.status,
		t.modules_enabled, t.modules_disabled, p.modules,
		(SELECT COUNT(*) FROM users u WHERE u.tenant_id = t.id),
		t.created_at, t.updated_at
	FROM tenants t
	JOIN plans p ON p.code = t.plan_code`

func scanTenant(row interface{ Scan(...interface{}) error }) (*models.Tenant, error) {
	var t models.Tenant
	var planModules []string
	if err := row.Scan(&t.ID, &t.Name, &t.Document, &t.PlanCode, &t.PlanName, &t.PlanPrice, &t.Status,
		pq.Array(&t.ModulesEnabled), pq.Array(&t.ModulesDisabled), pq.Array(&planModules),
		&t.UserCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if t.ModulesEnabled == nil {
		t.ModulesEnabled = []string{}
	}
	if t.ModulesDisabled == nil {
		t.ModulesDisabled = []string{}
	}
	t.Modules = EffectiveModules(planModules, t.ModulesEnabled, t.ModulesDisabled)
	return &t, nil
}

func loadTenant(ctx context.Context, q querier, tenantID string) (*models.Tenant, error) {
	t, err := scanTenant(q.QueryRowContext(ctx, tenantSelect+` WHERE t.id = $1`, tenantID))
	if err != nil {
		return nil, dbError(err)
	}
	return t, nil
}

// TenantAccess is what the request guards need: status and effective modules.
func (s *AdminService) TenantAccess(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return loadTenant(ctx, s.db, tenantID)
}

// MemberRole returns the user's stored role, or "" once the user was removed
// from the tenant.
func (s *AdminService) MemberRole(ctx context.Context, tenantID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1 AND tenant_id = $2`, userID, tenantID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

func (s *AdminService) ListTenants(ctx context.Context, status, search string) ([]models.Tenant, error) {
	query := tenantSelect + ` WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (t.name ILIKE $%d OR t.document ILIKE $%d)", len(args), len(args))
	}
	query += ` ORDER BY t.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := []models.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

func (s *AdminService) SetTenantPlan(ctx context.Context, tenantID, planCode string) (*models.Tenant, error) {
	var active bool
	if err := s.db.QueryRowContext(ctx, `SELECT active FROM plans WHERE code = $1`, planCode).Scan(&active); err != nil {
		if err == sql.ErrNoRows {
			return nil, invalidf("unknown plan %q", planCode)
		}
		return nil, err
	}
	if !active {
		return nil, invalidf("plan %q is inactive", planCode)
	}
	if err := s.touchTenant(ctx, `plan_code = $2`, tenantID, planCode); err != nil {
		return nil, err
	}
	return loadTenant(ctx, s.db, tenantID)
}

func (s *AdminService) SetTenantModules(ctx context.Context, tenantID string, req models.TenantModulesRequest) (*models.Tenant, error) {
	enabled, disabled := dedupe(req.Enabled), dedupe(req.Disabled)
	if err := validModules(append(append([]string{}, enabled...), disabled...)); err != nil {
		return nil, err
	}
	for _, m := range enabled {
		for _, d := range disabled {
			if m == d {
				return nil, invalidf("module %q cannot be both enabled and disabled", m)
			}
		}
	}
	if err := s.touchTenant(ctx, `modules_enabled = $2, modules_disabled = $3`, tenantID, pq.Array(enabled), pq.Array(disabled)); err != nil {
		return nil, err
	}
	return loadTenant(ctx, s.db, tenantID)
}

func (s *AdminService) SetTenantStatus(ctx context.Context, tenantID, status string) (*models.Tenant, error) {
	if status != models.TenantActive && status != models.TenantSuspended {
		return nil, invalidf("status must be %s or %s", models.TenantActive, models.TenantSuspended)
	}
	if err := s.touchTenant(ctx, `status = $2`, tenantID, status); err != nil {
		return nil, err
	}
	return loadTenant(ctx, s.db, tenantID)
}

func (s *AdminService) touchTenant(ctx context.Context, set string, tenantID string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tenants SET `+set+`, updated_at = NOW() WHERE id = $1`,
		append([]interface{}{tenantID}, args...)...)
	if err != nil {
		return dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// PLANS
// ============================================================================

const planColumns = `id, code, name, monthly_price, max_users, modules, active, created_at, updated_at`

func scanPlan(row interface{ Scan(...interface{}) error }) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.MonthlyPrice, &p.MaxUsers, pq.Array(&p.Modules),
		&p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Modules == nil {
		p.Modules = []string{}
	}
	return &p, nil
}

func (s *AdminService) ListPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY monthly_price, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func validatePlan(req models.PlanRequest) ([]string, error) {
	if req.MonthlyPrice.IsNegative() {
		return nil, invalidf("monthly_price cannot be negative")
	}
	modules := dedupe(req.Modules)
	if err := validModules(modules); err != nil {
		return nil, err
	}
	return modules, nil
}

func (s *AdminService) CreatePlan(ctx context.Context, req models.PlanRequest) (*models.Plan, error) {
	modules, err := validatePlan(req)
	if err != nil {
		return nil, err
	}
	active := req.Active == nil || *req.Active
	p, err := scanPlan(s.db.QueryRowContext(ctx, `
		INSERT INTO plans (code, name, monthly_price, max_users, modules, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+planColumns,
		strings.ToLower(strings.TrimSpace(req.Code)), req.Name, req.MonthlyPrice.Round(2), req.MaxUsers, pq.Array(modules), active))
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

func (s *AdminService) UpdatePlan(ctx context.Context, id string, req models.PlanRequest) (*models.Plan, error) {
	modules, err := validatePlan(req)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(s.db.QueryRowContext(ctx, `
		UPDATE plans
		SET code = $2, name = $3, monthly_price = $4, max_users = $5, modules = $6,
			active = COALESCE($7, active), updated_at = NOW()
		WHERE id = $1
		RETURNING `+planColumns,
		id, strings.ToLower(strings.TrimSpace(req.Code)), req.Name, req.MonthlyPrice.Round(2), req.MaxUsers, pq.Array(modules), req.Active))
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

// DeletePlan refuses plans that still have tenants.
func (s *AdminService) DeletePlan(ctx context.Context, id string) error {
	var inUse bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tenants t JOIN plans p ON p.code = t.plan_code WHERE p.id = $1)
	`, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		return conflictf("plan has tenants")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// BILLING
// ============================================================================

// GenerateInvoices bills every active tenant at its plan price. Re-running
// for the same month does not duplicate invoices.
func (s *AdminService) GenerateInvoices(ctx context.Context, month string) (int64, error) {
	start, err := utils.ParseMonth(month)
	if err != nil {
		return 0, invalidf("month must be YYYY-MM")
	}
	month = utils.MonthKey(start)
	due := start.AddDate(0, 0, InvoiceDueDay-1)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (tenant_id, month, plan_code, amount, due_date)
		SELECT t.id, $1, t.plan_code, p.monthly_price, $2
		FROM tenants t
		JOIN plans p ON p.code = t.plan_code
		WHERE t.status = $3 AND p.monthly_price > 0
		ON CONFLICT (tenant_id, month) DO NOTHING
	`, month, due, models.TenantActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const invoiceSelect = `
	SELECT i.id, i.tenant_id, t.name, i.month, i.plan_code, i.amount, i.status, i.due_date, i.paid_at, i.created_at
	FROM invoices i
	JOIN tenants t ON t.id = i.tenant_id`

func scanInvoice(row interface{ Scan(...interface{}) error }) (*models.Invoice, error) {
	var inv models.Invoice
	var paidAt sql.NullTime
	if err := row.Scan(&inv.ID, &inv.TenantID, &inv.TenantName, &inv.Month, &inv.PlanCode, &inv.Amount,
		&inv.Status, &inv.DueDate, &paidAt, &inv.CreatedAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return &inv, nil
}

func (s *AdminService) ListInvoices(ctx context.Context, month, status string) ([]models.Invoice, error) {
	query := invoiceSelect + ` WHERE 1=1`
	args := []interface{}{}
	if month != "" {
		args = append(args, month)
		query += fmt.Sprintf(" AND i.month = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND i.status = $%d", len(args))
	}
	query += ` ORDER BY i.month DESC, t.name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// setInvoiceStatus only moves open invoices.
func (s *AdminService) setInvoiceStatus(ctx context.Context, id, status string) (*models.Invoice, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2, paid_at = CASE WHEN $2 = 'paga' THEN NOW() ELSE NULL END
		WHERE id = $1 AND status = 'aberta'
	`, id, status)
	if err != nil {
		return nil, err
	}
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, invoiceSelect+` WHERE i.id = $1`, id))
	if err != nil {
		return nil, dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, conflictf("invoice is %s", inv.Status)
	}
	return inv, nil
}

func (s *AdminService) PayInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.setInvoiceStatus(ctx, id, models.InvoicePaid)
}

func (s *AdminService) CancelInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.setInvoiceStatus(ctx, id, models.InvoiceCanceled)
}

// ============================================================================
// METRICS
// ============================================================================

func (s *AdminService) Metrics(ctx context.Context) (*models.AdminMetrics, error) {
	m := &models.AdminMetrics{TenantsByStatus: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tenants GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		m.TenantsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.monthly_price), 0)
		FROM tenants t JOIN plans p ON p.code = t.plan_code
		WHERE t.status = $1
	`, models.TenantActive).Scan(&m.MRR); err != nil {
		return nil, err
	}

	var open decimal.Decimal
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM invoices WHERE status = $1
	`, models.InvoiceOpen).Scan(&m.OpenInvoices, &open); err != nil {
		return nil, err
	}
	m.OpenAmount = open
	return m, nil
}
