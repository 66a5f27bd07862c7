package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MaxInstallments = 360

var cent = decimal.New(1, -2)

type InstallmentService struct {
	db *sql.DB
}

func NewInstallmentService(db *sql.DB) *InstallmentService {
	return &InstallmentService{db: db}
}

// SplitInstallments divides total into count monthly rows. Every row gets
// total/count truncated to cents and the last one absorbs the remainder, so
// the rows always sum to total. Due dates keep the day of firstDue, clamped
// to the end of shorter months.
func SplitInstallments(total decimal.Decimal, count int, firstDue time.Time) ([]models.InstallmentPlan, error) {
	if count < 1 || count > MaxInstallments {
		return nil, invalidf("count must be between 1 and %d", MaxInstallments)
	}
	total = total.Round(2)
	if !total.IsPositive() {
		return nil, invalidf("total must be greater than zero")
	}
	if total.LessThan(cent.Mul(decimal.NewFromInt(int64(count)))) {
		return nil, invalidf("total too small for %d installments", count)
	}

	base := total.Div(decimal.NewFromInt(int64(count))).Truncate(2)
	plan := make([]models.InstallmentPlan, count)
	allocated := decimal.Zero
	for i := 0; i < count; i++ {
		amount := base
		if i == count-1 {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		plan[i] = models.InstallmentPlan{
			Number:  i + 1,
			Amount:  amount,
			DueDate: utils.AddMonthsClamped(firstDue, i),
		}
	}
	return plan, nil
}

// EffectiveStatus derives vencido from a pending row past its due date.
func EffectiveStatus(status string, due, today time.Time) string {
	if status == models.InstallmentPendente && utils.DateOnly(due).Before(utils.DateOnly(today)) {
		return models.InstallmentVencido
	}
	return status
}

var agingLabels = []string{"0-30", "31-60", "61-90", "90+"}

// Aging buckets overdue rows by days past due.
func Aging(items []models.Installment, today time.Time) []models.AgingBucket {
	buckets := make([]models.AgingBucket, len(agingLabels))
	for i, label := range agingLabels {
		buckets[i] = models.AgingBucket{Label: label, Amount: decimal.Zero}
	}
	for _, item := range items {
		if EffectiveStatus(item.Status, item.DueDate, today) != models.InstallmentVencido {
			continue
		}
		days := utils.DaysBetween(today, item.DueDate)
		idx := 3
		switch {
		case days <= 30:
			idx = 0
		case days <= 60:
			idx = 1
		case days <= 90:
			idx = 2
		}
		buckets[idx].Count++
		buckets[idx].Amount = buckets[idx].Amount.Add(item.Amount)
	}
	return buckets
}

const installmentSelect = `
	SELECT i.id, i.tenant_id, i.group_id, i.kind, i.description, i.number, i.total_count, i.amount, i.due_date,
	       i.status, i.paid_at, i.contact_id, COALESCE(ct.name, ''), i.category_id, i.bank_account_id,
	       i.transaction_id, i.created_at
	FROM installments i
	LEFT JOIN contacts ct ON ct.id = i.contact_id`

func scanInstallment(row interface{ Scan(...interface{}) error }, today time.Time) (*models.Installment, error) {
	var i models.Installment
	var paidAt sql.NullTime
	var contact, category, account, transaction sql.NullString
	err := row.Scan(&i.ID, &i.TenantID, &i.GroupID, &i.Kind, &i.Description, &i.Number, &i.TotalCount, &i.Amount, &i.DueDate,
		&i.Status, &paidAt, &contact, &i.ContactName, &category, &account, &transaction, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		i.PaidAt = &paidAt.Time
	}
	i.ContactID = stringPtr(contact)
	i.CategoryID = stringPtr(category)
	i.BankAccountID = stringPtr(account)
	i.TransactionID = stringPtr(transaction)
	i.Status = EffectiveStatus(i.Status, i.DueDate, today)
	return &i, nil
}

func (s *InstallmentService) Create(ctx context.Context, tenantID string, req models.InstallmentRequest) ([]models.Installment, error) {
	firstDue, err := utils.ParseDate(req.FirstDueDate, utils.DateLayout)
	if err != nil {
		return nil, invalidf("invalid first_due_date %q", req.FirstDueDate)
	}
	plan, err := SplitInstallments(req.TotalAmount, req.Count, firstDue)
	if err != nil {
		return nil, err
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{
		"contacts": req.ContactID, "categories": req.CategoryID, "bank_accounts": req.BankAccountID,
	}); err != nil {
		return nil, err
	}

	groupID := uuid.New().String()
	description := strings.TrimSpace(req.Description)
	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		for _, p := range plan {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO installments (tenant_id, group_id, kind, description, number, total_count, amount, due_date,
				                          contact_id, category_id, bank_account_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, tenantID, groupID, req.Kind, description, p.Number, req.Count, p.Amount, p.DueDate,
				nullable(req.ContactID), nullable(req.CategoryID), nullable(req.BankAccountID))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	items, _, err := s.List(ctx, tenantID, models.InstallmentFilter{GroupID: groupID}, utils.Today())
	return items, err
}

func (s *InstallmentService) List(ctx context.Context, tenantID string, f models.InstallmentFilter, today time.Time) ([]models.Installment, int64, error) {
	clauses := []string{"i.tenant_id = $1"}
	args := []interface{}{tenantID}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Kind != "" {
		add("i.kind = $%d", f.Kind)
	}
	switch f.Status {
	case "":
	case models.InstallmentVencido:
		add("i.status = 'pendente' AND i.due_date < $%d", today)
	case models.InstallmentPendente:
		add("i.status = 'pendente' AND i.due_date >= $%d", today)
	default:
		add("i.status = $%d", f.Status)
	}
	if f.ContactID != "" {
		add("i.contact_id = $%d", f.ContactID)
	}
	if f.GroupID != "" {
		add("i.group_id = $%d", f.GroupID)
	}
	if f.From != nil {
		add("i.due_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("i.due_date <= $%d", *f.To)
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM installments i`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := installmentSelect + where + " ORDER BY i.due_date, i.number"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []models.Installment{}
	for rows.Next() {
		i, err := scanInstallment(rows, today)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *i)
	}
	return items, total, rows.Err()
}

func (s *InstallmentService) Get(ctx context.Context, tenantID, id string) (*models.Installment, error) {
	i, err := scanInstallment(s.db.QueryRowContext(ctx, installmentSelect+` WHERE i.id = $1 AND i.tenant_id = $2`, id, tenantID), utils.Today())
	if err != nil {
		return nil, dbError(err)
	}
	return i, nil
}

// Pay marks the installment paid and writes the matching ledger entry in the
// same database transaction: both persist or neither does.
func (s *InstallmentService) Pay(ctx context.Context, tenantID, userID, id string, req models.PayInstallmentRequest) (*models.Installment, error) {
	paidAt := utils.Today()
	if req.PaidAt != "" {
		d, err := utils.ParseDate(req.PaidAt, utils.DateLayout)
		if err != nil {
			return nil, invalidf("invalid paid_at %q", req.PaidAt)
		}
		paidAt = d
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, invalidf("amount must be greater than zero")
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"bank_accounts": req.BankAccountID}); err != nil {
		return nil, err
	}

	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var inst models.Installment
		var contact, category, account sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT kind, description, number, total_count, amount, status, contact_id, category_id, bank_account_id
			FROM installments WHERE id = $1 AND tenant_id = $2
			FOR UPDATE
		`, id, tenantID).Scan(&inst.Kind, &inst.Description, &inst.Number, &inst.TotalCount, &inst.Amount,
			&inst.Status, &contact, &category, &account)
		if err != nil {
			return dbError(err)
		}
		if inst.Status != models.InstallmentPendente {
			return conflictf("installment is %s", inst.Status)
		}

		amount := inst.Amount
		if req.Amount != nil {
			amount = req.Amount.Round(2)
		}
		bankAccount := stringPtr(account)
		if req.BankAccountID != nil && *req.BankAccountID != "" {
			bankAccount = req.BankAccountID
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE installments SET status = 'pago', paid_at = $3, bank_account_id = $4, updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2
		`, id, tenantID, paidAt, nullable(bankAccount)); err != nil {
			return err
		}

		var txID string
		err = tx.QueryRowContext(ctx, `
			INSERT INTO transactions (tenant_id, type, description, amount, date, category_id, bank_account_id,
			                          contact_id, status, installment_id, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pago', $9, $10)
			RETURNING id
		`, tenantID, inst.TransactionType(), fmt.Sprintf("%s (%d/%d)", inst.Description, inst.Number, inst.TotalCount),
			amount, paidAt, nullable(stringPtr(category)), nullable(bankAccount), nullable(stringPtr(contact)),
			id, nullString(userID)).Scan(&txID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE installments SET transaction_id = $3 WHERE id = $1 AND tenant_id = $2`, id, tenantID, txID)
		return err
	})
	if err != nil {
		return nil, dbError(err)
	}

	return s.Get(ctx, tenantID, id)
}

// Unpay reverts a paid installment and soft-deletes its ledger entry.
func (s *InstallmentService) Unpay(ctx context.Context, tenantID, id string) (*models.Installment, error) {
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var status string
		var txID sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT status, transaction_id FROM installments WHERE id = $1 AND tenant_id = $2 FOR UPDATE
		`, id, tenantID).Scan(&status, &txID)
		if err != nil {
			return dbError(err)
		}
		if status != models.InstallmentPago {
			return conflictf("installment is not paid")
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE installments SET status = 'pendente', paid_at = NULL, transaction_id = NULL, updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2
		`, id, tenantID); err != nil {
			return err
		}

		if txID.Valid {
			if _, err := tx.ExecContext(ctx, `
				UPDATE transactions SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND tenant_id = $2
			`, txID.String, tenantID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}
	return s.Get(ctx, tenantID, id)
}

func (s *InstallmentService) Cancel(ctx context.Context, tenantID, id string) (*models.Installment, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments SET status = 'cancelado', updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'pendente'
	`, id, tenantID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, tenantID, id); err != nil {
			return nil, err
		}
		return nil, conflictf("only pending installments can be cancelled")
	}
	return s.Get(ctx, tenantID, id)
}

// DeleteGroup removes the pending rows of a group. Paid and cancelled rows stay.
func (s *InstallmentService) DeleteGroup(ctx context.Context, tenantID, groupID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM installments WHERE group_id = $1 AND tenant_id = $2 AND status = 'pendente'
	`, groupID, tenantID)
	if err != nil {
		return 0, dbError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (s *InstallmentService) Aging(ctx context.Context, tenantID, kind string, today time.Time) ([]models.AgingBucket, error) {
	items, _, err := s.List(ctx, tenantID, models.InstallmentFilter{Kind: kind, Status: models.InstallmentVencido}, today)
	if err != nil {
		return nil, err
	}
	return Aging(items, today), nil
}
