package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jbapex/financeiro-api/models"

	"github.com/shopspring/decimal"
)

type BankAccountService struct {
	db *sql.DB
}

func NewBankAccountService(db *sql.DB) *BankAccountService {
	return &BankAccountService{db: db}
}

// balanceExpr is initial_balance plus paid movements that are not deleted.
const balanceExpr = `a.initial_balance + COALESCE((
		SELECT SUM(CASE
			WHEN t.type = 'receita' THEN t.amount
			WHEN t.type = 'despesa' THEN -t.amount
			WHEN t.type = 'transferencia' AND t.transfer_direction = 'entrada' THEN t.amount
			WHEN t.type = 'transferencia' AND t.transfer_direction = 'saida' THEN -t.amount
			ELSE 0 END)
		FROM transactions t
		WHERE t.bank_account_id = a.id AND t.status = 'pago' AND t.deleted_at IS NULL
	), 0)`

const bankAccountSelect = `
	SELECT a.id, a.tenant_id, a.name, COALESCE(a.bank, ''), COALESCE(a.agency, ''), COALESCE(a.number, ''),
	       a.type, a.initial_balance, ` + balanceExpr + `, a.active, a.created_at, a.updated_at
	FROM bank_accounts a`

func scanBankAccount(row interface{ Scan(...interface{}) error }) (*models.BankAccount, error) {
	var a models.BankAccount
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Bank, &a.Agency, &a.Number,
		&a.Type, &a.InitialBalance, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns the accounts with balances and the total over active ones.
func (s *BankAccountService) List(ctx context.Context, tenantID string) (*models.BalanceSummary, error) {
	rows, err := s.db.QueryContext(ctx, bankAccountSelect+` WHERE a.tenant_id = $1 ORDER BY a.active DESC, a.name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &models.BalanceSummary{Total: decimal.Zero, Accounts: []models.BankAccount{}}
	for rows.Next() {
		a, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		if a.Active {
			summary.Total = summary.Total.Add(a.Balance)
		}
		summary.Accounts = append(summary.Accounts, *a)
	}
	return summary, rows.Err()
}

func (s *BankAccountService) Get(ctx context.Context, tenantID, id string) (*models.BankAccount, error) {
	a, err := scanBankAccount(s.db.QueryRowContext(ctx, bankAccountSelect+` WHERE a.id = $1 AND a.tenant_id = $2`, id, tenantID))
	if err != nil {
		return nil, dbError(err)
	}
	return a, nil
}

// TotalBalance sums the balances of active accounts.
func (s *BankAccountService) TotalBalance(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(`+balanceExpr+`), 0) FROM bank_accounts a WHERE a.tenant_id = $1 AND a.active`, tenantID).Scan(&total)
	return total, err
}

func accountType(t string) string {
	if t == "" {
		return "corrente"
	}
	return t
}

func (s *BankAccountService) Create(ctx context.Context, tenantID string, req models.BankAccountRequest) (*models.BankAccount, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bank_accounts (tenant_id, name, bank, agency, number, type, initial_balance, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, tenantID, strings.TrimSpace(req.Name), nullString(req.Bank), nullString(req.Agency), nullString(req.Number),
		accountType(req.Type), req.InitialBalance.Round(2), active).Scan(&id)
	if err != nil {
		return nil, dbError(err)
	}
	return s.Get(ctx, tenantID, id)
}

func (s *BankAccountService) Update(ctx context.Context, tenantID, id string, req models.BankAccountRequest) (*models.BankAccount, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_accounts
		SET name = $3, bank = $4, agency = $5, number = $6, type = $7, initial_balance = $8,
		    active = COALESCE($9, active), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID, strings.TrimSpace(req.Name), nullString(req.Bank), nullString(req.Agency), nullString(req.Number),
		accountType(req.Type), req.InitialBalance.Round(2), req.Active)
	if err != nil {
		return nil, dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, tenantID, id)
}

// Delete removes an account without movements; accounts with history can
// only be deactivated.
func (s *BankAccountService) Delete(ctx context.Context, tenantID, id string) error {
	var used bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE bank_account_id = $1 AND tenant_id = $2 AND deleted_at IS NULL)
	`, id, tenantID).Scan(&used); err != nil {
		return err
	}
	if used {
		return conflictf("account has transactions, deactivate it instead")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return dbError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
