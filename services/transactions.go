package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type TransactionService struct {
	db          *sql.DB
	categories  *CategoryService
	categorizer *CategorizerService
}

func NewTransactionService(db *sql.DB, categories *CategoryService, categorizer *CategorizerService) *TransactionService {
	return &TransactionService{db: db, categories: categories, categorizer: categorizer}
}

const transactionSelect = `
	SELECT t.id, t.tenant_id, t.type, t.description, t.amount, t.date,
	       t.category_id, COALESCE(c.name, ''), t.bank_account_id, t.contact_id, COALESCE(ct.name, ''),
	       t.status, COALESCE(t.payment_method, ''), COALESCE(t.notes, ''), t.tags,
	       t.installment_id, t.recurring_id, t.transfer_group, COALESCE(t.transfer_direction, ''), t.reconciled, t.created_by,
	       t.created_at, t.updated_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN contacts ct ON ct.id = t.contact_id`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*models.Transaction, error) {
	var t models.Transaction
	var category, account, contact, installment, recurring, transfer, createdBy sql.NullString
	err := row.Scan(
		&t.ID, &t.TenantID, &t.Type, &t.Description, &t.Amount, &t.Date,
		&category, &t.CategoryName, &account, &contact, &t.ContactName,
		&t.Status, &t.PaymentMethod, &t.Notes, pq.Array(&t.Tags),
		&installment, &recurring, &transfer, &t.Direction, &t.Reconciled, &createdBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.CategoryID = stringPtr(category)
	t.BankAccountID = stringPtr(account)
	t.ContactID = stringPtr(contact)
	t.InstallmentID = stringPtr(installment)
	t.RecurringID = stringPtr(recurring)
	t.TransferGroup = stringPtr(transfer)
	t.CreatedBy = stringPtr(createdBy)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// BuildTransactionWhere renders the WHERE clause shared by list, summary and export.
func BuildTransactionWhere(tenantID string, f models.TransactionFilter) (string, []interface{}) {
	clauses := []string{"t.tenant_id = $1", "t.deleted_at IS NULL"}
	args := []interface{}{tenantID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.From != nil {
		add("t.date >= $%d", *f.From)
	}
	if f.To != nil {
		add("t.date <= $%d", *f.To)
	}
	if f.Type != "" {
		add("t.type = $%d", f.Type)
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.CategoryID != "" {
		add("t.category_id = $%d", f.CategoryID)
	}
	if f.BankAccountID != "" {
		add("t.bank_account_id = $%d", f.BankAccountID)
	}
	if f.ContactID != "" {
		add("t.contact_id = $%d", f.ContactID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("t.description ILIKE $%d", "%"+s+"%")
	}
	if f.Tag != "" {
		add("$%d = ANY(t.tags)", f.Tag)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *TransactionService) List(ctx context.Context, tenantID string, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	where, args := BuildTransactionWhere(tenantID, f)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := transactionSelect + where + " ORDER BY t.date DESC, t.created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	txs, err := collectTransactions(rows)
	return txs, total, err
}

func (s *TransactionService) Get(ctx context.Context, tenantID, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = $1 AND t.tenant_id = $2 AND t.deleted_at IS NULL`, id, tenantID)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, dbError(err)
	}
	return t, nil
}

// ensureOwned checks that optional references point at rows of the tenant.
func ensureOwned(ctx context.Context, q querier, tenantID string, refs map[string]*string) error {
	for table, id := range refs {
		if id == nil || *id == "" {
			continue
		}
		var ok bool
		err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1 AND tenant_id = $2)`,
			*id, tenantID).Scan(&ok)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return invalidf("%s %s not found", singular(table), *id)
		}
	}
	return nil
}

func singular(table string) string {
	if strings.HasSuffix(table, "ies") {
		return strings.TrimSuffix(table, "ies") + "y"
	}
	return strings.TrimSuffix(table, "s")
}

func validateTransaction(req models.TransactionRequest) (time.Time, error) {
	if !req.Amount.IsPositive() {
		return time.Time{}, invalidf("amount must be greater than zero")
	}
	if strings.TrimSpace(req.Description) == "" {
		return time.Time{}, invalidf("description is required")
	}
	date, err := utils.ParseDate(req.Date, utils.DateLayout)
	if err != nil {
		return time.Time{}, invalidf("invalid date %q", req.Date)
	}
	return date, nil
}

func statusOrDefault(status string) string {
	if status == "" {
		return models.StatusPago
	}
	return status
}

func cleanTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

func (s *TransactionService) Create(ctx context.Context, tenantID, userID string, req models.TransactionRequest) (*models.Transaction, error) {
	date, err := validateTransaction(req)
	if err != nil {
		return nil, err
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{
		"categories": req.CategoryID, "bank_accounts": req.BankAccountID, "contacts": req.ContactID,
	}); err != nil {
		return nil, err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO transactions (tenant_id, type, description, amount, date, category_id, bank_account_id,
		                          contact_id, status, payment_method, notes, tags, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, tenantID, req.Type, strings.TrimSpace(req.Description), req.Amount.Round(2), date,
		nullable(req.CategoryID), nullable(req.BankAccountID), nullable(req.ContactID),
		statusOrDefault(req.Status), nullString(req.PaymentMethod), nullString(req.Notes),
		pq.Array(cleanTags(req.Tags)), nullString(userID)).Scan(&id)
	if err != nil {
		return nil, dbError(err)
	}

	return s.Get(ctx, tenantID, id)
}

func (s *TransactionService) Update(ctx context.Context, tenantID, id string, req models.TransactionRequest) (*models.Transaction, error) {
	date, err := validateTransaction(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Type == models.TypeTransferencia {
		return nil, invalidf("transfers cannot be edited, delete and create again")
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{
		"categories": req.CategoryID, "bank_accounts": req.BankAccountID, "contacts": req.ContactID,
	}); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = $3, description = $4, amount = $5, date = $6, category_id = $7, bank_account_id = $8,
		    contact_id = $9, status = $10, payment_method = $11, notes = $12, tags = $13, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID, req.Type, strings.TrimSpace(req.Description), req.Amount.Round(2), date,
		nullable(req.CategoryID), nullable(req.BankAccountID), nullable(req.ContactID),
		statusOrDefault(req.Status), nullString(req.PaymentMethod), nullString(req.Notes),
		pq.Array(cleanTags(req.Tags)))
	if err != nil {
		return nil, dbError(err)
	}

	return s.Get(ctx, tenantID, id)
}

// Delete soft-deletes the entry. Both legs of a transfer go together, and a
// linked installment returns to pendente.
func (s *TransactionService) Delete(ctx context.Context, tenantID, id string) error {
	existing, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if existing.TransferGroup != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE statement_lines SET status = 'pendente', transaction_id = NULL
				WHERE tenant_id = $2 AND transaction_id IN (
					SELECT id FROM transactions WHERE transfer_group = $1 AND tenant_id = $2)
			`, *existing.TransferGroup, tenantID); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `
				UPDATE transactions SET deleted_at = NOW(), updated_at = NOW()
				WHERE transfer_group = $1 AND tenant_id = $2 AND deleted_at IS NULL
			`, *existing.TransferGroup, tenantID)
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET deleted_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2
		`, id, tenantID); err != nil {
			return err
		}

		if existing.InstallmentID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE installments SET status = 'pendente', paid_at = NULL, transaction_id = NULL, updated_at = NOW()
				WHERE id = $1 AND tenant_id = $2
			`, *existing.InstallmentID, tenantID); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE statement_lines SET status = 'pendente', transaction_id = NULL
			WHERE transaction_id = $1 AND tenant_id = $2
		`, id, tenantID)
		return err
	})
}

// Summary totals receitas and despesas for the filter. Transfers are neutral.
func (s *TransactionService) Summary(ctx context.Context, tenantID string, f models.TransactionFilter) (*models.TransactionSummary, error) {
	where, args := BuildTransactionWhere(tenantID, f)

	var summary models.TransactionSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN t.type = 'receita' THEN t.amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN t.type = 'despesa' THEN t.amount ELSE 0 END), 0),
		       COUNT(*)
		FROM transactions t`+where, args...).Scan(&summary.Receitas, &summary.Despesas, &summary.Count)
	if err != nil {
		return nil, err
	}
	summary.Saldo = summary.Receitas.Sub(summary.Despesas)
	return &summary, nil
}

// ============================================================================
// CSV IMPORT
// ============================================================================

// Import inserts parsed rows in a single transaction. A row is skipped when
// the ledger already held an entry with the same date, type, amount and
// description before the import; repeated rows inside the file each consume
// one pre-existing match and are inserted once those run out.
func (s *TransactionService) Import(ctx context.Context, tenantID, userID string, bankAccountID *string, rows []models.ImportedRow) (*models.ImportResult, error) {
	result := &models.ImportResult{Errors: []models.RowError{}}
	if len(rows) == 0 {
		return result, nil
	}

	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"bank_accounts": bankAccountID}); err != nil {
		return nil, err
	}

	// Categories are resolved up front: the categoriser may call the AI and
	// must not run while the insert transaction holds locks.
	categoryIDs, err := s.resolveImportCategories(ctx, tenantID, rows)
	if err != nil {
		return nil, err
	}

	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		existing := map[importKey]int{}
		for _, row := range rows {
			key := keyOf(row)
			if _, seen := existing[key]; seen {
				continue
			}
			var n int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM transactions
				WHERE tenant_id = $1 AND date = $2 AND type = $3 AND amount = $4 AND description = $5 AND deleted_at IS NULL
			`, tenantID, row.Date, row.Type, row.Amount, row.Description).Scan(&n); err != nil {
				return err
			}
			existing[key] = n
		}

		for i, row := range rows {
			key := keyOf(row)
			if existing[key] > 0 {
				existing[key]--
				result.Skipped++
				continue
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (tenant_id, type, description, amount, date, category_id, bank_account_id,
				                          status, notes, tags, created_by)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 'pago', $8, '{importado}', $9)
			`, tenantID, row.Type, row.Description, row.Amount, row.Date, nullable(categoryIDs[i]),
				nullable(bankAccountID), nullString(row.Notes), nullString(userID))
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	return result, nil
}

type importKey struct {
	date        string
	kind        string
	amount      string
	description string
}

func keyOf(row models.ImportedRow) importKey {
	return importKey{
		date:        row.Date.Format(utils.DateLayout),
		kind:        row.Type,
		amount:      row.Amount.StringFixed(2),
		description: row.Description,
	}
}

// resolveImportCategories maps each row to a category id: the row's category
// column by name (falling back to the categoriser), else the static rules on
// the description.
func (s *TransactionService) resolveImportCategories(ctx context.Context, tenantID string, rows []models.ImportedRow) ([]*string, error) {
	index, err := s.categories.NameIndex(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(index))
	for key := range index {
		names = append(names, key[strings.Index(key, "|")+1:])
	}

	resolved := map[string]*string{}
	ids := make([]*string, len(rows))
	for i, row := range rows {
		cacheKey := row.Type + "|" + row.Category + "|" + row.Description
		if id, ok := resolved[cacheKey]; ok {
			ids[i] = id
			continue
		}
		var found *string
		lookup := func(name string) bool {
			if id, ok := index[categoryKey(row.Type, name)]; ok {
				found = &id
				return true
			}
			return false
		}
		switch {
		case row.Category != "":
			if !lookup(row.Category) {
				name, _ := s.categorizer.GetCategory(ctx, row.Category, names)
				lookup(name)
			}
		default:
			if name, ok := MatchStaticRule(row.Description); ok {
				lookup(name)
			}
		}
		resolved[cacheKey] = found
		ids[i] = found
	}
	return ids, nil
}

// ============================================================================
// TRANSFERS
// ============================================================================

// Transfer writes the paired despesa/receita legs sharing a transfer group.
func (s *TransactionService) Transfer(ctx context.Context, tenantID, userID string, req models.TransferRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", invalidf("amount must be greater than zero")
	}
	if req.FromAccountID == req.ToAccountID {
		return "", invalidf("source and destination accounts must differ")
	}
	date, err := utils.ParseDate(req.Date, utils.DateLayout)
	if err != nil {
		return "", invalidf("invalid date %q", req.Date)
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"bank_accounts": &req.FromAccountID}); err != nil {
		return "", err
	}
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"bank_accounts": &req.ToAccountID}); err != nil {
		return "", err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Transferência entre contas"
	}
	amount := req.Amount.Round(2)

	var group string
	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT uuid_generate_v4()`).Scan(&group); err != nil {
			return err
		}
		legs := []struct {
			account   string
			direction string
		}{
			{req.FromAccountID, models.DirectionOut},
			{req.ToAccountID, models.DirectionIn},
		}
		for _, leg := range legs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (tenant_id, type, description, amount, date, bank_account_id, status,
				                          transfer_group, transfer_direction, created_by)
				VALUES ($1, 'transferencia', $2, $3, $4, $5, 'pago', $6, $7, $8)
			`, tenantID, description, amount, date, leg.account, group, leg.direction, nullString(userID))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", dbError(err)
	}
	return group, nil
}

// SignedAmount returns the effect of a ledger row on its account balance.
func SignedAmount(t models.Transaction) decimal.Decimal {
	if t.Sign() < 0 {
		return t.Amount.Neg()
	}
	return t.Amount
}
