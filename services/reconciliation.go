package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/shopspring/decimal"
)

const MatchWindowDays = 5

var MatchTolerance = decimal.New(1, -2)

type ReconciliationService struct {
	db *sql.DB
}

func NewReconciliationService(db *sql.DB) *ReconciliationService {
	return &ReconciliationService{db: db}
}

// StatementHash identifies a statement row for duplicate detection.
func StatementHash(accountID string, date time.Time, amount decimal.Decimal, description string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		accountID,
		date.Format(utils.DateLayout),
		amount.StringFixed(2),
		NormalizeLabel(description),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// IsMatchCandidate applies the matching rule: same account, same direction,
// dates at most five days apart, amounts within one cent, not reconciled.
func IsMatchCandidate(line models.StatementLine, t models.Transaction) bool {
	if t.Reconciled || t.BankAccountID == nil || *t.BankAccountID != line.BankAccountID {
		return false
	}
	if t.Sign() != signOf(line.Amount) {
		return false
	}
	if utils.DaysBetween(line.Date, t.Date) > MatchWindowDays {
		return false
	}
	return line.Amount.Abs().Sub(t.Amount).Abs().LessThanOrEqual(MatchTolerance)
}

func signOf(d decimal.Decimal) int {
	if d.IsNegative() {
		return -1
	}
	return 1
}

// MatchCandidates returns the candidates ordered by date distance, then by
// amount difference.
func MatchCandidates(line models.StatementLine, txs []models.Transaction) []models.MatchSuggestion {
	out := []models.MatchSuggestion{}
	for _, t := range txs {
		if !IsMatchCandidate(line, t) {
			continue
		}
		out = append(out, models.MatchSuggestion{
			Transaction: t,
			DaysApart:   utils.DaysBetween(line.Date, t.Date),
			AmountDiff:  line.Amount.Abs().Sub(t.Amount).Abs(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysApart != out[j].DaysApart {
			return out[i].DaysApart < out[j].DaysApart
		}
		return out[i].AmountDiff.LessThan(out[j].AmountDiff)
	})
	return out
}

// PlanAutoMatch links each pending line that has exactly one candidate,
// provided no other line with a single candidate claims the same entry.
func PlanAutoMatch(lines []models.StatementLine, txs []models.Transaction) (map[string]string, models.AutoMatchResult) {
	single := map[string]string{}
	claims := map[string]int{}
	var result models.AutoMatchResult

	for _, line := range lines {
		if line.Status != models.StatementPendente {
			continue
		}
		candidates := MatchCandidates(line, txs)
		switch len(candidates) {
		case 0:
			result.Unmatched++
		case 1:
			txID := candidates[0].Transaction.ID
			single[line.ID] = txID
			claims[txID]++
		default:
			result.Ambiguous++
		}
	}

	links := map[string]string{}
	for lineID, txID := range single {
		if claims[txID] > 1 {
			result.Ambiguous++
			continue
		}
		links[lineID] = txID
	}
	result.Matched = len(links)
	return links, result
}

// ============================================================================
// PERSISTENCE
// ============================================================================

const statementColumns = `id, tenant_id, bank_account_id, date, description, amount, hash, status, transaction_id, created_at`

func scanStatement(row interface{ Scan(...interface{}) error }) (*models.StatementLine, error) {
	var l models.StatementLine
	var txID sql.NullString
	if err := row.Scan(&l.ID, &l.TenantID, &l.BankAccountID, &l.Date, &l.Description, &l.Amount,
		&l.Hash, &l.Status, &txID, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.TransactionID = stringPtr(txID)
	return &l, nil
}

// Import stores parsed statement rows as pendente, skipping duplicates.
func (s *ReconciliationService) Import(ctx context.Context, tenantID, accountID string, rows []models.ImportedRow) (*models.ImportResult, error) {
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"bank_accounts": &accountID}); err != nil {
		return nil, err
	}

	result := &models.ImportResult{Errors: []models.RowError{}}
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		for _, row := range rows {
			amount := row.SignedAmount
			if row.Type == models.TypeDespesa && amount.IsPositive() {
				amount = amount.Neg()
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO statement_lines (tenant_id, bank_account_id, date, description, amount, hash)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (tenant_id, bank_account_id, hash) DO NOTHING
			`, tenantID, accountID, row.Date, row.Description, amount,
				StatementHash(accountID, row.Date, amount, row.Description))
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				result.Skipped++
			} else {
				result.Imported++
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}
	return result, nil
}

func (s *ReconciliationService) List(ctx context.Context, tenantID, accountID, status string, limit, offset int) ([]models.StatementLine, int64, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if accountID != "" {
		args = append(args, accountID)
		where += fmt.Sprintf(" AND bank_account_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statement_lines`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + statementColumns + ` FROM statement_lines` + where + ` ORDER BY date DESC, created_at`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	lines := []models.StatementLine{}
	for rows.Next() {
		l, err := scanStatement(rows)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, *l)
	}
	return lines, total, rows.Err()
}

func (s *ReconciliationService) getLine(ctx context.Context, q querier, tenantID, id string, lock bool) (*models.StatementLine, error) {
	query := `SELECT ` + statementColumns + ` FROM statement_lines WHERE id = $1 AND tenant_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	l, err := scanStatement(q.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		return nil, dbError(err)
	}
	return l, nil
}

// unreconciled loads open ledger entries of the account within the window
// around [from, to].
func (s *ReconciliationService) unreconciled(ctx context.Context, q querier, tenantID, accountID string, from, to time.Time) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, transactionSelect+`
		WHERE t.tenant_id = $1 AND t.bank_account_id = $2 AND t.deleted_at IS NULL AND NOT t.reconciled
		  AND t.date BETWEEN $3 AND $4
		ORDER BY t.date`,
		tenantID, accountID, from.AddDate(0, 0, -MatchWindowDays), to.AddDate(0, 0, MatchWindowDays))
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *ReconciliationService) Suggestions(ctx context.Context, tenantID, lineID string) ([]models.MatchSuggestion, error) {
	line, err := s.getLine(ctx, s.db, tenantID, lineID, false)
	if err != nil {
		return nil, err
	}
	txs, err := s.unreconciled(ctx, s.db, tenantID, line.BankAccountID, line.Date, line.Date)
	if err != nil {
		return nil, err
	}
	return MatchCandidates(*line, txs), nil
}

func link(ctx context.Context, tx *sql.Tx, tenantID, lineID, txID string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE statement_lines SET status = 'conciliado', transaction_id = $3 WHERE id = $1 AND tenant_id = $2
	`, lineID, tenantID, txID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions SET reconciled = TRUE, status = 'pago', updated_at = NOW() WHERE id = $1 AND tenant_id = $2
	`, txID, tenantID)
	return err
}

func (s *ReconciliationService) AutoMatch(ctx context.Context, tenantID, accountID string) (*models.AutoMatchResult, error) {
	var result models.AutoMatchResult
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+statementColumns+` FROM statement_lines
			WHERE tenant_id = $1 AND bank_account_id = $2 AND status = 'pendente'
			ORDER BY date FOR UPDATE`, tenantID, accountID)
		if err != nil {
			return err
		}
		lines := []models.StatementLine{}
		for rows.Next() {
			l, err := scanStatement(rows)
			if err != nil {
				rows.Close()
				return err
			}
			lines = append(lines, *l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}

		txs, err := s.unreconciled(ctx, tx, tenantID, accountID, lines[0].Date, lines[len(lines)-1].Date)
		if err != nil {
			return err
		}

		links, planned := PlanAutoMatch(lines, txs)
		for lineID, txID := range links {
			if err := link(ctx, tx, tenantID, lineID, txID); err != nil {
				return err
			}
		}
		result = planned
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}
	return &result, nil
}

// Match links a pending line to a chosen ledger entry.
func (s *ReconciliationService) Match(ctx context.Context, tenantID, lineID, txID string) (*models.StatementLine, error) {
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		line, err := s.getLine(ctx, tx, tenantID, lineID, true)
		if err != nil {
			return err
		}
		if line.Status != models.StatementPendente {
			return conflictf("statement line is %s", line.Status)
		}

		t, err := scanTransaction(tx.QueryRowContext(ctx, transactionSelect+`
			WHERE t.id = $1 AND t.tenant_id = $2 AND t.deleted_at IS NULL`, txID, tenantID))
		if err != nil {
			return dbError(err)
		}
		if t.Reconciled {
			return conflictf("transaction already reconciled")
		}
		if t.Sign() != signOf(line.Amount) {
			return invalidf("transaction direction does not match the statement line")
		}
		if t.BankAccountID != nil && *t.BankAccountID != line.BankAccountID {
			return invalidf("transaction belongs to another account")
		}
		if t.BankAccountID == nil {
			if _, err := tx.ExecContext(ctx, `UPDATE transactions SET bank_account_id = $3 WHERE id = $1 AND tenant_id = $2`,
				txID, tenantID, line.BankAccountID); err != nil {
				return err
			}
		}
		return link(ctx, tx, tenantID, lineID, txID)
	})
	if err != nil {
		return nil, dbError(err)
	}
	return s.getLine(ctx, s.db, tenantID, lineID, false)
}

// CreateFromStatement writes a ledger entry mirroring the line and links it.
func (s *ReconciliationService) CreateFromStatement(ctx context.Context, tenantID, userID, lineID string, req models.CreateFromStatementRequest) (*models.StatementLine, error) {
	if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"categories": req.CategoryID, "contacts": req.ContactID}); err != nil {
		return nil, err
	}

	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		line, err := s.getLine(ctx, tx, tenantID, lineID, true)
		if err != nil {
			return err
		}
		if line.Status != models.StatementPendente {
			return conflictf("statement line is %s", line.Status)
		}

		var txID string
		err = tx.QueryRowContext(ctx, `
			INSERT INTO transactions (tenant_id, type, description, amount, date, category_id, bank_account_id,
			                          contact_id, status, tags, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pago', '{conciliacao}', $9)
			RETURNING id
		`, tenantID, line.TransactionType(), line.Description, line.Amount.Abs(), line.Date,
			nullable(req.CategoryID), line.BankAccountID, nullable(req.ContactID), nullString(userID)).Scan(&txID)
		if err != nil {
			return err
		}
		return link(ctx, tx, tenantID, lineID, txID)
	})
	if err != nil {
		return nil, dbError(err)
	}
	return s.getLine(ctx, s.db, tenantID, lineID, false)
}

func (s *ReconciliationService) Ignore(ctx context.Context, tenantID, lineID string) (*models.StatementLine, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE statement_lines SET status = 'ignorado' WHERE id = $1 AND tenant_id = $2 AND status = 'pendente'
	`, lineID, tenantID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.getLine(ctx, s.db, tenantID, lineID, false); err != nil {
			return nil, err
		}
		return nil, conflictf("only pending lines can be ignored")
	}
	return s.getLine(ctx, s.db, tenantID, lineID, false)
}

// Unmatch returns a reconciled or ignored line to pendente and releases the
// linked entry.
func (s *ReconciliationService) Unmatch(ctx context.Context, tenantID, lineID string) (*models.StatementLine, error) {
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		line, err := s.getLine(ctx, tx, tenantID, lineID, true)
		if err != nil {
			return err
		}
		if line.Status == models.StatementPendente {
			return conflictf("statement line is already pending")
		}
		if line.TransactionID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE transactions SET reconciled = FALSE, updated_at = NOW() WHERE id = $1 AND tenant_id = $2
			`, *line.TransactionID, tenantID); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE statement_lines SET status = 'pendente', transaction_id = NULL WHERE id = $1 AND tenant_id = $2
		`, lineID, tenantID)
		return err
	})
	if err != nil {
		return nil, dbError(err)
	}
	return s.getLine(ctx, s.db, tenantID, lineID, false)
}
