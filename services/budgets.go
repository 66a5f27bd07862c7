package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/shopspring/decimal"
)

var (
	alertThreshold  = decimal.NewFromInt(80)
	budgetThreshold = decimal.NewFromInt(100)
)

type BudgetService struct {
	db *sql.DB
}

func NewBudgetService(db *sql.DB) *BudgetService {
	return &BudgetService{db: db}
}

// BudgetStatus classifies percent used: ok below 80, alerta from 80 up to
// 100, estourado above 100.
func BudgetStatus(percentUsed decimal.Decimal) string {
	switch {
	case percentUsed.GreaterThan(budgetThreshold):
		return models.BudgetEstourado
	case percentUsed.GreaterThanOrEqual(alertThreshold):
		return models.BudgetAlerta
	default:
		return models.BudgetOK
	}
}

// BuildBudgetLine computes the comparison fields for one category.
func BuildBudgetLine(categoryID, name, kind string, planned, realized decimal.Decimal) models.BudgetLine {
	percent := utils.Percent(realized, planned)
	return models.BudgetLine{
		CategoryID:   categoryID,
		CategoryName: name,
		CategoryType: kind,
		Planned:      planned,
		Realized:     realized,
		Difference:   planned.Sub(realized),
		PercentUsed:  percent,
		Status:       BudgetStatus(percent),
	}
}

func validPeriod(year, month int) error {
	if year < 2000 || year > 2100 || month < 1 || month > 12 {
		return invalidf("invalid period %d/%d", month, year)
	}
	return nil
}

// Upsert replaces the planned amounts of the given categories. A zero
// amount removes the item.
func (s *BudgetService) Upsert(ctx context.Context, tenantID string, year, month int, items []models.BudgetItem) error {
	if err := validPeriod(year, month); err != nil {
		return err
	}
	for _, item := range items {
		if item.Amount.IsNegative() {
			return invalidf("planned amount cannot be negative")
		}
		id := item.CategoryID
		if err := ensureOwned(ctx, s.db, tenantID, map[string]*string{"categories": &id}); err != nil {
			return err
		}
	}

	return utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		for _, item := range items {
			if item.Amount.IsZero() {
				if _, err := tx.ExecContext(ctx, `
					DELETE FROM budget_items WHERE tenant_id = $1 AND year = $2 AND month = $3 AND category_id = $4
				`, tenantID, year, month, item.CategoryID); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO budget_items (tenant_id, year, month, category_id, amount)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (tenant_id, year, month, category_id) DO UPDATE SET amount = EXCLUDED.amount
			`, tenantID, year, month, item.CategoryID, item.Amount.Round(2)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Compare returns planned against realized for every category with a plan
// or with paid movements in the month.
func (s *BudgetService) Compare(ctx context.Context, tenantID string, year, month int) (*models.BudgetComparison, error) {
	if err := validPeriod(year, month); err != nil {
		return nil, err
	}
	start, end := utils.MonthBounds(year, time.Month(month))

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.type, COALESCE(b.amount, 0),
		       COALESCE((SELECT SUM(t.amount) FROM transactions t
		                 WHERE t.tenant_id = $1 AND t.category_id = c.id AND t.type = c.type
		                   AND t.status = 'pago' AND t.deleted_at IS NULL
		                   AND t.date BETWEEN $4 AND $5), 0)
		FROM categories c
		LEFT JOIN budget_items b ON b.category_id = c.id AND b.tenant_id = $1 AND b.year = $2 AND b.month = $3
		WHERE c.tenant_id = $1
		ORDER BY c.type DESC, c.name
	`, tenantID, year, month, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comparison := &models.BudgetComparison{
		Year:          year,
		Month:         month,
		Lines:         []models.BudgetLine{},
		TotalPlanned:  decimal.Zero,
		TotalRealized: decimal.Zero,
	}
	for rows.Next() {
		var id, name, kind string
		var planned, realized decimal.Decimal
		if err := rows.Scan(&id, &name, &kind, &planned, &realized); err != nil {
			return nil, err
		}
		if planned.IsZero() && realized.IsZero() {
			continue
		}
		comparison.Lines = append(comparison.Lines, BuildBudgetLine(id, name, kind, planned, realized))
		if kind == models.TypeDespesa {
			comparison.TotalPlanned = comparison.TotalPlanned.Add(planned)
			comparison.TotalRealized = comparison.TotalRealized.Add(realized)
		}
	}
	return comparison, rows.Err()
}

// CopyPrevious copies last month's plan into categories not yet planned.
func (s *BudgetService) CopyPrevious(ctx context.Context, tenantID string, year, month int) (int64, error) {
	if err := validPeriod(year, month); err != nil {
		return 0, err
	}
	prev := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_items (tenant_id, year, month, category_id, amount)
		SELECT tenant_id, $2, $3, category_id, amount
		FROM budget_items
		WHERE tenant_id = $1 AND year = $4 AND month = $5
		ON CONFLICT (tenant_id, year, month, category_id) DO NOTHING
	`, tenantID, year, month, prev.Year(), int(prev.Month()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Overruns lists the estourado lines of the month.
func (s *BudgetService) Overruns(ctx context.Context, tenantID string, year, month int) ([]models.BudgetLine, error) {
	comparison, err := s.Compare(ctx, tenantID, year, month)
	if err != nil {
		return nil, err
	}
	out := []models.BudgetLine{}
	for _, line := range comparison.Lines {
		if line.CategoryType == models.TypeDespesa && line.Status == models.BudgetEstourado {
			out = append(out, line)
		}
	}
	return out, nil
}
