package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCashFlowMonths = 6
	MaxCashFlowMonths     = 24
	DashboardSeriesMonths = 6
	TopExpenseCategories  = 5
	UncategorizedName     = "Sem categoria"
)

type ReportService struct {
	db        *sql.DB
	cache     *CacheService
	accounts  *BankAccountService
	recurring *RecurringService
	log       *logrus.Logger
}

func NewReportService(db *sql.DB, cache *CacheService, accounts *BankAccountService, recurring *RecurringService, log *logrus.Logger) *ReportService {
	return &ReportService{db: db, cache: cache, accounts: accounts, recurring: recurring, log: log}
}

// ============================================================================
// PURE BUILDERS
// ============================================================================

// TopCategories sorts totals by amount, fills percentages over the grand
// total and keeps the first n.
func TopCategories(totals []models.CategoryTotal, n int) []models.CategoryTotal {
	grand := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t.Amount)
	}
	out := make([]models.CategoryTotal, len(totals))
	copy(out, totals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	for i := range out {
		out[i].Percentage = utils.Percent(out[i].Amount, grand)
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type dreSection struct {
	key    string
	label  string
	groups []string
}

var dreSections = []dreSection{
	{"receita_bruta", "Receita Bruta", []string{models.DREReceitaBruta}},
	{"deducoes", "(-) Deduções", []string{models.DREDeducoes}},
	{"receita_liquida", "Receita Líquida", nil},
	{"custos", "(-) Custos", []string{models.DRECustos}},
	{"lucro_bruto", "Lucro Bruto", nil},
	{"despesas_operacionais", "(-) Despesas Operacionais", []string{models.DREDespesasOperacionais}},
	{"resultado_financeiro", "(+/-) Resultado Financeiro", []string{models.DREReceitasFinanceiras, models.DREDespesasFinanceiras}},
	{"outras", "(+/-) Outras", []string{models.DREOutras}},
	{"resultado_liquido", "Resultado Líquido", nil},
}

// DREGroupFor returns the group of an entry, defaulting uncategorized
// receitas to receita bruta and despesas to despesas operacionais.
func DREGroupFor(group, kind string) string {
	if group != "" {
		return group
	}
	if kind == models.TypeReceita {
		return models.DREReceitaBruta
	}
	return models.DREDespesasOperacionais
}

// BuildDRE aggregates entries into the income statement. Amounts are signed:
// receitas positive, despesas negative; subtotals are running sums, and
// percentages are taken over Receita Bruta.
func BuildDRE(entries []models.DREEntry, from, to string) *models.DRE {
	byGroup := map[string][]models.DRECategory{}
	groupTotal := map[string]decimal.Decimal{}

	for _, e := range entries {
		group := DREGroupFor(e.DREGroup, e.Type)
		amount := e.Amount
		if e.Type == models.TypeDespesa {
			amount = amount.Neg()
		}
		name := e.CategoryName
		if name == "" {
			name = UncategorizedName
		}
		byGroup[group] = append(byGroup[group], models.DRECategory{CategoryID: e.CategoryID, CategoryName: name, Amount: amount})
		groupTotal[group] = groupTotal[group].Add(amount)
	}

	receitaBruta := groupTotal[models.DREReceitaBruta]
	dre := &models.DRE{From: from, To: to, Lines: []models.DRELine{}}
	running := decimal.Zero

	for _, section := range dreSections {
		line := models.DRELine{Key: section.key, Label: section.label}
		if section.groups == nil {
			line.Subtotal = true
			line.Amount = running
		} else {
			line.Amount = decimal.Zero
			line.Categories = []models.DRECategory{}
			for _, g := range section.groups {
				line.Amount = line.Amount.Add(groupTotal[g])
				line.Categories = append(line.Categories, byGroup[g]...)
			}
			sort.SliceStable(line.Categories, func(i, j int) bool {
				return line.Categories[i].Amount.Abs().GreaterThan(line.Categories[j].Amount.Abs())
			})
			for i := range line.Categories {
				line.Categories[i].Percentage = utils.Percent(line.Categories[i].Amount, receitaBruta)
			}
			running = running.Add(line.Amount)
		}
		line.Percentage = utils.Percent(line.Amount, receitaBruta)
		dre.Lines = append(dre.Lines, line)
	}
	return dre
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func newCashFlowMonth(start time.Time, projected bool) models.CashFlowMonth {
	return models.CashFlowMonth{
		Month:     utils.MonthKey(start),
		Label:     utils.MonthLabel(start),
		Entradas:  decimal.Zero,
		Saidas:    decimal.Zero,
		Saldo:     decimal.Zero,
		Acumulado: decimal.Zero,
		Projected: projected,
	}
}

func addFlow(m *models.CashFlowMonth, item models.CashFlowItem) {
	if item.Type == models.TypeReceita {
		m.Entradas = m.Entradas.Add(item.Amount)
	} else {
		m.Saidas = m.Saidas.Add(item.Amount)
	}
	m.Saldo = m.Entradas.Sub(m.Saidas)
}

// BuildCashFlow lays realized items over the last `months` months (current
// month included) and expected items over the following `months` months.
// History balances are walked back from currentBalance at the end of the
// current month; projected balances run forward from it. Expected items
// dated before the first projected month (overdue or still due this month)
// fall into that first month.
func BuildCashFlow(currentBalance decimal.Decimal, realized, expected []models.CashFlowItem, today time.Time, months int) *models.CashFlow {
	current := monthStart(today)
	flow := &models.CashFlow{CurrentBalance: currentBalance}

	flow.History = make([]models.CashFlowMonth, months)
	historyStart := current.AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		flow.History[i] = newCashFlowMonth(historyStart.AddDate(0, i, 0), false)
	}
	for _, item := range realized {
		m := monthStart(item.Date)
		if m.Before(historyStart) || m.After(current) {
			continue
		}
		idx := (m.Year()-historyStart.Year())*12 + int(m.Month()) - int(historyStart.Month())
		addFlow(&flow.History[idx], item)
	}
	balance := currentBalance
	for i := months - 1; i >= 0; i-- {
		flow.History[i].Acumulado = balance
		balance = balance.Sub(flow.History[i].Saldo)
	}

	flow.Projection = make([]models.CashFlowMonth, months)
	projectionStart := current.AddDate(0, 1, 0)
	for i := 0; i < months; i++ {
		flow.Projection[i] = newCashFlowMonth(projectionStart.AddDate(0, i, 0), true)
	}
	for _, item := range expected {
		m := monthStart(item.Date)
		idx := 0
		if m.After(projectionStart) {
			idx = (m.Year()-projectionStart.Year())*12 + int(m.Month()) - int(projectionStart.Month())
		}
		if idx >= months {
			continue
		}
		addFlow(&flow.Projection[idx], item)
	}
	balance = currentBalance
	for i := range flow.Projection {
		balance = balance.Add(flow.Projection[i].Saldo)
		flow.Projection[i].Acumulado = balance
	}
	return flow
}

// ============================================================================
// QUERIES
// ============================================================================

// cached serves key from the tenant cache or builds and stores it.
func cached[T any](ctx context.Context, s *ReportService, tenantID, key string, build func() (T, error)) (T, error) {
	var out T
	if s.cache.Get(ctx, tenantID, key, &out) {
		return out, nil
	}
	out, err := build()
	if err != nil {
		return out, err
	}
	if err := s.cache.Set(ctx, tenantID, key, out); err != nil && s.log != nil {
		s.log.WithError(err).Warn("report cache write failed")
	}
	return out, nil
}

func (s *ReportService) ByCategory(ctx context.Context, tenantID string, from, to time.Time, kind string) ([]models.CategoryTotal, error) {
	if kind == "" {
		kind = models.TypeDespesa
	}
	key := fmt.Sprintf("bycat:%s:%s:%s", from.Format(utils.DateLayout), to.Format(utils.DateLayout), kind)
	return cached(ctx, s, tenantID, key, func() ([]models.CategoryTotal, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.color, ''), SUM(t.amount), COUNT(*)
			FROM transactions t
			LEFT JOIN categories c ON c.id = t.category_id
			WHERE t.tenant_id = $1 AND t.type = $2 AND t.deleted_at IS NULL AND t.date BETWEEN $3 AND $4
			GROUP BY t.category_id, c.name, c.color
		`, tenantID, kind, from, to)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		totals := []models.CategoryTotal{}
		for rows.Next() {
			var ct models.CategoryTotal
			var id sql.NullString
			if err := rows.Scan(&id, &ct.CategoryName, &ct.Color, &ct.Amount, &ct.Count); err != nil {
				return nil, err
			}
			ct.CategoryID = stringPtr(id)
			if ct.CategoryName == "" {
				ct.CategoryName = UncategorizedName
			}
			totals = append(totals, ct)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return TopCategories(totals, 0), nil
	})
}

func (s *ReportService) DRE(ctx context.Context, tenantID string, from, to time.Time) (*models.DRE, error) {
	key := fmt.Sprintf("dre:%s:%s", from.Format(utils.DateLayout), to.Format(utils.DateLayout))
	return cached(ctx, s, tenantID, key, func() (*models.DRE, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.dre_group, ''), t.type, SUM(t.amount)
			FROM transactions t
			LEFT JOIN categories c ON c.id = t.category_id
			WHERE t.tenant_id = $1 AND t.type IN ('receita', 'despesa') AND t.status = 'pago'
			  AND t.deleted_at IS NULL AND t.date BETWEEN $2 AND $3
			GROUP BY t.category_id, c.name, c.dre_group, t.type
		`, tenantID, from, to)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		entries := []models.DREEntry{}
		for rows.Next() {
			var e models.DREEntry
			var id sql.NullString
			if err := rows.Scan(&id, &e.CategoryName, &e.DREGroup, &e.Type, &e.Amount); err != nil {
				return nil, err
			}
			e.CategoryID = stringPtr(id)
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return BuildDRE(entries, from.Format(utils.DateLayout), to.Format(utils.DateLayout)), nil
	})
}

func (s *ReportService) monthSeries(ctx context.Context, tenantID string, from, to time.Time) ([]models.MonthTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(t.date, 'YYYY-MM'),
		       COALESCE(SUM(CASE WHEN t.type = 'receita' THEN t.amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN t.type = 'despesa' THEN t.amount ELSE 0 END), 0)
		FROM transactions t
		WHERE t.tenant_id = $1 AND t.deleted_at IS NULL AND t.date BETWEEN $2 AND $3
		GROUP BY 1
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := map[string]models.MonthTotals{}
	for rows.Next() {
		var m models.MonthTotals
		if err := rows.Scan(&m.Month, &m.Receitas, &m.Despesas); err != nil {
			return nil, err
		}
		found[m.Month] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series := []models.MonthTotals{}
	for m := monthStart(from); !m.After(to); m = m.AddDate(0, 1, 0) {
		totals, ok := found[utils.MonthKey(m)]
		if !ok {
			totals = models.MonthTotals{Receitas: decimal.Zero, Despesas: decimal.Zero}
		}
		totals.Month = utils.MonthKey(m)
		totals.Label = utils.MonthLabel(m)
		totals.Resultado = totals.Receitas.Sub(totals.Despesas)
		series = append(series, totals)
	}
	return series, nil
}

// PeriodTotals sums paid receitas and despesas between two dates, transfers excluded.
func (s *ReportService) PeriodTotals(ctx context.Context, tenantID string, from, to time.Time) (models.MonthTotals, error) {
	totals := models.MonthTotals{
		Month: utils.MonthKey(from),
		Label: from.Format("02/01") + " a " + to.Format("02/01"),
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'receita' THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN type = 'despesa' THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE tenant_id = $1 AND deleted_at IS NULL AND status = 'pago' AND date BETWEEN $2 AND $3
	`, tenantID, from, to).Scan(&totals.Receitas, &totals.Despesas)
	if err != nil {
		return totals, err
	}
	totals.Resultado = totals.Receitas.Sub(totals.Despesas)
	return totals, nil
}

func (s *ReportService) dueSummary(ctx context.Context, tenantID, kind string, from, to time.Time) (models.DueSummary, error) {
	var d models.DueSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM installments
		WHERE tenant_id = $1 AND kind = $2 AND status = 'pendente' AND due_date BETWEEN $3 AND $4
	`, tenantID, kind, from, to).Scan(&d.Count, &d.Amount)
	return d, err
}

func (s *ReportService) overdueSummary(ctx context.Context, tenantID, kind string, today time.Time) (models.DueSummary, error) {
	var d models.DueSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM installments
		WHERE tenant_id = $1 AND kind = $2 AND status = 'pendente' AND due_date < $3
	`, tenantID, kind, today).Scan(&d.Count, &d.Amount)
	return d, err
}

// Dashboard summarizes the month plus the tenant's short-term position.
func (s *ReportService) Dashboard(ctx context.Context, tenantID string, month time.Time, today time.Time) (*models.Dashboard, error) {
	key := fmt.Sprintf("dashboard:%s:%s", utils.MonthKey(month), today.Format(utils.DateLayout))
	return cached(ctx, s, tenantID, key, func() (*models.Dashboard, error) {
		start, end := utils.MonthBounds(month.Year(), month.Month())
		d := &models.Dashboard{}

		series, err := s.monthSeries(ctx, tenantID, start.AddDate(0, -(DashboardSeriesMonths-1), 0), end)
		if err != nil {
			return nil, err
		}
		d.Series = series
		d.Month = series[len(series)-1]

		if d.TotalBalance, err = s.accounts.TotalBalance(ctx, tenantID); err != nil {
			return nil, err
		}
		week := today.AddDate(0, 0, 7)
		if d.ReceivablesNext7, err = s.dueSummary(ctx, tenantID, models.KindReceber, today, week); err != nil {
			return nil, err
		}
		if d.PayablesNext7, err = s.dueSummary(ctx, tenantID, models.KindPagar, today, week); err != nil {
			return nil, err
		}
		if d.OverdueReceber, err = s.overdueSummary(ctx, tenantID, models.KindReceber, today); err != nil {
			return nil, err
		}
		if d.OverduePagar, err = s.overdueSummary(ctx, tenantID, models.KindPagar, today); err != nil {
			return nil, err
		}

		expenses, err := s.ByCategory(ctx, tenantID, start, end, models.TypeDespesa)
		if err != nil {
			return nil, err
		}
		d.TopExpenses = TopCategories(expenses, TopExpenseCategories)
		return d, nil
	})
}

// CashFlow combines realized history with the projection of pending
// installments, pending entries and active recurring templates.
func (s *ReportService) CashFlow(ctx context.Context, tenantID string, months int, today time.Time) (*models.CashFlow, error) {
	if months < 1 || months > MaxCashFlowMonths {
		return nil, invalidf("months must be between 1 and %d", MaxCashFlowMonths)
	}

	key := fmt.Sprintf("cashflow:%d:%s", months, today.Format(utils.DateLayout))
	return cached(ctx, s, tenantID, key, func() (*models.CashFlow, error) {
		current := monthStart(today)
		historyStart := current.AddDate(0, -(months - 1), 0)
		horizon := current.AddDate(0, months+1, -1)

		balance, err := s.accounts.TotalBalance(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		realized, err := s.flowItems(ctx, `
			SELECT date_trunc('month', t.date)::date, t.type, SUM(t.amount)
			FROM transactions t
			WHERE t.tenant_id = $1 AND t.status = 'pago' AND t.type IN ('receita', 'despesa')
			  AND t.deleted_at IS NULL AND t.date BETWEEN $2 AND $3
			GROUP BY 1, 2`, tenantID, historyStart, today)
		if err != nil {
			return nil, err
		}

		expected, err := s.flowItems(ctx, `
			SELECT i.due_date, CASE WHEN i.kind = 'receber' THEN 'receita' ELSE 'despesa' END, i.amount
			FROM installments i
			WHERE i.tenant_id = $1 AND i.status = 'pendente' AND i.due_date <= $2
			UNION ALL
			SELECT t.date, t.type, t.amount
			FROM transactions t
			WHERE t.tenant_id = $1 AND t.status = 'pendente' AND t.type IN ('receita', 'despesa')
			  AND t.deleted_at IS NULL AND t.date <= $2`, tenantID, horizon)
		if err != nil {
			return nil, err
		}

		templates, err := s.recurring.List(ctx, tenantID, true)
		if err != nil {
			return nil, err
		}
		for _, t := range templates {
			for _, d := range OccurrencesBetween(t, t.NextDate, horizon) {
				expected = append(expected, models.CashFlowItem{Date: d, Type: t.Type, Amount: t.Amount})
			}
		}

		return BuildCashFlow(balance, realized, expected, today, months), nil
	})
}

func (s *ReportService) flowItems(ctx context.Context, query string, args ...interface{}) ([]models.CashFlowItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CashFlowItem{}
	for rows.Next() {
		var item models.CashFlowItem
		if err := rows.Scan(&item.Date, &item.Type, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
