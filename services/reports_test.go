package services

import (
	"context"
	"testing"
	"time"

	"github.com/jbapex/financeiro-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetStatus(t *testing.T) {
	assert.Equal(t, models.BudgetOK, BudgetStatus(dec("79.99")))
	assert.Equal(t, models.BudgetAlerta, BudgetStatus(dec("80")))
	assert.Equal(t, models.BudgetAlerta, BudgetStatus(dec("100")))
	assert.Equal(t, models.BudgetEstourado, BudgetStatus(dec("100.01")))
}

func TestBuildBudgetLine(t *testing.T) {
	line := BuildBudgetLine("c1", "Marketing", models.TypeDespesa, dec("500"), dec("450"))
	assert.True(t, line.Difference.Equal(dec("50")))
	assert.True(t, line.PercentUsed.Equal(dec("90")))
	assert.Equal(t, models.BudgetAlerta, line.Status)

	over := BuildBudgetLine("c1", "Marketing", models.TypeDespesa, dec("500"), dec("650"))
	assert.True(t, over.Difference.Equal(dec("-150")))
	assert.Equal(t, models.BudgetEstourado, over.Status)
}

func TestTopCategories(t *testing.T) {
	totals := []models.CategoryTotal{
		{CategoryName: "A", Amount: dec("100")},
		{CategoryName: "B", Amount: dec("300")},
		{CategoryName: "C", Amount: dec("100")},
	}

	top := TopCategories(totals, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "B", top[0].CategoryName)
	assert.True(t, top[0].Percentage.Equal(dec("60")))
	assert.Equal(t, "A", top[1].CategoryName)
	assert.True(t, top[1].Percentage.Equal(dec("20")))
	assert.Equal(t, "A", totals[0].CategoryName, "input order kept")
	assert.Len(t, TopCategories(totals, 0), 3)
}

func dreEntry(group, kind, name, amount string) models.DREEntry {
	return models.DREEntry{DREGroup: group, Type: kind, CategoryName: name, Amount: dec(amount)}
}

func TestBuildDRE(t *testing.T) {
	entries := []models.DREEntry{
		dreEntry(models.DREReceitaBruta, models.TypeReceita, "Vendas", "1000"),
		dreEntry("", models.TypeReceita, "Serviços", "200"),
		dreEntry(models.DREDeducoes, models.TypeDespesa, "Impostos", "100"),
		dreEntry(models.DRECustos, models.TypeDespesa, "CMV", "300"),
		dreEntry("", models.TypeDespesa, "", "150"),
		dreEntry(models.DREReceitasFinanceiras, models.TypeReceita, "Rendimentos", "10"),
		dreEntry(models.DREDespesasFinanceiras, models.TypeDespesa, "Tarifas", "30"),
	}

	dre := BuildDRE(entries, "2024-03-01", "2024-03-31")
	require.Len(t, dre.Lines, 9)

	amounts := map[string]decimal.Decimal{}
	for _, l := range dre.Lines {
		amounts[l.Key] = l.Amount
	}
	expected := map[string]string{
		"receita_bruta":         "1200",
		"deducoes":              "-100",
		"receita_liquida":       "1100",
		"custos":                "-300",
		"lucro_bruto":           "800",
		"despesas_operacionais": "-150",
		"resultado_financeiro":  "-20",
		"outras":                "0",
		"resultado_liquido":     "630",
	}
	for key, want := range expected {
		assert.True(t, amounts[key].Equal(dec(want)), "%s = %s, want %s", key, amounts[key], want)
	}

	bruta := dre.Lines[0]
	require.Len(t, bruta.Categories, 2)
	assert.Equal(t, "Vendas", bruta.Categories[0].CategoryName)
	assert.True(t, bruta.Categories[0].Percentage.Equal(dec("83.33")))
	assert.True(t, bruta.Percentage.Equal(dec("100")))

	assert.True(t, dre.Lines[2].Subtotal)
	assert.True(t, dre.Lines[2].Percentage.Equal(dec("91.67")))
	assert.Equal(t, UncategorizedName, dre.Lines[5].Categories[0].CategoryName)
}

func TestBuildDRE_Empty(t *testing.T) {
	dre := BuildDRE(nil, "2024-03-01", "2024-03-31")
	require.Len(t, dre.Lines, 9)
	for _, l := range dre.Lines {
		assert.True(t, l.Amount.IsZero())
		assert.True(t, l.Percentage.IsZero())
	}
}

func flowItem(y, m, d int, kind, amount string) models.CashFlowItem {
	return models.CashFlowItem{Date: day(y, time.Month(m), d), Type: kind, Amount: dec(amount)}
}

func TestBuildCashFlow(t *testing.T) {
	today := day(2024, 3, 15)
	realized := []models.CashFlowItem{
		flowItem(2023, 12, 20, models.TypeReceita, "999"),
		flowItem(2024, 1, 5, models.TypeReceita, "100"),
		flowItem(2024, 2, 10, models.TypeDespesa, "40"),
		flowItem(2024, 3, 1, models.TypeReceita, "10"),
	}
	expected := []models.CashFlowItem{
		flowItem(2024, 2, 1, models.TypeDespesa, "20"),
		flowItem(2024, 3, 20, models.TypeReceita, "50"),
		flowItem(2024, 5, 5, models.TypeDespesa, "100"),
		flowItem(2024, 7, 1, models.TypeReceita, "777"),
	}

	flow := BuildCashFlow(dec("500"), realized, expected, today, 3)
	require.Len(t, flow.History, 3)
	require.Len(t, flow.Projection, 3)

	assert.Equal(t, "2024-01", flow.History[0].Month)
	assert.True(t, flow.History[0].Saldo.Equal(dec("100")))
	assert.True(t, flow.History[1].Saldo.Equal(dec("-40")))
	assert.True(t, flow.History[2].Saldo.Equal(dec("10")))
	assert.True(t, flow.History[2].Acumulado.Equal(dec("500")))
	assert.True(t, flow.History[1].Acumulado.Equal(dec("490")))
	assert.True(t, flow.History[0].Acumulado.Equal(dec("530")))

	assert.Equal(t, "2024-04", flow.Projection[0].Month)
	assert.True(t, flow.Projection[0].Projected)
	assert.True(t, flow.Projection[0].Entradas.Equal(dec("50")), "current-month expected item lands in the first projected month")
	assert.True(t, flow.Projection[0].Saidas.Equal(dec("20")), "overdue item lands in the first projected month")
	assert.True(t, flow.Projection[0].Acumulado.Equal(dec("530")))
	assert.True(t, flow.Projection[1].Acumulado.Equal(dec("430")))
	assert.True(t, flow.Projection[2].Acumulado.Equal(dec("430")), "items beyond the horizon are dropped")
}

func TestCashFlow_RejectsMonthsOutOfRange(t *testing.T) {
	svc := NewReportService(nil, nil, nil, nil, nil)
	for _, months := range []int{0, -3, MaxCashFlowMonths + 1} {
		_, err := svc.CashFlow(context.Background(), "tenant-1", months, day(2024, 3, 15))
		assert.ErrorIs(t, err, ErrInvalidInput, "months=%d", months)
	}
}
