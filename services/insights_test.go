package services

import (
	"testing"

	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(insights []models.Insight) []string {
	out := []string{}
	for _, i := range insights {
		out = append(out, i.Code)
	}
	return out
}

func TestBuildInsights_HealthySnapshot(t *testing.T) {
	s := models.FinancialSnapshot{
		Month:        models.MonthTotals{Label: "Março 2024", Receitas: dec("5000"), Despesas: dec("3000")},
		TotalBalance: dec("12000"),
		TopExpenses:  []models.CategoryTotal{{CategoryName: "Aluguel", Percentage: dec("40")}},
	}
	assert.Empty(t, BuildInsights(s))
}

func TestBuildInsights_OrdersByPriority(t *testing.T) {
	s := models.FinancialSnapshot{
		Month:          models.MonthTotals{Label: "Março 2024", Receitas: dec("1000"), Despesas: dec("3000")},
		TotalBalance:   dec("-150.75"),
		OverduePagar:   models.DueSummary{Count: 2, Amount: dec("800")},
		OverdueReceber: models.DueSummary{Count: 1, Amount: dec("90")},
		BudgetOverruns: []models.BudgetLine{{CategoryName: "Marketing", Planned: dec("500"), Realized: dec("650"), PercentUsed: dec("130")}},
		LowStock:       []models.Product{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}, {Name: "E"}},
		TopExpenses:    []models.CategoryTotal{{CategoryName: "Fornecedores", Percentage: dec("72.4")}},
	}

	insights := BuildInsights(s)
	assert.Equal(t, []string{
		"saldo_negativo", "contas_vencidas",
		"recebimentos_atrasados", "despesas_maiores", "orcamento_estourado",
		"estoque_baixo", "concentracao_despesas",
	}, codes(insights))

	assert.Equal(t, models.InsightDanger, insights[0].Type)
	assert.Contains(t, insights[0].Message, "-R$ 150,75")
	assert.Equal(t, "Orçamento estourado: Marketing", insights[4].Title)
	assert.Equal(t, "Repor: A, B, C, e mais 2.", insights[5].Message)
	assert.Contains(t, insights[6].Message, "Fornecedores responde por 72%")
}

func TestBuildInsights_LowBalanceAgainstOverdue(t *testing.T) {
	s := models.FinancialSnapshot{
		TotalBalance: dec("100"),
		OverduePagar: models.DueSummary{Count: 1, Amount: dec("400")},
	}

	insights := BuildInsights(s)
	require.Len(t, insights, 2)
	assert.Equal(t, []string{"contas_vencidas", "saldo_baixo"}, codes(insights))
}
