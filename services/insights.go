package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/shopspring/decimal"
)

// ExpenseConcentration is the share of month expenses above which a single
// category is flagged.
var ExpenseConcentration = decimal.NewFromInt(50)

// BuildInsights turns a snapshot into alerts, most urgent first. No AI call.
func BuildInsights(s models.FinancialSnapshot) []models.Insight {
	insights := []models.Insight{}

	// Rule 1: balance
	if s.NegativeBalance || s.TotalBalance.IsNegative() {
		insights = append(insights, models.Insight{
			Type:     models.InsightDanger,
			Code:     "saldo_negativo",
			Title:    "Saldo negativo",
			Message:  fmt.Sprintf("O saldo somado das contas está em %s.", utils.FormatBRL(s.TotalBalance)),
			Priority: 1,
		})
	} else if s.OverduePagar.Count > 0 && s.TotalBalance.LessThan(s.OverduePagar.Amount) {
		insights = append(insights, models.Insight{
			Type:  models.InsightWarning,
			Code:  "saldo_baixo",
			Title: "Saldo insuficiente",
			Message: fmt.Sprintf("O saldo em contas (%s) não cobre as contas vencidas (%s).",
				utils.FormatBRL(s.TotalBalance), utils.FormatBRL(s.OverduePagar.Amount)),
			Priority: 2,
		})
	}

	// Rule 2: overdue payables and receivables
	if s.OverduePagar.Count > 0 {
		insights = append(insights, models.Insight{
			Type:  models.InsightDanger,
			Code:  "contas_vencidas",
			Title: "Contas a pagar vencidas",
			Message: fmt.Sprintf("%d conta(s) vencida(s) somando %s. Evite juros e multas.",
				s.OverduePagar.Count, utils.FormatBRL(s.OverduePagar.Amount)),
			Priority: 1,
		})
	}
	if s.OverdueReceber.Count > 0 {
		insights = append(insights, models.Insight{
			Type:  models.InsightWarning,
			Code:  "recebimentos_atrasados",
			Title: "Recebimentos em atraso",
			Message: fmt.Sprintf("%d recebimento(s) em atraso somando %s. Vale cobrar os clientes.",
				s.OverdueReceber.Count, utils.FormatBRL(s.OverdueReceber.Amount)),
			Priority: 2,
		})
	}

	// Rule 3: month result
	if s.Month.Despesas.GreaterThan(s.Month.Receitas) {
		insights = append(insights, models.Insight{
			Type:  models.InsightWarning,
			Code:  "despesas_maiores",
			Title: "Despesas acima das receitas",
			Message: fmt.Sprintf("Em %s as despesas (%s) superam as receitas (%s).",
				s.Month.Label, utils.FormatBRL(s.Month.Despesas), utils.FormatBRL(s.Month.Receitas)),
			Priority: 2,
		})
	}

	// Rule 4: budget
	for _, line := range s.BudgetOverruns {
		insights = append(insights, models.Insight{
			Type:  models.InsightDanger,
			Code:  "orcamento_estourado",
			Title: "Orçamento estourado: " + line.CategoryName,
			Message: fmt.Sprintf("Realizado %s de %s planejados (%s%%).",
				utils.FormatBRL(line.Realized), utils.FormatBRL(line.Planned), line.PercentUsed.StringFixed(0)),
			Priority: 2,
		})
	}

	// Rule 5: stock
	if len(s.LowStock) > 0 {
		names := []string{}
		for i, p := range s.LowStock {
			if i == 3 {
				names = append(names, fmt.Sprintf("e mais %d", len(s.LowStock)-3))
				break
			}
			names = append(names, p.Name)
		}
		insights = append(insights, models.Insight{
			Type:     models.InsightWarning,
			Code:     "estoque_baixo",
			Title:    "Estoque abaixo do mínimo",
			Message:  "Repor: " + strings.Join(names, ", ") + ".",
			Priority: 3,
		})
	}

	// Rule 6: one category dominating expenses
	if len(s.TopExpenses) > 0 && s.TopExpenses[0].Percentage.GreaterThan(ExpenseConcentration) {
		top := s.TopExpenses[0]
		insights = append(insights, models.Insight{
			Type:     models.InsightInfo,
			Code:     "concentracao_despesas",
			Title:    "Despesas concentradas",
			Message:  fmt.Sprintf("%s responde por %s%% das despesas do mês.", top.CategoryName, top.Percentage.StringFixed(0)),
			Priority: 3,
		})
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Priority < insights[j].Priority
	})
	return insights
}
