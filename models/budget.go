package models

import (
	"github.com/shopspring/decimal"
)

const (
	BudgetOK        = "ok"
	BudgetAlerta    = "alerta"
	BudgetEstourado = "estourado"
)

type BudgetItem struct {
	CategoryID string          `json:"category_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type BudgetRequest struct {
	Items []BudgetItem `json:"items" binding:"required,dive"`
}

type BudgetLine struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	CategoryType string          `json:"category_type"`
	Planned      decimal.Decimal `json:"planned"`
	Realized     decimal.Decimal `json:"realized"`
	Difference   decimal.Decimal `json:"difference"`
	PercentUsed  decimal.Decimal `json:"percent_used"`
	Status       string          `json:"status"`
}

type BudgetComparison struct {
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	Lines         []BudgetLine    `json:"lines"`
	TotalPlanned  decimal.Decimal `json:"total_planned"`
	TotalRealized decimal.Decimal `json:"total_realized"`
}
