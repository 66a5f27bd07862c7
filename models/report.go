package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// DASHBOARD
// ============================================================================

type MonthTotals struct {
	Month     string          `json:"month"`
	Label     string          `json:"label"`
	Receitas  decimal.Decimal `json:"receitas"`
	Despesas  decimal.Decimal `json:"despesas"`
	Resultado decimal.Decimal `json:"resultado"`
}

type CategoryTotal struct {
	CategoryID   *string         `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Color        string          `json:"color,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
	Count        int             `json:"count"`
}

type DueSummary struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type Dashboard struct {
	Month            MonthTotals     `json:"month"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	ReceivablesNext7 DueSummary      `json:"receivables_next_7_days"`
	PayablesNext7    DueSummary      `json:"payables_next_7_days"`
	OverdueReceber   DueSummary      `json:"overdue_receivables"`
	OverduePagar     DueSummary      `json:"overdue_payables"`
	TopExpenses      []CategoryTotal `json:"top_expenses"`
	Series           []MonthTotals   `json:"series"`
}

// ============================================================================
// DRE
// ============================================================================

type DRECategory struct {
	CategoryID   *string         `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
}

type DRELine struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Subtotal   bool            `json:"subtotal"`
	Categories []DRECategory   `json:"categories,omitempty"`
}

type DRE struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Lines []DRELine `json:"lines"`
}

// DREEntry is one aggregated row feeding the DRE builder.
type DREEntry struct {
	CategoryID   *string
	CategoryName string
	DREGroup     string
	Type         string
	Amount       decimal.Decimal
}

// ============================================================================
// CASH FLOW
// ============================================================================

type CashFlowMonth struct {
	Month     string          `json:"month"`
	Label     string          `json:"label"`
	Entradas  decimal.Decimal `json:"entradas"`
	Saidas    decimal.Decimal `json:"saidas"`
	Saldo     decimal.Decimal `json:"saldo"`
	Acumulado decimal.Decimal `json:"acumulado"`
	Projected bool            `json:"projected"`
}

type CashFlow struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	History        []CashFlowMonth `json:"history"`
	Projection     []CashFlowMonth `json:"projection"`
}

// CashFlowItem is a dated receita or despesa amount, realized or expected.
type CashFlowItem struct {
	Date   time.Time
	Type   string
	Amount decimal.Decimal
}
