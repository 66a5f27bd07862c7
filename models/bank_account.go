package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BankAccount struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	Name           string          `json:"name"`
	Bank           string          `json:"bank,omitempty"`
	Agency         string          `json:"agency,omitempty"`
	Number         string          `json:"number,omitempty"`
	Type           string          `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type BankAccountRequest struct {
	Name           string          `json:"name" binding:"required,max=120"`
	Bank           string          `json:"bank"`
	Agency         string          `json:"agency"`
	Number         string          `json:"number"`
	Type           string          `json:"type" binding:"omitempty,oneof=corrente poupanca caixa investimento"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Active         *bool           `json:"active"`
}

type BalanceSummary struct {
	Total    decimal.Decimal `json:"total"`
	Accounts []BankAccount   `json:"accounts"`
}
