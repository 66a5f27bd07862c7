package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FreqSemanal    = "semanal"
	FreqMensal     = "mensal"
	FreqBimestral  = "bimestral"
	FreqTrimestral = "trimestral"
	FreqSemestral  = "semestral"
	FreqAnual      = "anual"
)

type RecurringTemplate struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	CategoryID    *string         `json:"category_id,omitempty"`
	BankAccountID *string         `json:"bank_account_id,omitempty"`
	ContactID     *string         `json:"contact_id,omitempty"`
	Frequency     string          `json:"frequency"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	NextDate      time.Time       `json:"next_date"`
	Active        bool            `json:"active"`
	AutoPay       bool            `json:"auto_pay"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type RecurringRequest struct {
	Description   string          `json:"description" binding:"required,max=255"`
	Type          string          `json:"type" binding:"required,oneof=receita despesa"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	CategoryID    *string         `json:"category_id"`
	BankAccountID *string         `json:"bank_account_id"`
	ContactID     *string         `json:"contact_id"`
	Frequency     string          `json:"frequency" binding:"required,oneof=semanal mensal bimestral trimestral semestral anual"`
	StartDate     string          `json:"start_date" binding:"required"`
	EndDate       string          `json:"end_date"`
	Active        *bool           `json:"active"`
	AutoPay       bool            `json:"auto_pay"`
}

type GenerateResult struct {
	Generated int `json:"generated"`
	Templates int `json:"templates"`
}
