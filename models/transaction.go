package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeReceita       = "receita"
	TypeDespesa       = "despesa"
	TypeTransferencia = "transferencia"

	StatusPago     = "pago"
	StatusPendente = "pendente"

	DirectionOut = "saida"
	DirectionIn  = "entrada"
)

type Transaction struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Type          string          `json:"type"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	CategoryID    *string         `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"`
	BankAccountID *string         `json:"bank_account_id,omitempty"`
	ContactID     *string         `json:"contact_id,omitempty"`
	ContactName   string          `json:"contact_name,omitempty"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Tags          []string        `json:"tags"`
	InstallmentID *string         `json:"installment_id,omitempty"`
	RecurringID   *string         `json:"recurring_id,omitempty"`
	TransferGroup *string         `json:"transfer_group,omitempty"`
	Direction     string          `json:"transfer_direction,omitempty"`
	Reconciled    bool            `json:"reconciled"`
	CreatedBy     *string         `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Sign returns the effect of the entry on its account: -1 for despesas and
// outgoing transfer legs, +1 otherwise.
func (t Transaction) Sign() int {
	if t.Type == TypeDespesa || (t.Type == TypeTransferencia && t.Direction == DirectionOut) {
		return -1
	}
	return 1
}

type TransactionRequest struct {
	Type          string          `json:"type" binding:"required,oneof=receita despesa"`
	Description   string          `json:"description" binding:"required,max=255"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Date          string          `json:"date" binding:"required"`
	CategoryID    *string         `json:"category_id"`
	BankAccountID *string         `json:"bank_account_id"`
	ContactID     *string         `json:"contact_id"`
	Status        string          `json:"status" binding:"omitempty,oneof=pago pendente"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
	Tags          []string        `json:"tags"`
}

type TransactionFilter struct {
	From          *time.Time
	To            *time.Time
	Type          string
	Status        string
	CategoryID    string
	BankAccountID string
	ContactID     string
	Search        string
	Tag           string
	Limit         int
	Offset        int
}

type TransactionSummary struct {
	Receitas decimal.Decimal `json:"receitas"`
	Despesas decimal.Decimal `json:"despesas"`
	Saldo    decimal.Decimal `json:"saldo"`
	Count    int             `json:"count"`
}

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id" binding:"required"`
	ToAccountID   string          `json:"to_account_id" binding:"required,nefield=FromAccountID"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Date          string          `json:"date" binding:"required"`
	Description   string          `json:"description"`
}

// ============================================================================
// CSV IMPORT
// ============================================================================

type ColumnMapping struct {
	Date        string `json:"date" binding:"required"`
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type ImportOptions struct {
	Mapping      ColumnMapping `json:"mapping"`
	Delimiter    string        `json:"delimiter,omitempty"`
	DateFormat   string        `json:"date_format,omitempty"`
	DecimalComma bool          `json:"decimal_comma,omitempty"`
}

type ImportedRow struct {
	Line         int             `json:"line"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	SignedAmount decimal.Decimal `json:"signed_amount"`
	Type         string          `json:"type"`
	Category     string          `json:"category,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type RowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
}

type ImportPreview struct {
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	Delimiter string     `json:"delimiter"`
}
