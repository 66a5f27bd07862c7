package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatementPendente   = "pendente"
	StatementConciliado = "conciliado"
	StatementIgnorado   = "ignorado"
)

// StatementLine is one row of an imported bank statement. Amount is signed:
// credits positive, debits negative.
type StatementLine struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	BankAccountID string          `json:"bank_account_id"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Hash          string          `json:"-"`
	Status        string          `json:"status"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TransactionType maps the sign of the line to a ledger type.
func (l StatementLine) TransactionType() string {
	if l.Amount.IsNegative() {
		return TypeDespesa
	}
	return TypeReceita
}

type MatchSuggestion struct {
	Transaction Transaction     `json:"transaction"`
	DaysApart   int             `json:"days_apart"`
	AmountDiff  decimal.Decimal `json:"amount_diff"`
}

type MatchRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

type CreateFromStatementRequest struct {
	CategoryID *string `json:"category_id"`
	ContactID  *string `json:"contact_id"`
}

type AutoMatchResult struct {
	Matched   int `json:"matched"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
}
