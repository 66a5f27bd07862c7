package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindReceber = "receber"
	KindPagar   = "pagar"

	InstallmentPendente  = "pendente"
	InstallmentPago      = "pago"
	InstallmentVencido   = "vencido"
	InstallmentCancelado = "cancelado"
)

type Installment struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	GroupID       string          `json:"group_id"`
	Kind          string          `json:"kind"`
	Description   string          `json:"description"`
	Number        int             `json:"number"`
	TotalCount    int             `json:"total_count"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ContactID     *string         `json:"contact_id,omitempty"`
	ContactName   string          `json:"contact_name,omitempty"`
	CategoryID    *string         `json:"category_id,omitempty"`
	BankAccountID *string         `json:"bank_account_id,omitempty"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TransactionType is the ledger type produced when the installment is paid.
func (i Installment) TransactionType() string {
	if i.Kind == KindPagar {
		return TypeDespesa
	}
	return TypeReceita
}

type InstallmentRequest struct {
	Kind          string          `json:"kind" binding:"required,oneof=receber pagar"`
	Description   string          `json:"description" binding:"required,max=200"`
	TotalAmount   decimal.Decimal `json:"total_amount" binding:"required"`
	Count         int             `json:"count" binding:"required,min=1,max=360"`
	FirstDueDate  string          `json:"first_due_date" binding:"required"`
	ContactID     *string         `json:"contact_id"`
	CategoryID    *string         `json:"category_id"`
	BankAccountID *string         `json:"bank_account_id"`
}

type PayInstallmentRequest struct {
	PaidAt        string           `json:"paid_at"`
	BankAccountID *string          `json:"bank_account_id"`
	Amount        *decimal.Decimal `json:"amount"`
}

// InstallmentPlan is one computed row of a split, before persistence.
type InstallmentPlan struct {
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

type InstallmentFilter struct {
	Kind      string
	Status    string
	ContactID string
	GroupID   string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type AgingBucket struct {
	Label  string          `json:"label"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}
