package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ContactCliente    = "cliente"
	ContactFornecedor = "fornecedor"
)

type Contact struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Document  string          `json:"document,omitempty"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	StageID   *string         `json:"stage_id,omitempty"`
	Position  int             `json:"position"`
	DealValue decimal.Decimal `json:"deal_value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ContactRequest struct {
	Kind      string          `json:"kind" binding:"required,oneof=cliente fornecedor"`
	Name      string          `json:"name" binding:"required,max=255"`
	Document  string          `json:"document"`
	Email     string          `json:"email" binding:"omitempty,email"`
	Phone     string          `json:"phone"`
	Notes     string          `json:"notes"`
	StageID   *string         `json:"stage_id"`
	DealValue decimal.Decimal `json:"deal_value"`
}

type ContactHistory struct {
	Contact      Contact         `json:"contact"`
	Transactions []Transaction   `json:"transactions"`
	Installments []Installment   `json:"installments"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalOpen    decimal.Decimal `json:"total_open"`
}

// ============================================================================
// KANBAN PIPELINE
// ============================================================================

type PipelineStage struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Position  int       `json:"position"`
	Cards     []Contact `json:"cards,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StageRequest struct {
	Name     string `json:"name" binding:"required,max=80"`
	Color    string `json:"color"`
	Position *int   `json:"position"`
}

type MoveCardRequest struct {
	ContactID string `json:"contact_id" binding:"required"`
	StageID   string `json:"stage_id" binding:"required"`
	Position  int    `json:"position"`
}

var DefaultStages = []string{"Lead", "Contato", "Proposta", "Negociação", "Fechado"}
