package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MovementEntrada = "entrada"
	MovementSaida   = "saida"
	MovementAjuste  = "ajuste"
)

type Product struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	Cost        decimal.Decimal `json:"cost"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductRequest struct {
	SKU         string          `json:"sku" binding:"required,max=60"`
	Name        string          `json:"name" binding:"required,max=255"`
	Unit        string          `json:"unit"`
	Cost        decimal.Decimal `json:"cost"`
	Price       decimal.Decimal `json:"price"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
}

type StockMovement struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	Type         string          `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type StockMovementRequest struct {
	Type     string          `json:"type" binding:"required,oneof=entrada saida ajuste"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	Note     string          `json:"note"`
}
