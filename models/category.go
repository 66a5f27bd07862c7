package models

import "time"

// DRE groups, in statement order.
const (
	DREReceitaBruta         = "receita_bruta"
	DREDeducoes             = "deducoes"
	DRECustos               = "custos"
	DREDespesasOperacionais = "despesas_operacionais"
	DREReceitasFinanceiras  = "receitas_financeiras"
	DREDespesasFinanceiras  = "despesas_financeiras"
	DREOutras               = "outras"
)

type Category struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Color     string    `json:"color,omitempty"`
	ParentID  *string   `json:"parent_id,omitempty"`
	DREGroup  string    `json:"dre_group"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CategoryRequest struct {
	Name     string  `json:"name" binding:"required,max=120"`
	Type     string  `json:"type" binding:"required,oneof=receita despesa"`
	Color    string  `json:"color"`
	ParentID *string `json:"parent_id"`
	DREGroup string  `json:"dre_group" binding:"omitempty,oneof=receita_bruta deducoes custos despesas_operacionais receitas_financeiras despesas_financeiras outras"`
}

type CategorySuggestion struct {
	Label      string  `json:"label"`
	Category   string  `json:"category"`
	CategoryID *string `json:"category_id,omitempty"`
	Source     string  `json:"source"`
}
