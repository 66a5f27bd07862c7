package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Modules that a plan can grant.
const (
	ModuleFinanceiro   = "financeiro"
	ModuleCRM          = "crm"
	ModuleConciliacao  = "conciliacao"
	ModuleOrcamento    = "orcamento"
	ModuleEstoque      = "estoque"
	ModuleWhatsApp     = "whatsapp"
	ModuleIA           = "ia"
	ModuleRecorrencias = "recorrencias"
	ModuleRelatorios   = "relatorios"
)

var AllModules = []string{
	ModuleFinanceiro, ModuleCRM, ModuleConciliacao, ModuleOrcamento,
	ModuleEstoque, ModuleWhatsApp, ModuleIA, ModuleRecorrencias, ModuleRelatorios,
}

const (
	TenantActive    = "ativo"
	TenantSuspended = "suspenso"

	DefaultPlanCode = "basico"
)

type Tenant struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Document        string          `json:"document,omitempty"`
	PlanCode        string          `json:"plan_code"`
	PlanName        string          `json:"plan_name,omitempty"`
	PlanPrice       decimal.Decimal `json:"plan_price"`
	Status          string          `json:"status"`
	ModulesEnabled  []string        `json:"modules_enabled"`
	ModulesDisabled []string        `json:"modules_disabled"`
	Modules         []string        `json:"modules,omitempty"`
	UserCount       int             `json:"user_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Plan struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	MaxUsers     int             `json:"max_users"`
	Modules      []string        `json:"modules"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PlanRequest struct {
	Code         string          `json:"code" binding:"required,max=50"`
	Name         string          `json:"name" binding:"required"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	MaxUsers     int             `json:"max_users" binding:"required,min=1"`
	Modules      []string        `json:"modules"`
	Active       *bool           `json:"active"`
}

type TenantModulesRequest struct {
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
}

const (
	InvoiceOpen     = "aberta"
	InvoicePaid     = "paga"
	InvoiceCanceled = "cancelada"
)

type Invoice struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	TenantName string          `json:"tenant_name,omitempty"`
	Month      string          `json:"month"`
	PlanCode   string          `json:"plan_code"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	DueDate    time.Time       `json:"due_date"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type AdminMetrics struct {
	TenantsByStatus map[string]int  `json:"tenants_by_status"`
	MRR             decimal.Decimal `json:"mrr"`
	OpenInvoices    int             `json:"open_invoices"`
	OpenAmount      decimal.Decimal `json:"open_amount"`
}
