package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Conversation struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required,max=4000"`
}

type ChatResponse struct {
	ConversationID string      `json:"conversation_id"`
	Reply          ChatMessage `json:"reply"`
}

const (
	InsightWarning = "warning"
	InsightDanger  = "danger"
	InsightInfo    = "info"
)

type Insight struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// FinancialSnapshot is the context handed to the advisor and the insight rules.
type FinancialSnapshot struct {
	Month           MonthTotals     `json:"month"`
	TotalBalance    decimal.Decimal `json:"total_balance"`
	TopExpenses     []CategoryTotal `json:"top_expenses"`
	OverduePagar    DueSummary      `json:"overdue_payables"`
	OverdueReceber  DueSummary      `json:"overdue_receivables"`
	BudgetOverruns  []BudgetLine    `json:"budget_overruns"`
	LowStock        []Product       `json:"low_stock"`
	NegativeBalance bool            `json:"negative_balance"`
}
