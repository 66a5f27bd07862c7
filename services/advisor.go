package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"

	"github.com/sirupsen/logrus"
)

const (
	// HistoryWindow is how many stored messages are replayed to the model.
	HistoryWindow = 20

	conversationTitleLen = 60
)

const advisorPrompt = `Você é o consultor financeiro do JB APEX Financeiro, atendendo o dono de uma pequena empresa brasileira.
Responda em português, de forma objetiva e prática, usando valores em reais.
Baseie-se apenas nos dados da empresa abaixo; quando faltar informação, diga o que precisaria saber.
Não invente lançamentos nem números.

Dados da empresa (JSON):
`

type AdvisorService struct {
	db       *sql.DB
	ai       *ClaudeAIService
	reports  *ReportService
	budgets  *BudgetService
	products *ProductService
	log      *logrus.Logger
}

func NewAdvisorService(db *sql.DB, ai *ClaudeAIService, reports *ReportService, budgets *BudgetService, products *ProductService, log *logrus.Logger) *AdvisorService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AdvisorService{db: db, ai: ai, reports: reports, budgets: budgets, products: products, log: log}
}

// Snapshot gathers the figures the advisor and the insight rules work from.
// Budget and stock data are only read when the tenant has those modules.
func (s *AdvisorService) Snapshot(ctx context.Context, tenantID string, today time.Time) (*models.FinancialSnapshot, error) {
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}

	dash, err := s.reports.Dashboard(ctx, tenantID, today, today)
	if err != nil {
		return nil, err
	}

	snap := &models.FinancialSnapshot{
		Month:           dash.Month,
		TotalBalance:    dash.TotalBalance,
		TopExpenses:     dash.TopExpenses,
		OverduePagar:    dash.OverduePagar,
		OverdueReceber:  dash.OverdueReceber,
		BudgetOverruns:  []models.BudgetLine{},
		LowStock:        []models.Product{},
		NegativeBalance: dash.TotalBalance.IsNegative(),
	}

	if hasModule(tenant.Modules, models.ModuleOrcamento) {
		if snap.BudgetOverruns, err = s.budgets.Overruns(ctx, tenantID, today.Year(), int(today.Month())); err != nil {
			return nil, err
		}
	}
	if hasModule(tenant.Modules, models.ModuleEstoque) {
		if snap.LowStock, err = s.products.LowStock(ctx, tenantID); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *AdvisorService) Insights(ctx context.Context, tenantID string, today time.Time) ([]models.Insight, error) {
	snap, err := s.Snapshot(ctx, tenantID, today)
	if err != nil {
		return nil, err
	}
	return BuildInsights(*snap), nil
}

// ConversationTitle is the first line of the opening message, shortened.
func ConversationTitle(message string) string {
	title := strings.TrimSpace(strings.SplitN(strings.TrimSpace(message), "\n", 2)[0])
	if utf8.RuneCountInString(title) > conversationTitleLen {
		title = strings.TrimSpace(string([]rune(title)[:conversationTitleLen])) + "..."
	}
	if title == "" {
		title = "Nova conversa"
	}
	return title
}

// Chat answers a message inside a conversation, creating it when no id is
// given. Both messages are stored only once the model has replied.
func (s *AdvisorService) Chat(ctx context.Context, tenantID, userID string, req models.ChatRequest, today time.Time) (*models.ChatResponse, error) {
	if !s.ai.Configured() {
		return nil, ErrAINotConfigured
	}

	var history []ClaudeMessage
	if req.ConversationID != "" {
		conv, err := s.Conversation(ctx, tenantID, userID, req.ConversationID)
		if err != nil {
			return nil, err
		}
		msgs := conv.Messages
		if len(msgs) > HistoryWindow {
			msgs = msgs[len(msgs)-HistoryWindow:]
		}
		for _, m := range msgs {
			history = append(history, ClaudeMessage{Role: m.Role, Content: m.Content})
		}
		// The API requires the first message to come from the user.
		for len(history) > 0 && history[0].Role != "user" {
			history = history[1:]
		}
	}
	history = append(history, ClaudeMessage{Role: "user", Content: req.Message})

	snap, err := s.Snapshot(ctx, tenantID, today)
	if err != nil {
		return nil, err
	}
	contextJSON, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	reply, err := s.ai.Chat(ctx, advisorPrompt+string(contextJSON), history)
	if err != nil {
		return nil, err
	}

	resp := &models.ChatResponse{ConversationID: req.ConversationID}
	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if resp.ConversationID == "" {
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO ai_conversations (tenant_id, user_id, title) VALUES ($1, $2, $3) RETURNING id
			`, tenantID, userID, ConversationTitle(req.Message)).Scan(&resp.ConversationID); err != nil {
				return err
			}
		} else if _, err := tx.ExecContext(ctx, `
			UPDATE ai_conversations SET updated_at = NOW() WHERE id = $1
		`, resp.ConversationID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ai_messages (conversation_id, role, content) VALUES ($1, 'user', $2)
		`, resp.ConversationID, req.Message); err != nil {
			return err
		}

		resp.Reply = models.ChatMessage{Role: "assistant", Content: reply}
		return tx.QueryRowContext(ctx, `
			INSERT INTO ai_messages (conversation_id, role, content, created_at)
			VALUES ($1, 'assistant', $2, NOW() + INTERVAL '1 millisecond')
			RETURNING id, created_at
		`, resp.ConversationID, reply).Scan(&resp.Reply.ID, &resp.Reply.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AdvisorService) Conversations(ctx context.Context, tenantID, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, title, created_at, updated_at
		FROM ai_conversations
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY updated_at DESC
	`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.TenantID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Conversation returns a conversation with its messages, oldest first.
func (s *AdvisorService) Conversation(ctx context.Context, tenantID, userID, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, title, created_at, updated_at
		FROM ai_conversations WHERE id = $1 AND tenant_id = $2 AND user_id = $3
	`, id, tenantID, userID).Scan(&c.ID, &c.TenantID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, dbError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at FROM ai_messages
		WHERE conversation_id = $1 ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Messages = []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

func (s *AdvisorService) DeleteConversation(ctx context.Context, tenantID, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM ai_conversations WHERE id = $1 AND tenant_id = $2 AND user_id = $3
	`, id, tenantID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsAIUnavailable tells handlers to answer 503 rather than 500.
func IsAIUnavailable(err error) bool {
	return errors.Is(err, ErrAINotConfigured)
}
