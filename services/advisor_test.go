package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jbapex/financeiro-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdvisorMock(t *testing.T, claudeURL string) (*AdvisorService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ai := NewClaudeAIService("test-key", nil)
	ai.baseURL = claudeURL
	reports := NewReportService(db, nil, NewBankAccountService(db), nil, nil)
	return NewAdvisorService(db, ai, reports, nil, nil, nil), mock
}

// expectSnapshot answers the reads behind Snapshot for a tenant without
// budget or stock modules.
func expectSnapshot(mock sqlmock.Sqlmock) {
	now := day(2024, 3, 1)
	mock.ExpectQuery(`FROM tenants t`).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "document", "plan_code", "plan_name", "monthly_price",
			"status", "modules_enabled", "modules_disabled", "modules", "users", "created_at", "updated_at"}).
			AddRow("tenant-1", "Loja", "", "basico", "Básico", "99.90", models.TenantActive,
				"{}", "{}", "{financeiro,ia}", 1, now, now))
	mock.ExpectQuery(`SELECT to_char\(t.date, 'YYYY-MM'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"month", "receitas", "despesas"}))
	mock.ExpectQuery(`FROM bank_accounts a`).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow("1200.00"))
	for i := 0; i < 4; i++ {
		mock.ExpectQuery(`FROM installments`).
			WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(0, "0"))
	}
	mock.ExpectQuery(`GROUP BY t.category_id`).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "name", "color", "sum", "count"}))
}

func TestChat_NothingStoredWhenAIFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, mock := newAdvisorMock(t, srv.URL)
	expectSnapshot(mock)

	_, err := svc.Chat(context.Background(), "tenant-1", "user-1", models.ChatRequest{Message: "Como está meu caixa?"}, day(2024, 3, 15))
	require.Error(t, err)
	// Any conversation or message write would be an unexpected call.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChat_StoresBothMessagesAfterReply(t *testing.T) {
	srv := claudeStub(t, "Seu saldo é positivo.")
	defer srv.Close()

	svc, mock := newAdvisorMock(t, srv.URL)
	expectSnapshot(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ai_conversations`).
		WithArgs("tenant-1", "user-1", "Como está meu caixa?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`INSERT INTO ai_messages \(conversation_id, role, content\) VALUES \(\$1, 'user', \$2\)`).
		WithArgs("conv-1", "Como está meu caixa?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`VALUES \(\$1, 'assistant', \$2`).
		WithArgs("conv-1", "Seu saldo é positivo.").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("msg-2", day(2024, 3, 15)))
	mock.ExpectCommit()

	resp, err := svc.Chat(context.Background(), "tenant-1", "user-1", models.ChatRequest{Message: "Como está meu caixa?"}, day(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "Seu saldo é positivo.", resp.Reply.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}
