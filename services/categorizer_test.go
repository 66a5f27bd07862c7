package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "pag ifood sao paulo", NormalizeLabel("PAG*IFOOD  São Paulo"))
	assert.Equal(t, "condominio edificio", NormalizeLabel("Condomínio - Edifício!"))
	assert.Equal(t, "", NormalizeLabel("  *** "))
}

func TestMatchStaticRule(t *testing.T) {
	cases := map[string]string{
		"PAG*IFOOD São Paulo": "Alimentação",
		"DAS SIMPLES":         "Impostos",
		"Simples Nacional":    "Impostos",
		"TIM CELULAR":         "Telefone e Internet",
		"Uber *Trip":          "Transporte",
		"Posto Shell BR":      "Combustível",
		"Salário março":       "Salários",
		"Condomínio":          "Aluguel",
	}
	for label, want := range cases {
		got, ok := MatchStaticRule(label)
		assert.True(t, ok, label)
		assert.Equal(t, want, got, label)
	}

	for _, label := range []string{"Timbre", "Consulta médica", "Udas"} {
		_, ok := MatchStaticRule(label)
		assert.False(t, ok, label)
	}
}

func claudeStub(t *testing.T, reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		var req ClaudeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Messages)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": reply}},
		})
	}))
}

func TestGetCategory_RuleWinsWithoutBackends(t *testing.T) {
	c := NewCategorizerService(nil, nil, nil)

	category, source := c.GetCategory(context.Background(), "UBER *TRIP", []string{"Transporte"})
	assert.Equal(t, "Transporte", category)
	assert.Equal(t, SourceRule, source)

	category, source = c.GetCategory(context.Background(), "Mercadinho do Zé", []string{"Alimentação"})
	assert.Empty(t, category)
	assert.Equal(t, SourceDefault, source)
}

func TestGetCategory_CacheHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT category FROM label_mappings").
		WithArgs("mercadinho do ze").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Alimentação"))

	c := NewCategorizerService(db, nil, nil)
	category, source := c.GetCategory(context.Background(), "Mercadinho do Zé", nil)
	assert.Equal(t, "Alimentação", category)
	assert.Equal(t, SourceCache, source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCategory_AIFallbackIsStored(t *testing.T) {
	srv := claudeStub(t, "Fornecedores.")
	defer srv.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT category FROM label_mappings").
		WithArgs("mercadinho do ze").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO label_mappings").
		WithArgs("mercadinho do ze", "Fornecedores").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ai := NewClaudeAIService("test-key", nil)
	ai.baseURL = srv.URL
	c := NewCategorizerService(db, ai, nil)

	category, source := c.GetCategory(context.Background(), "Mercadinho do Zé", []string{"Fornecedores", "Outros"})
	assert.Equal(t, "Fornecedores", category)
	assert.Equal(t, SourceAI, source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaudeAIService_Errors(t *testing.T) {
	_, err := NewClaudeAIService("", nil).Chat(context.Background(), "", []ClaudeMessage{{Role: "user", Content: "oi"}})
	assert.ErrorIs(t, err, ErrAINotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
	}))
	defer srv.Close()

	ai := NewClaudeAIService("test-key", nil)
	ai.baseURL = srv.URL
	_, err = ai.Chat(context.Background(), "", []ClaudeMessage{{Role: "user", Content: "oi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = ai.Chat(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
