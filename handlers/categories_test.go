package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/services"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categoryCols = []string{"id", "tenant_id", "name", "type", "color", "parent_id", "dre_group", "created_at", "updated_at"}

func categoryRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &CategoryHandler{
		Categories: services.NewCategoryService(db, services.NewCategorizerService(nil, nil, nil)),
		Notify:     &Notifier{},
	}

	r := gin.New()
	g := r.Group("/categories", func(c *gin.Context) {
		c.Set("tenant_id", "tenant-1")
		c.Next()
	})
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.DELETE("/:id", h.Delete)
	g.POST("/suggest", h.Suggest)
	return r, mock
}

func send(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCategoryHandler_ListFiltersByType(t *testing.T) {
	r, mock := categoryRouter(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM categories WHERE tenant_id = \\$1 AND type = \\$2").
		WithArgs("tenant-1", "despesa").
		WillReturnRows(sqlmock.NewRows(categoryCols).
			AddRow("cat-1", "tenant-1", "Aluguel", "despesa", "#ff0000", nil, "despesas_operacionais", now, now))

	w := send(r, http.MethodGet, "/categories?type=despesa", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Aluguel"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_GetNotFound(t *testing.T) {
	r, mock := categoryRouter(t)
	mock.ExpectQuery("SELECT (.+) FROM categories WHERE id = \\$1").
		WithArgs("missing", "tenant-1").
		WillReturnRows(sqlmock.NewRows(categoryCols))

	w := send(r, http.MethodGet, "/categories/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_CreateValidation(t *testing.T) {
	r, _ := categoryRouter(t)

	w := send(r, http.MethodPost, "/categories", `{"name":"Frete","type":"transferencia"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategoryHandler_CreateDuplicate(t *testing.T) {
	r, mock := categoryRouter(t)
	mock.ExpectQuery("INSERT INTO categories").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "categories_tenant_id_name_type_key"})

	w := send(r, http.MethodPost, "/categories", `{"name":"Frete","type":"despesa"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate categories_tenant_id_name_type")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_DeleteInUse(t *testing.T) {
	r, mock := categoryRouter(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cat-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := send(r, http.MethodDelete, "/categories/cat-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryHandler_Suggest(t *testing.T) {
	r, mock := categoryRouter(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM categories WHERE tenant_id = \\$1 ORDER BY").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows(categoryCols).
			AddRow("cat-1", "tenant-1", "Aluguel", "despesa", "", nil, "despesas_operacionais", now, now).
			AddRow("cat-2", "tenant-1", "Transporte", "despesa", "", nil, "despesas_operacionais", now, now))

	w := send(r, http.MethodPost, "/categories/suggest", `{"label":"UBER *TRIP"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"label":"UBER *TRIP","category":"Transporte","category_id":"cat-2","source":"regra"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
