package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{services.ErrNotFound, http.StatusNotFound, `{"error":"Not found"}`},
		{fmt.Errorf("%w: amount must be greater than zero", services.ErrInvalidInput), http.StatusBadRequest,
			`{"error":"invalid input: amount must be greater than zero"}`},
		{utils.ErrInvalidDate, http.StatusBadRequest, `{"error":"invalid date"}`},
		{fmt.Errorf("%w: category is in use", services.ErrConflict), http.StatusConflict, `{"error":"conflict: category is in use"}`},
		{services.ErrForbidden, http.StatusForbidden, `{"error":"Access denied"}`},
		{services.ErrModuleDisabled, http.StatusForbidden, `{"error":"module disabled"}`},
		{services.ErrAINotConfigured, http.StatusServiceUnavailable, `{"error":"ANTHROPIC_API_KEY not set"}`},
		{services.ErrTOTPRequired, http.StatusUnauthorized, fmt.Sprintf(`{"error":%q,"requires_2fa":true}`, services.ErrTOTPRequired.Error())},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c, w := testContext("/")
			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
			if tt.status >= http.StatusInternalServerError {
				assert.Len(t, c.Errors, 1)
			} else {
				assert.Empty(t, c.Errors)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query string
		want  Page
	}{
		{"/", Page{Number: 1, Size: defaultPageSize}},
		{"/?page=3&page_size=50", Page{Number: 3, Size: 50}},
		{"/?page=0&page_size=-1", Page{Number: 1, Size: defaultPageSize}},
		{"/?page=abc&page_size=1000", Page{Number: 1, Size: maxPageSize}},
	}

	for _, tt := range tests {
		c, _ := testContext(tt.query)
		assert.Equal(t, tt.want, parsePage(c), tt.query)
	}

	assert.Equal(t, 40, Page{Number: 3, Size: 20}.Offset())
}

func TestPaginated(t *testing.T) {
	resp := paginated([]string{"a"}, 41, Page{Number: 2, Size: 20})
	assert.Equal(t, int64(41), resp.TotalRows)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 2, resp.CurrentPage)

	assert.Equal(t, 0, paginated([]string{}, 0, Page{Number: 1, Size: 20}).TotalPages)
}

func TestDateRange(t *testing.T) {
	c, _ := testContext("/?from=2024-01-01&to=2024-03-31")
	from, to, err := dateRange(c)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", from.Format(utils.DateLayout))
	assert.Equal(t, "2024-03-31", to.Format(utils.DateLayout))

	c, _ = testContext("/")
	from, to, err = dateRange(c)
	require.NoError(t, err)
	assert.Equal(t, 1, from.Day())
	assert.Equal(t, from.Month(), to.Month())

	c, _ = testContext("/?from=2024-03-31&to=2024-01-01")
	_, _, err = dateRange(c)
	assert.ErrorIs(t, err, utils.ErrInvalidDate)

	c, _ = testContext("/?from=amanha")
	_, _, err = dateRange(c)
	assert.Error(t, err)
}
