package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":     GetUserID(c),
		"tenant_id":   GetTenantID(c),
		"role":        GetRole(c),
		"super_admin": IsSuperAdmin(c),
	})
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), whoami)
	return r
}

func signedToken(t *testing.T, secret string) string {
	token, err := utils.GenerateAccessToken(secret, utils.Claims{
		UserID: "user-1", TenantID: "tenant-1", Email: "ana@acme.com.br", Role: "admin", SuperAdmin: true,
	})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret))
	w := httptest.NewRecorder()
	authRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-1","tenant_id":"tenant-1","role":"admin","super_admin":true}`, w.Body.String())
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me?token="+signedToken(t, testSecret), nil)
	w := httptest.NewRecorder()
	authRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "Authorization required"},
		{"wrong scheme", "Basic abc", "Invalid authorization header"},
		{"garbage", "Bearer not-a-jwt", "Invalid or expired token"},
		{"other secret", "Bearer " + signedToken(t, "other-secret"), "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authRouter().ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}
