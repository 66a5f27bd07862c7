package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/utils"
)

const (
	ctxUserID     = "user_id"
	ctxTenantID   = "tenant_id"
	ctxEmail      = "email"
	ctxRole       = "role"
	ctxSuperAdmin = "super_admin"
	ctxModules    = "modules"
)

// AuthMiddleware accepts "Authorization: Bearer <jwt>" or, for websocket
// upgrades that cannot set headers, a ?token= query parameter.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
				return
			}
			token = strings.TrimSpace(parts[1])
		} else {
			token = c.Query("token")
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := utils.ParseAccessToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxTenantID, claims.TenantID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxSuperAdmin, claims.SuperAdmin)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func GetTenantID(c *gin.Context) string {
	return c.GetString(ctxTenantID)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func IsSuperAdmin(c *gin.Context) bool {
	return c.GetBool(ctxSuperAdmin)
}
