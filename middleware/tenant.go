package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/models"
	"github.com/sirupsen/logrus"
)

// TenantLoader resolves the tenant behind a token and the caller's current
// role in it. MemberRole returns "" when the user no longer belongs to the
// tenant.
type TenantLoader interface {
	TenantAccess(ctx context.Context, tenantID string) (*models.Tenant, error)
	MemberRole(ctx context.Context, tenantID, userID string) (string, error)
}

var errTenantMissing = errors.New("tenant not found")

// TenantGuard rejects suspended tenants and removed members, replaces the
// token's role with the stored one and loads the effective module set.
func TenantGuard(loader TenantLoader, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, userID := GetTenantID(c), GetUserID(c)
		if tenantID == "" || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		tenant, err := loader.TenantAccess(c.Request.Context(), tenantID)
		if err != nil || tenant == nil {
			if err == nil {
				err = errTenantMissing
			}
			log.WithError(err).WithField("tenant_id", tenantID).Warn("tenant lookup failed")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Tenant unavailable"})
			return
		}

		if tenant.Status == models.TenantSuspended {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Tenant suspended"})
			return
		}

		role, err := loader.MemberRole(c.Request.Context(), tenantID, userID)
		if err != nil {
			log.WithError(err).WithField("tenant_id", tenantID).Warn("membership lookup failed")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Tenant unavailable"})
			return
		}
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ctxRole, role)
		c.Set(ctxModules, tenant.Modules)
		c.Next()
	}
}

func GetModules(c *gin.Context) []string {
	if v, ok := c.Get(ctxModules); ok {
		if modules, ok := v.([]string); ok {
			return modules
		}
	}
	return nil
}

// RequireModule must run after TenantGuard.
func RequireModule(module string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, m := range GetModules(c) {
			if m == module {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "module disabled", "module": module})
	}
}

// RequireWrite keeps viewers read-only.
func RequireWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if GetRole(c) == models.RoleViewer {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Read-only access"})
				return
			}
		}
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

func SuperAdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsSuperAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Super admin only"})
			return
		}
		c.Next()
	}
}
