package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

// ============================================================================
// CHANGE NOTIFICATION
// ============================================================================

// Notifier runs the side effects every successful write shares: report cache
// invalidation, the tenant websocket signal and the audit trail.
type Notifier struct {
	WS    *WSHandler
	Cache *services.CacheService
	Audit *services.AuditService
}

func (n *Notifier) Changed(c *gin.Context, entity, action, id string) {
	if n == nil {
		return
	}
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)

	if err := n.Cache.Invalidate(ctx, tenantID); err != nil {
		_ = c.Error(err)
	}
	if n.WS != nil {
		n.WS.BroadcastUpdate(tenantID, entity, action, id)
	}
	n.Audit.Record(ctx, tenantID, middleware.GetUserID(c), action, entity, id)
}

// ============================================================================
// ERRORS
// ============================================================================

// respondError maps service errors to HTTP statuses. Unexpected errors are
// attached to the context for the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, services.ErrTOTPRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "requires_2fa": true})
		return
	case errors.Is(err, services.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, utils.ErrInvalidDate),
		errors.Is(err, utils.ErrInvalidAmount):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrForbidden):
		status, msg = http.StatusForbidden, "Access denied"
	case errors.Is(err, services.ErrModuleDisabled):
		status, msg = http.StatusForbidden, "module disabled"
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrInvalidTOTP):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrAINotConfigured),
		errors.Is(err, services.ErrWhatsAppNotConfigured),
		errors.Is(err, services.ErrEmailNotConfigured):
		status, msg = http.StatusServiceUnavailable, err.Error()
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// ============================================================================
// QUERY HELPERS
// ============================================================================

// queryDate parses an optional date query parameter.
func queryDate(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(raw, utils.DateLayout)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// dateRange reads from/to, defaulting to the current month.
func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	today := utils.Today()
	from, to := utils.MonthBounds(today.Year(), today.Month())

	f, err := queryDate(c, "from")
	if err != nil {
		return from, to, err
	}
	t, err := queryDate(c, "to")
	if err != nil {
		return from, to, err
	}
	if f != nil {
		from = *f
	}
	if t != nil {
		to = *t
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("%w: to is before from", utils.ErrInvalidDate)
	}
	return from, to, nil
}

func optionalString(c *gin.Context, name string) *string {
	v := strings.TrimSpace(c.PostForm(name))
	if v == "" {
		return nil
	}
	return &v
}
