package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type BudgetHandler struct {
	Budgets *services.BudgetService
	Notify  *Notifier
}

// period reads the :year and :month path parameters.
func period(c *gin.Context) (int, int, error) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid year", services.ErrInvalidInput)
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid month", services.ErrInvalidInput)
	}
	return year, month, nil
}

// GetBudget returns planned vs realized per category for the month.
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	year, month, err := period(c)
	if err != nil {
		respondError(c, err)
		return
	}

	comparison, err := h.Budgets.Compare(c.Request.Context(), middleware.GetTenantID(c), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// SaveBudget replaces the planned amounts of the listed categories.
func (h *BudgetHandler) SaveBudget(c *gin.Context) {
	year, month, err := period(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.BudgetRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)
	if err := h.Budgets.Upsert(ctx, tenantID, year, month, req.Items); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "budgets", "update", fmt.Sprintf("%04d-%02d", year, month))

	comparison, err := h.Budgets.Compare(ctx, tenantID, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// CopyPrevious seeds the month with the previous month's planned amounts.
func (h *BudgetHandler) CopyPrevious(c *gin.Context) {
	year, month, err := period(c)
	if err != nil {
		respondError(c, err)
		return
	}

	n, err := h.Budgets.CopyPrevious(c.Request.Context(), middleware.GetTenantID(c), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	if n > 0 {
		h.Notify.Changed(c, "budgets", "copy", fmt.Sprintf("%04d-%02d", year, month))
	}
	c.JSON(http.StatusOK, gin.H{"copied": n})
}
