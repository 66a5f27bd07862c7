package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

// MaxPreview caps the number of upcoming dates returned by Preview.
const MaxPreview = 24

type RecurringHandler struct {
	Recurring *services.RecurringService
	Notify    *Notifier
}

func (h *RecurringHandler) List(c *gin.Context) {
	templates, err := h.Recurring.List(c.Request.Context(), middleware.GetTenantID(c), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *RecurringHandler) Get(c *gin.Context) {
	t, err := h.Recurring.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *RecurringHandler) Create(c *gin.Context) {
	var req models.RecurringRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.Recurring.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "recurring", "create", t.ID)
	c.JSON(http.StatusCreated, t)
}

func (h *RecurringHandler) Update(c *gin.Context) {
	var req models.RecurringRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.Recurring.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "recurring", "update", t.ID)
	c.JSON(http.StatusOK, t)
}

func (h *RecurringHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Recurring.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "recurring", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Recurring template deleted"})
}

// Preview lists the next n occurrence dates of the template.
func (h *RecurringHandler) Preview(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "6"))
	if err != nil || n < 1 || n > MaxPreview {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be between 1 and 24"})
		return
	}

	t, err := h.Recurring.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	dates := services.Preview(*t, n)
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(utils.DateLayout)
	}
	c.JSON(http.StatusOK, gin.H{"dates": out})
}

// Generate materializes every occurrence due up to today for the tenant.
func (h *RecurringHandler) Generate(c *gin.Context) {
	result, err := h.Recurring.Generate(c.Request.Context(), middleware.GetTenantID(c), utils.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Generated > 0 {
		h.Notify.Changed(c, "transactions", "generate", "")
	}
	c.JSON(http.StatusOK, result)
}
