package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

type ScheduledReportHandler struct {
	Scheduled *services.ScheduledReportService
	Notify    *Notifier
}

func (h *ScheduledReportHandler) List(c *gin.Context) {
	reports, err := h.Scheduled.List(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ScheduledReportHandler) Get(c *gin.Context) {
	r, err := h.Scheduled.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ScheduledReportHandler) Create(c *gin.Context) {
	var req models.ScheduledReportRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.Scheduled.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "scheduled_reports", "create", r.ID)
	c.JSON(http.StatusCreated, r)
}

func (h *ScheduledReportHandler) Update(c *gin.Context) {
	var req models.ScheduledReportRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.Scheduled.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "scheduled_reports", "update", r.ID)
	c.JSON(http.StatusOK, r)
}

func (h *ScheduledReportHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Scheduled.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "scheduled_reports", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Scheduled report deleted"})
}

// Render returns the message text without sending it.
func (h *ScheduledReportHandler) Render(c *gin.Context) {
	text, err := h.Scheduled.Render(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": text})
}

// Send delivers the report now. Delivery failures come back in the dispatch.
func (h *ScheduledReportHandler) Send(c *gin.Context) {
	dispatch, err := h.Scheduled.Send(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"),
		models.TriggerManual, time.Now().In(utils.Location))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatch)
}

func (h *ScheduledReportHandler) Dispatches(c *gin.Context) {
	dispatches, err := h.Scheduled.Dispatches(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatches)
}

func (h *ScheduledReportHandler) GetWhatsAppSettings(c *gin.Context) {
	settings, err := h.Scheduled.WhatsAppSettings(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *ScheduledReportHandler) SaveWhatsAppSettings(c *gin.Context) {
	var req models.WhatsAppSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.Scheduled.SaveWhatsAppSettings(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "whatsapp_settings", "update", "")
	c.JSON(http.StatusOK, settings)
}
