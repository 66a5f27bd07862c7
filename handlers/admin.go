package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/migration"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the super-admin console: plans, tenants, billing and
// maintenance. Every route sits behind SuperAdminOnly.
type AdminHandler struct {
	DB    *sql.DB
	Admin *services.AdminService
	Audit *services.AuditService
	Log   *logrus.Logger
}

// ============================================
// Tenants
// ============================================

// ListTenants - GET /api/v1/admin/tenants?status=&search=
func (h *AdminHandler) ListTenants(c *gin.Context) {
	tenants, err := h.Admin.ListTenants(c.Request.Context(), c.Query("status"), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenants)
}

func (h *AdminHandler) SetTenantPlan(c *gin.Context) {
	var req struct {
		PlanCode string `json:"plan_code" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	tenant, err := h.Admin.SetTenantPlan(c.Request.Context(), c.Param("id"), req.PlanCode)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, tenant.ID, "set_plan")
	c.JSON(http.StatusOK, tenant)
}

func (h *AdminHandler) SetTenantModules(c *gin.Context) {
	var req models.TenantModulesRequest
	if !bindJSON(c, &req) {
		return
	}

	tenant, err := h.Admin.SetTenantModules(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, tenant.ID, "set_modules")
	c.JSON(http.StatusOK, tenant)
}

func (h *AdminHandler) SetTenantStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required,oneof=ativo suspenso"`
	}
	if !bindJSON(c, &req) {
		return
	}

	tenant, err := h.Admin.SetTenantStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, tenant.ID, "set_status_"+req.Status)
	c.JSON(http.StatusOK, tenant)
}

// audit records admin actions against the affected tenant.
func (h *AdminHandler) audit(c *gin.Context, tenantID, action string) {
	h.Audit.Record(c.Request.Context(), tenantID, middleware.GetUserID(c), action, "tenant", tenantID)
}

// ============================================
// Plans
// ============================================

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.Admin.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req models.PlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.Admin.CreatePlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	var req models.PlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.Admin.UpdatePlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *AdminHandler) DeletePlan(c *gin.Context) {
	if err := h.Admin.DeletePlan(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan deleted"})
}

// ============================================
// Billing
// ============================================

// GenerateInvoices - POST /api/v1/admin/billing/generate {"month":"2026-03"}
// Defaults to the current month; tenants already billed are skipped.
func (h *AdminHandler) GenerateInvoices(c *gin.Context) {
	var req struct {
		Month string `json:"month"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if req.Month == "" {
		req.Month = utils.MonthKey(utils.Today())
	}

	n, err := h.Admin.GenerateInvoices(c.Request.Context(), req.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": req.Month, "generated": n})
}

func (h *AdminHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.Admin.ListInvoices(c.Request.Context(), c.Query("month"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *AdminHandler) PayInvoice(c *gin.Context) {
	invoice, err := h.Admin.PayInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *AdminHandler) CancelInvoice(c *gin.Context) {
	invoice, err := h.Admin.CancelInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *AdminHandler) Metrics(c *gin.Context) {
	metrics, err := h.Admin.Metrics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// ============================================
// Maintenance
// ============================================

// EncryptTokens - POST /api/v1/admin/maintenance/encrypt-tokens
// Encrypts WhatsApp tokens stored before encryption was enabled.
func (h *AdminHandler) EncryptTokens(c *gin.Context) {
	result, err := migration.EncryptLegacyTokens(c.Request.Context(), h.DB, h.Log)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Log.WithFields(logrus.Fields{
		"migrated": result.Migrated,
		"skipped":  result.Skipped,
		"errors":   result.Errors,
	}).Info("legacy token encryption finished")
	c.JSON(http.StatusOK, result)
}
