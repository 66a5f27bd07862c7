package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

type InstallmentHandler struct {
	Installments *services.InstallmentService
	Notify       *Notifier
}

func (h *InstallmentHandler) List(c *gin.Context) {
	f := models.InstallmentFilter{
		Kind:      c.Query("kind"),
		Status:    c.Query("status"),
		ContactID: c.Query("contact_id"),
		GroupID:   c.Query("group_id"),
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		respondError(c, err)
		return
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		respondError(c, err)
		return
	}
	page := parsePage(c)
	f.Limit, f.Offset = page.Size, page.Offset()

	items, total, err := h.Installments.List(c.Request.Context(), middleware.GetTenantID(c), f, utils.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(items, total, page))
}

func (h *InstallmentHandler) Get(c *gin.Context) {
	item, err := h.Installments.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create splits the total into count monthly installments.
func (h *InstallmentHandler) Create(c *gin.Context) {
	var req models.InstallmentRequest
	if !bindJSON(c, &req) {
		return
	}

	items, err := h.Installments.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(items) > 0 {
		h.Notify.Changed(c, "installments", "create", items[0].GroupID)
	}
	c.JSON(http.StatusCreated, items)
}

func (h *InstallmentHandler) Pay(c *gin.Context) {
	var req models.PayInstallmentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	item, err := h.Installments.Pay(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "installments", "pay", item.ID)
	c.JSON(http.StatusOK, item)
}

func (h *InstallmentHandler) Unpay(c *gin.Context) {
	item, err := h.Installments.Unpay(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "installments", "unpay", item.ID)
	c.JSON(http.StatusOK, item)
}

func (h *InstallmentHandler) Cancel(c *gin.Context) {
	item, err := h.Installments.Cancel(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "installments", "cancel", item.ID)
	c.JSON(http.StatusOK, item)
}

func (h *InstallmentHandler) DeleteGroup(c *gin.Context) {
	group := c.Param("group_id")
	n, err := h.Installments.DeleteGroup(c.Request.Context(), middleware.GetTenantID(c), group)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "installments", "delete", group)
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *InstallmentHandler) Aging(c *gin.Context) {
	buckets, err := h.Installments.Aging(c.Request.Context(), middleware.GetTenantID(c), c.Query("kind"), utils.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}
