package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type ContactHandler struct {
	Contacts     *services.ContactService
	Installments *services.InstallmentService
	Notify       *Notifier
}

func (h *ContactHandler) List(c *gin.Context) {
	page := parsePage(c)
	contacts, total, err := h.Contacts.List(c.Request.Context(), middleware.GetTenantID(c),
		c.Query("kind"), c.Query("search"), page.Size, page.Offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(contacts, total, page))
}

func (h *ContactHandler) Get(c *gin.Context) {
	contact, err := h.Contacts.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Create(c *gin.Context) {
	var req models.ContactRequest
	if !bindJSON(c, &req) {
		return
	}

	contact, err := h.Contacts.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "contacts", "create", contact.ID)
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) Update(c *gin.Context) {
	var req models.ContactRequest
	if !bindJSON(c, &req) {
		return
	}

	contact, err := h.Contacts.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "contacts", "update", contact.ID)
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Contacts.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "contacts", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted"})
}

func (h *ContactHandler) History(c *gin.Context) {
	history, err := h.Contacts.History(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), h.Installments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
