package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type BankAccountHandler struct {
	Accounts *services.BankAccountService
	Notify   *Notifier
}

// List returns the accounts with their computed balances and the total.
func (h *BankAccountHandler) List(c *gin.Context) {
	summary, err := h.Accounts.List(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *BankAccountHandler) Get(c *gin.Context) {
	account, err := h.Accounts.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *BankAccountHandler) Balance(c *gin.Context) {
	account, err := h.Accounts.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": account.ID, "balance": account.Balance})
}

func (h *BankAccountHandler) Create(c *gin.Context) {
	var req models.BankAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.Accounts.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "bank_accounts", "create", account.ID)
	c.JSON(http.StatusCreated, account)
}

func (h *BankAccountHandler) Update(c *gin.Context) {
	var req models.BankAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.Accounts.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "bank_accounts", "update", account.ID)
	c.JSON(http.StatusOK, account)
}

func (h *BankAccountHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Accounts.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "bank_accounts", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Bank account deleted"})
}
