package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type ReconciliationHandler struct {
	Reconciliation *services.ReconciliationService
	Accounts       *services.BankAccountService
	Notify         *Notifier
}

// Import loads a bank statement CSV into the account's pending lines.
func (h *ReconciliationHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)
	accountID := c.Param("id")
	if _, err := h.Accounts.Get(ctx, tenantID, accountID); err != nil {
		respondError(c, err)
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	opts, err := importOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rows, rowErrors, err := services.ParseCSV(file, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.Reconciliation.Import(ctx, tenantID, accountID, rows)
	if err != nil {
		respondError(c, err)
		return
	}
	result.Errors = append(rowErrors, result.Errors...)
	c.JSON(http.StatusOK, result)
}

func (h *ReconciliationHandler) List(c *gin.Context) {
	page := parsePage(c)
	lines, total, err := h.Reconciliation.List(c.Request.Context(), middleware.GetTenantID(c),
		c.Param("id"), c.Query("status"), page.Size, page.Offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(lines, total, page))
}

func (h *ReconciliationHandler) AutoMatch(c *gin.Context) {
	accountID := c.Param("id")
	result, err := h.Reconciliation.AutoMatch(c.Request.Context(), middleware.GetTenantID(c), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Matched > 0 {
		h.Notify.Changed(c, "reconciliation", "auto_match", accountID)
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReconciliationHandler) Suggestions(c *gin.Context) {
	suggestions, err := h.Reconciliation.Suggestions(c.Request.Context(), middleware.GetTenantID(c), c.Param("line_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func (h *ReconciliationHandler) Match(c *gin.Context) {
	var req models.MatchRequest
	if !bindJSON(c, &req) {
		return
	}

	line, err := h.Reconciliation.Match(c.Request.Context(), middleware.GetTenantID(c), c.Param("line_id"), req.TransactionID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "reconciliation", "match", line.ID)
	c.JSON(http.StatusOK, line)
}

// CreateTransaction books a new ledger entry from the statement line and links it.
func (h *ReconciliationHandler) CreateTransaction(c *gin.Context) {
	var req models.CreateFromStatementRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	line, err := h.Reconciliation.CreateFromStatement(c.Request.Context(), middleware.GetTenantID(c),
		middleware.GetUserID(c), c.Param("line_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "reconciliation", "create", line.ID)
	c.JSON(http.StatusCreated, line)
}

func (h *ReconciliationHandler) Ignore(c *gin.Context) {
	line, err := h.Reconciliation.Ignore(c.Request.Context(), middleware.GetTenantID(c), c.Param("line_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "reconciliation", "ignore", line.ID)
	c.JSON(http.StatusOK, line)
}

func (h *ReconciliationHandler) Unmatch(c *gin.Context) {
	line, err := h.Reconciliation.Unmatch(c.Request.Context(), middleware.GetTenantID(c), c.Param("line_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "reconciliation", "unmatch", line.ID)
	c.JSON(http.StatusOK, line)
}
