package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

// MaxUploadBytes caps CSV uploads.
const MaxUploadBytes = 10 << 20

type TransactionHandler struct {
	Transactions *services.TransactionService
	Notify       *Notifier
}

// transactionFilter reads the list/summary/export query parameters.
func transactionFilter(c *gin.Context) (models.TransactionFilter, error) {
	f := models.TransactionFilter{
		Type:          c.Query("type"),
		Status:        c.Query("status"),
		CategoryID:    c.Query("category_id"),
		BankAccountID: c.Query("bank_account_id"),
		ContactID:     c.Query("contact_id"),
		Search:        c.Query("search"),
		Tag:           c.Query("tag"),
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *TransactionHandler) List(c *gin.Context) {
	f, err := transactionFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	page := parsePage(c)
	f.Limit, f.Offset = page.Size, page.Offset()

	txs, total, err := h.Transactions.List(c.Request.Context(), middleware.GetTenantID(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(txs, total, page))
}

func (h *TransactionHandler) Get(c *gin.Context) {
	t, err := h.Transactions.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) Create(c *gin.Context) {
	var req models.TransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.Transactions.Create(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "transactions", "create", t.ID)
	c.JSON(http.StatusCreated, t)
}

func (h *TransactionHandler) Update(c *gin.Context) {
	var req models.TransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.Transactions.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "transactions", "update", t.ID)
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Transactions.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "transactions", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

func (h *TransactionHandler) Summary(c *gin.Context) {
	f, err := transactionFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.Transactions.Summary(c.Request.Context(), middleware.GetTenantID(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req models.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.Transactions.Transfer(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "transactions", "transfer", group)
	c.JSON(http.StatusCreated, gin.H{"transfer_group": group})
}

// ============================================================================
// CSV IMPORT / EXPORT
// ============================================================================

// importOptions reads the multipart form fields that describe a CSV upload.
func importOptions(c *gin.Context) (models.ImportOptions, error) {
	opts := models.ImportOptions{
		Delimiter:  c.PostForm("delimiter"),
		DateFormat: c.PostForm("date_format"),
	}
	if raw := c.PostForm("decimal_comma"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: decimal_comma must be a boolean", services.ErrInvalidInput)
		}
		opts.DecimalComma = v
	}

	raw := c.PostForm("mapping")
	if raw == "" {
		return opts, fmt.Errorf("%w: mapping is required", services.ErrInvalidInput)
	}
	if err := json.Unmarshal([]byte(raw), &opts.Mapping); err != nil {
		return opts, fmt.Errorf("%w: mapping must be a JSON object", services.ErrInvalidInput)
	}
	return opts, nil
}

func (h *TransactionHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

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

	result, err := h.Transactions.Import(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c),
		optionalString(c, "bank_account_id"), rows)
	if err != nil {
		respondError(c, err)
		return
	}
	result.Errors = append(rowErrors, result.Errors...)

	if result.Imported > 0 {
		h.Notify.Changed(c, "transactions", "import", "")
	}
	c.JSON(http.StatusOK, result)
}

func (h *TransactionHandler) Preview(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	preview, err := services.PreviewCSV(file, c.PostForm("delimiter"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *TransactionHandler) Export(c *gin.Context) {
	f, err := transactionFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	txs, _, err := h.Transactions.List(c.Request.Context(), middleware.GetTenantID(c), f)
	if err != nil {
		respondError(c, err)
		return
	}

	name := "lancamentos-" + utils.Today().Format(utils.DateLayout)
	switch strings.ToLower(c.DefaultQuery("format", "csv")) {
	case "xlsx":
		c.Header("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = services.WriteTransactionsXLSX(c.Writer, txs)
	case "csv":
		c.Header("Content-Disposition", `attachment; filename="`+name+`.csv"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		err = services.WriteTransactionsCSV(c.Writer, txs)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	if err != nil {
		_ = c.Error(err)
	}
}
