package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

type ReportHandler struct {
	Reports *services.ReportService
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	today := utils.Today()
	month := today
	if raw := c.Query("month"); raw != "" {
		m, err := utils.ParseMonth(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		month = m
	}

	dashboard, err := h.Reports.Dashboard(c.Request.Context(), middleware.GetTenantID(c), month, today)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// DRE returns the income statement; format=xlsx downloads it as a workbook.
func (h *ReportHandler) DRE(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}

	dre, err := h.Reports.DRE(c.Request.Context(), middleware.GetTenantID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, dre)
		return
	}
	name := "dre-" + from.Format(utils.DateLayout) + "-" + to.Format(utils.DateLayout) + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := services.WriteDREXLSX(c.Writer, dre); err != nil {
		_ = c.Error(err)
	}
}

func (h *ReportHandler) CashFlow(c *gin.Context) {
	months := services.DefaultCashFlowMonths
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "months must be a number"})
			return
		}
		months = n
	}

	flow, err := h.Reports.CashFlow(c.Request.Context(), middleware.GetTenantID(c), months, utils.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *ReportHandler) ByCategory(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}

	totals, err := h.Reports.ByCategory(c.Request.Context(), middleware.GetTenantID(c), from, to, c.DefaultQuery("type", "despesa"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}
