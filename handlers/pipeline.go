package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type PipelineHandler struct {
	Pipeline *services.PipelineService
	Notify   *Notifier
}

func (h *PipelineHandler) ListStages(c *gin.Context) {
	stages, err := h.Pipeline.ListStages(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (h *PipelineHandler) CreateStage(c *gin.Context) {
	var req models.StageRequest
	if !bindJSON(c, &req) {
		return
	}

	stage, err := h.Pipeline.CreateStage(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "pipeline", "create", stage.ID)
	c.JSON(http.StatusCreated, stage)
}

func (h *PipelineHandler) UpdateStage(c *gin.Context) {
	var req models.StageRequest
	if !bindJSON(c, &req) {
		return
	}

	stage, err := h.Pipeline.UpdateStage(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "pipeline", "update", stage.ID)
	c.JSON(http.StatusOK, stage)
}

func (h *PipelineHandler) DeleteStage(c *gin.Context) {
	id := c.Param("id")
	if err := h.Pipeline.DeleteStage(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "pipeline", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Stage deleted"})
}

// Board returns every stage with its cards in position order.
func (h *PipelineHandler) Board(c *gin.Context) {
	board, err := h.Pipeline.Board(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *PipelineHandler) Move(c *gin.Context) {
	var req models.MoveCardRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)
	if err := h.Pipeline.Move(ctx, tenantID, req); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "pipeline", "move", req.ContactID)

	board, err := h.Pipeline.Board(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
