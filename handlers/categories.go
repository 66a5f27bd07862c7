package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type CategoryHandler struct {
	Categories *services.CategoryService
	Notify     *Notifier
}

func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.Categories.List(c.Request.Context(), middleware.GetTenantID(c), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	category, err := h.Categories.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req models.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.Categories.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "categories", "create", category.ID)
	c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) Update(c *gin.Context) {
	var req models.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.Categories.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "categories", "update", category.ID)
	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Categories.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "categories", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// Suggest classifies a free-text label: static rules, then the mapping
// cache, then the AI model.
func (h *CategoryHandler) Suggest(c *gin.Context) {
	var req struct {
		Label string `json:"label" binding:"required,max=255"`
	}
	if !bindJSON(c, &req) {
		return
	}

	suggestion, err := h.Categories.Suggest(c.Request.Context(), middleware.GetTenantID(c), req.Label)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}
