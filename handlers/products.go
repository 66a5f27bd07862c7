package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type ProductHandler struct {
	Products *services.ProductService
	Notify   *Notifier
}

func (h *ProductHandler) List(c *gin.Context) {
	page := parsePage(c)
	products, total, err := h.Products.List(c.Request.Context(), middleware.GetTenantID(c), c.Query("search"), page.Size, page.Offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(products, total, page))
}

func (h *ProductHandler) LowStock(c *gin.Context) {
	products, err := h.Products.LowStock(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.Products.Get(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req models.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.Products.Create(c.Request.Context(), middleware.GetTenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "products", "create", p.ID)
	c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Update(c *gin.Context) {
	var req models.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.Products.Update(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "products", "update", p.ID)
	c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Products.Delete(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "products", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func (h *ProductHandler) AddMovement(c *gin.Context) {
	var req models.StockMovementRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.Products.AddMovement(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "products", "movement", m.ProductID)
	c.JSON(http.StatusCreated, m)
}

func (h *ProductHandler) Movements(c *gin.Context) {
	movements, err := h.Products.Movements(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}
