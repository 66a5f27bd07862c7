package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type AuthHandler struct {
	Auth  *services.AuthService
	Audit *services.AuditService
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Auth.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Audit.Record(c.Request.Context(), resp.Tenant.ID, resp.User.ID, "signup", "tenants", resp.Tenant.ID)
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Audit.Record(c.Request.Context(), resp.Tenant.ID, resp.User.ID, "login", "users", resp.User.ID)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout ends the given session, or every session when no token is sent.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.Auth.Logout(c.Request.Context(), middleware.GetUserID(c), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
