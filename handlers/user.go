package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type UserHandler struct {
	Auth  *services.AuthService
	Admin *services.AdminService
}

// ============================================================================
// PROFILE MANAGEMENT
// ============================================================================

// GetProfile returns the user together with the tenant and its modules.
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.Auth.User(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	tenant, err := h.Admin.TenantAccess(c.Request.Context(), user.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "tenant": tenant})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Auth.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), middleware.GetUserID(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// ============================================================================
// TWO-FACTOR AUTHENTICATION
// ============================================================================

func (h *UserHandler) SetupTOTP(c *gin.Context) {
	resp, err := h.Auth.SetupTOTP(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) VerifyTOTP(c *gin.Context) {
	var req models.VerifyTOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.Auth.VerifyTOTP(c.Request.Context(), middleware.GetUserID(c), req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA enabled"})
}

func (h *UserHandler) DisableTOTP(c *gin.Context) {
	var req models.VerifyTOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.Auth.DisableTOTP(c.Request.Context(), middleware.GetUserID(c), req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA disabled"})
}
