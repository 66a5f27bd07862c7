package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
	"github.com/jbapex/financeiro-api/utils"
)

type AIHandler struct {
	Advisor *services.AdvisorService
}

func (h *AIHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Advisor.Chat(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), req, utils.Today())
	if err != nil {
		if services.IsAIUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI advisor is unavailable, try again later"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AIHandler) Conversations(c *gin.Context) {
	list, err := h.Advisor.Conversations(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AIHandler) Conversation(c *gin.Context) {
	conv, err := h.Advisor.Conversation(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *AIHandler) DeleteConversation(c *gin.Context) {
	if err := h.Advisor.DeleteConversation(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// Insights runs the rule-based alerts; it never calls the AI model.
func (h *AIHandler) Insights(c *gin.Context) {
	insights, err := h.Advisor.Insights(c.Request.Context(), middleware.GetTenantID(c), utils.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}
