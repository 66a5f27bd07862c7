package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/services"
)

type TeamHandler struct {
	Team   *services.TeamService
	Notify *Notifier
}

// InviteUser creates an invitation. When the e-mail cannot be sent the link
// is returned so it can be shared by hand.
func (h *TeamHandler) InviteUser(c *gin.Context) {
	var req models.InvitationRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Team.Invite(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.Notify.Changed(c, "invitations", "create", result.Invitation.ID)
	if !result.EmailSent {
		c.JSON(http.StatusCreated, gin.H{
			"invitation": result.Invitation,
			"link":       result.Link,
			"warning":    "Invitation created but email failed to send",
		})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TeamHandler) GetInvitations(c *gin.Context) {
	invitations, err := h.Team.ListInvitations(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invitations)
}

func (h *TeamHandler) CancelInvitation(c *gin.Context) {
	id := c.Param("id")
	if err := h.Team.RevokeInvitation(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "invitations", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Invitation cancelled"})
}

// AcceptInvitation is public: the token is the credential.
func (h *TeamHandler) AcceptInvitation(c *gin.Context) {
	var req models.AcceptInvitationRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.Team.Accept(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *TeamHandler) GetMembers(c *gin.Context) {
	members, err := h.Team.Members(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *TeamHandler) UpdateMemberRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required,oneof=admin member viewer"`
	}
	if !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	if err := h.Team.UpdateRole(c.Request.Context(), middleware.GetTenantID(c), id, req.Role); err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "members", "update", id)
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	id := c.Param("id")
	err := h.Team.RemoveMember(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Notify.Changed(c, "members", "delete", id)
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
