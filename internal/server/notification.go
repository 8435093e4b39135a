package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
)

func (s *Server) MarkNotificationsRead(c *gin.Context) {
	var req notificationdomain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := snowflake.ParseString(strings.TrimSpace(req.RecipientID)); err != nil {
		AbortWithError(c, newValidationError("recipient_id", "invalid_recipient", "invalid recipient_id"))
		return
	}

	updated, err := s.notificationSvc.MarkRead(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}
