package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	autoapprovaldomain "github.com/subvisor/subvisor/internal/autoapproval/domain"
)

type previewAutoApprovalRequest struct {
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`
}

type previewAutoApprovalResponse struct {
	WouldAutoApprove bool    `json:"would_auto_approve"`
	RuleID           *string `json:"rule_id,omitempty"`
	RuleName         *string `json:"rule_name,omitempty"`
}

// PreviewAutoApproval runs the rule scan without creating anything.
func (s *Server) PreviewAutoApproval(c *gin.Context) {
	var req previewAutoApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, err := snowflake.ParseString(strings.TrimSpace(req.TenantID))
	if err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid tenant_id"))
		return
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		AbortWithError(c, newValidationError("plan_id", "invalid_plan", "invalid plan_id"))
		return
	}

	rule, err := s.autoApprovalSvc.GetAppliedRule(c.Request.Context(), autoapprovaldomain.Request{
		TenantID: tenantID,
		PlanID:   planID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := previewAutoApprovalResponse{WouldAutoApprove: rule != nil}
	if rule != nil {
		ruleID := rule.ID.String()
		ruleName := rule.Name
		resp.RuleID = &ruleID
		resp.RuleName = &ruleName
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetAutoApprovalRule returns one stored rule by id.
func (s *Server) GetAutoApprovalRule(c *gin.Context) {
	rule, err := s.autoApprovalSvc.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rule})
}

type autoApprovalSettings struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) GetAutoApprovalSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": autoApprovalSettings{
		Enabled: s.autoApprovalSvc.IsEnabled(),
	}})
}

func (s *Server) UpdateAutoApprovalSettings(c *gin.Context) {
	var req autoApprovalSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.autoApprovalSvc.SetEnabled(req.Enabled)

	c.JSON(http.StatusOK, gin.H{"data": autoApprovalSettings{
		Enabled: s.autoApprovalSvc.IsEnabled(),
	}})
}
