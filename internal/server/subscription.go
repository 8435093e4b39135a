package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/subvisor/subvisor/internal/subscription/domain"
	"github.com/subvisor/subvisor/pkg/db/pagination"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		TenantID:     strings.TrimSpace(req.TenantID),
		PlanID:       strings.TrimSpace(req.PlanID),
		BillingCycle: strings.TrimSpace(req.BillingCycle),
		DiscountRate: req.DiscountRate,
		TrialDays:    req.TrialDays,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	item, err := s.subscriptionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListPendingApprovals(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.ListPendingApprovals(c.Request.Context(), subscriptiondomain.ListPendingRequest{
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Subscriptions, "page_info": resp.PageInfo})
}

func (s *Server) GetApprovalHistory(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	entries, err := s.subscriptionSvc.GetApprovalHistory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

type actionBody struct {
	Reason string `json:"reason"`
}

func (s *Server) ApproveSubscription(c *gin.Context) {
	s.runAction(c, s.subscriptionSvc.Approve)
}

func (s *Server) RejectSubscription(c *gin.Context) {
	s.runAction(c, s.subscriptionSvc.Reject)
}

func (s *Server) SuspendSubscription(c *gin.Context) {
	s.runAction(c, s.subscriptionSvc.Suspend)
}

func (s *Server) TerminateSubscription(c *gin.Context) {
	s.runAction(c, s.subscriptionSvc.Terminate)
}

func (s *Server) ReactivateSubscription(c *gin.Context) {
	s.runAction(c, s.subscriptionSvc.Reactivate)
}

type actionFunc func(ctx context.Context, req subscriptiondomain.ActionRequest) (subscriptiondomain.Response, error)

func (s *Server) runAction(c *gin.Context, action actionFunc) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var body actionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := action(c.Request.Context(), subscriptiondomain.ActionRequest{
		SubscriptionID: id,
		Reason:         strings.TrimSpace(body.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
