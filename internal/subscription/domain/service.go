package domain

import (
	"context"
	"errors"
	"time"

	"github.com/subvisor/subvisor/pkg/db/pagination"
)

type CreateSubscriptionRequest struct {
	TenantID     string  `json:"tenant_id"`
	PlanID       string  `json:"plan_id"`
	BillingCycle string  `json:"billing_cycle"`
	DiscountRate float64 `json:"discount_rate,omitempty"`
	TrialDays    *int    `json:"trial_days,omitempty"`
}

// ActionRequest drives one admin-initiated lifecycle transition.
// Reason is mandatory for reject, suspend and terminate; for approve and
// reactivate it is recorded for audit only.
type ActionRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Reason         string `json:"reason,omitempty"`
}

type ListPendingRequest struct {
	pagination.Pagination
}

type ListPendingResponse struct {
	pagination.PageInfo
	Subscriptions []Response `json:"subscriptions"`
}

type Response struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	PlanID              string     `json:"plan_id"`
	Status              Status     `json:"status"`
	BillingCycle        string     `json:"billing_cycle"`
	Price               float64    `json:"price"`
	DiscountRate        float64    `json:"discount_rate"`
	NextBillingAt       *time.Time `json:"next_billing_at,omitempty"`
	ApprovalRequestedAt *time.Time `json:"approval_requested_at,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	ApprovedBy          *string    `json:"approved_by,omitempty"`
	RejectionReason     *string    `json:"rejection_reason,omitempty"`
	SuspensionReason    *string    `json:"suspension_reason,omitempty"`
	TerminationReason   *string    `json:"termination_reason,omitempty"`
	TrialEndsAt         *time.Time `json:"trial_ends_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
}

type HistoryResponse struct {
	ID             string        `json:"id"`
	SubscriptionID string        `json:"subscription_id"`
	AdminID        string        `json:"admin_id"`
	FromStatus     Status        `json:"from_status"`
	ToStatus       Status        `json:"to_status"`
	Action         HistoryAction `json:"action"`
	Reason         string        `json:"reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Response, error)
	Approve(ctx context.Context, req ActionRequest) (Response, error)
	Reject(ctx context.Context, req ActionRequest) (Response, error)
	Suspend(ctx context.Context, req ActionRequest) (Response, error)
	Terminate(ctx context.Context, req ActionRequest) (Response, error)
	Reactivate(ctx context.Context, req ActionRequest) (Response, error)
	GetByID(ctx context.Context, id string) (Response, error)
	ListPendingApprovals(ctx context.Context, req ListPendingRequest) (ListPendingResponse, error)
	GetApprovalHistory(ctx context.Context, subscriptionID string) ([]HistoryResponse, error)
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidSubscription  = errors.New("invalid_subscription")
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidTransition    = errors.New("invalid_state_transition")
	ErrMissingReason        = errors.New("missing_reason")
	ErrConcurrencyConflict  = errors.New("concurrency_conflict")
	ErrInvalidBillingCycle  = errors.New("invalid_billing_cycle")
	ErrInvalidTrialDays     = errors.New("invalid_trial_days")
	ErrMissingActor         = errors.New("missing_actor")
)
