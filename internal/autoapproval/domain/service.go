package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Request is the subscription creation request the engine evaluates.
//
// The request does not carry a payment method, so a rule's payment-method
// condition cannot be enforced yet; it is stored and reported but skipped
// during evaluation.
type Request struct {
	TenantID snowflake.ID
	PlanID   snowflake.ID
}

// Service is the auto-approval rule engine. Evaluate and GetAppliedRule run
// the identical scan; GetAppliedRule is side-effect-free and exists for audit
// and preview purposes.
type Service interface {
	Evaluate(ctx context.Context, req Request) (bool, error)
	GetAppliedRule(ctx context.Context, req Request) (*Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	IsEnabled() bool
	SetEnabled(enabled bool)
}

var (
	ErrRuleNotFound = errors.New("rule_not_found")
	ErrInvalidRule  = errors.New("invalid_rule")
)
