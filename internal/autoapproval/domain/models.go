// Package domain contains auto-approval rules and the evaluation contract.
// Rule CRUD is owned by an administrative surface elsewhere; the engine only
// reads rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Rule is one priority-ordered condition set. All configured conditions must
// hold for a rule to match (conjunction); an empty set means "any".
//
// Condition lists are structured here; serialization to storage blobs is the
// repository's concern.
type Rule struct {
	ID       snowflake.ID
	Name     string
	Active   bool
	Priority int

	PlanIDs             []snowflake.ID
	VerifiedTenantsOnly bool
	PaymentMethods      []string
	MaxPrice            *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowsPlan reports whether the rule's plan set admits planID.
func (r Rule) AllowsPlan(planID snowflake.ID) bool {
	if len(r.PlanIDs) == 0 {
		return true
	}
	for _, id := range r.PlanIDs {
		if id == planID {
			return true
		}
	}
	return false
}

// AllowsPrice reports whether price is within the rule's maximum, if set.
func (r Rule) AllowsPrice(price float64) bool {
	return r.MaxPrice == nil || price <= *r.MaxPrice
}
