// Package domain contains the integrity report types for the background
// auditor.
package domain

import "time"

// Category is a typed classification of an integrity violation. Recovery
// eligibility hangs off the category instead of pattern matching on the
// human-readable description.
type Category string

const (
	CategoryMissingApprovalFields Category = "missing_approval_fields"
	CategoryMissingOutcomeReason  Category = "missing_outcome_reason"
	CategoryMissingRequestedAt    Category = "missing_approval_requested_at"
	CategoryOrphanHistory         Category = "orphan_history"
	CategoryUnknownHistoryAdmin   Category = "unknown_history_admin"
	CategorySelfTransition        Category = "self_transition_history"
	CategoryReadStateMismatch     Category = "read_state_mismatch"
	CategoryOrphanNotification    Category = "orphan_notification"
	CategoryMissingRelatedEntity  Category = "missing_related_entity"
)

// AutoRecoverable reports whether the safe repair pass can fix issues of this
// category without human review.
func (c Category) AutoRecoverable() bool {
	switch c {
	case CategoryReadStateMismatch, CategoryMissingRequestedAt:
		return true
	default:
		return false
	}
}

// Issue is one detected violation.
type Issue struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// Report aggregates one read-only scan over all aggregate families.
type Report struct {
	ScannedSubscriptions int64 `json:"scanned_subscriptions"`
	ScannedHistory       int64 `json:"scanned_history"`
	ScannedNotifications int64 `json:"scanned_notifications"`

	Issues         []Issue          `json:"issues"`
	CategoryCounts map[Category]int `json:"category_counts"`

	AutoRecoverable int `json:"auto_recoverable"`
	ManualRequired  int `json:"manual_required"`

	GeneratedAt time.Time `json:"generated_at"`
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	if r.CategoryCounts == nil {
		r.CategoryCounts = make(map[Category]int)
	}
	r.CategoryCounts[issue.Category]++
	if issue.Category.AutoRecoverable() {
		r.AutoRecoverable++
	} else {
		r.ManualRequired++
	}
}

// Add records a violation and updates the aggregate counters.
func (r *Report) Add(category Category, description string) {
	r.add(Issue{Category: category, Description: description})
}
