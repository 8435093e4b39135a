// Package domain contains the subscription aggregate, its lifecycle states
// and the append-only approval history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents lifecycle states for a tenant subscription.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusRejected        Status = "REJECTED"
	StatusAutoApproved    Status = "AUTO_APPROVED"
	StatusActive          Status = "ACTIVE"
	StatusSuspended       Status = "SUSPENDED"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
	StatusTerminated      Status = "TERMINATED"
	StatusTrial           Status = "TRIAL"
)

// HistoryAction tags the admin action that produced a history entry.
type HistoryAction string

const (
	ActionApprove     HistoryAction = "APPROVE"
	ActionAutoApprove HistoryAction = "AUTO_APPROVE"
	ActionReject      HistoryAction = "REJECT"
	ActionSuspend     HistoryAction = "SUSPEND"
	ActionTerminate   HistoryAction = "TERMINATE"
	ActionReactivate  HistoryAction = "REACTIVATE"
)

// Subscription captures a tenant's billing agreement with a plan.
//
// Version implements optimistic locking: every lifecycle write checks the
// version read at load time and bumps it by one.
type Subscription struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	PlanID   snowflake.ID `gorm:"not null;index"`
	Status   Status       `gorm:"type:text;not null;index"`

	BillingCycle  string     `gorm:"type:text;not null"`
	Price         float64    `gorm:"not null"`
	DiscountRate  float64    `gorm:"not null;default:0"`
	NextBillingAt *time.Time `gorm:""`

	ApprovalRequestedAt *time.Time    `gorm:""`
	ApprovedAt          *time.Time    `gorm:""`
	ApprovedBy          *snowflake.ID `gorm:""`

	RejectionReason   *string `gorm:"type:text"`
	SuspensionReason  *string `gorm:"type:text"`
	TerminationReason *string `gorm:"type:text"`

	TrialEndsAt *time.Time `gorm:""`
	CancelledAt *time.Time `gorm:""`

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// ApprovalHistoryEntry is an immutable record of one lifecycle transition.
// Rows are append-only; they are never mutated or reordered after insert.
type ApprovalHistoryEntry struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	SubscriptionID snowflake.ID  `gorm:"not null;index"`
	AdminID        snowflake.ID  `gorm:"not null"`
	FromStatus     Status        `gorm:"type:text;not null"`
	ToStatus       Status        `gorm:"type:text;not null"`
	Action         HistoryAction `gorm:"type:text;not null"`
	Reason         string        `gorm:"type:text"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ApprovalHistoryEntry) TableName() string { return "approval_history" }
