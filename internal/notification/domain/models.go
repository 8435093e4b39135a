// Package domain contains notification records produced by subscription
// lifecycle events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventType tags the lifecycle event a notification was produced for.
type EventType string

const (
	EventRequestCreated EventType = "subscription.requested"
	EventApproved       EventType = "subscription.approved"
	EventAutoApproved   EventType = "subscription.auto_approved"
	EventRejected       EventType = "subscription.rejected"
	EventSuspended      EventType = "subscription.suspended"
	EventTerminated     EventType = "subscription.terminated"
	EventReactivated    EventType = "subscription.reactivated"
	EventReminder       EventType = "subscription.reminder"
)

// Notification is one delivered message for one recipient.
// Invariant: IsRead is true exactly when ReadAt is set.
type Notification struct {
	ID                snowflake.ID  `gorm:"primaryKey"`
	RecipientID       snowflake.ID  `gorm:"not null;index"`
	Type              EventType     `gorm:"type:text;not null"`
	Title             string        `gorm:"type:text;not null"`
	Message           string        `gorm:"type:text;not null"`
	RelatedEntityType *string       `gorm:"type:text"`
	RelatedEntityID   *snowflake.ID `gorm:""`
	IsRead            bool          `gorm:"not null;default:false"`
	ReadAt            *time.Time    `gorm:""`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }
