package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Event describes one subscription lifecycle change to fan out.
type Event struct {
	Type           EventType
	SubscriptionID snowflake.ID
	TenantID       snowflake.ID
	PlanName       string
	Reason         string
}

type MarkReadRequest struct {
	RecipientID     string   `json:"recipient_id"`
	NotificationIDs []string `json:"notification_ids"`
	Read            bool     `json:"read"`
}

// Service dispatches lifecycle notifications and maintains read state.
//
// Dispatch is best-effort: persistence failures are logged and swallowed so a
// committed transition is never rolled back or failed by its side effects.
type Service interface {
	Dispatch(ctx context.Context, event Event)
	MarkRead(ctx context.Context, req MarkReadRequest) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

var (
	ErrInvalidRecipient    = errors.New("invalid_recipient")
	ErrInvalidNotification = errors.New("invalid_notification")
	ErrUnknownEventType    = errors.New("unknown_event_type")
)
