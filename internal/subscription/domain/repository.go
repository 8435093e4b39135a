package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/subvisor/subvisor/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	// ListByStatus returns up to limit+1 rows after the cursor, newest first.
	ListByStatus(ctx context.Context, db *gorm.DB, status Status, limit int, cursor *pagination.Cursor) ([]Subscription, error)
	// UpdateLifecycle persists a validated transition. The write is guarded by
	// expectedVersion and bumps the stored version; a stale version yields
	// ErrConcurrencyConflict.
	UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *Subscription, expectedVersion int64) error

	InsertHistory(ctx context.Context, db *gorm.DB, entry *ApprovalHistoryEntry) error
	ListHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]ApprovalHistoryEntry, error)
}
