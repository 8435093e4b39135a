package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/subvisor/subvisor/internal/subscription/domain"
	"github.com/subvisor/subvisor/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, tenant_id, plan_id, status, billing_cycle, price, discount_rate,
	 next_billing_at, approval_requested_at, approved_at, approved_by, rejection_reason,
	 suspension_reason, termination_reason, trial_ends_at, cancelled_at, version, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, tenant_id, plan_id, status, billing_cycle, price, discount_rate,
			next_billing_at, approval_requested_at, approved_at, approved_by, rejection_reason,
			suspension_reason, termination_reason, trial_ends_at, cancelled_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.TenantID,
		subscription.PlanID,
		subscription.Status,
		subscription.BillingCycle,
		subscription.Price,
		subscription.DiscountRate,
		subscription.NextBillingAt,
		subscription.ApprovalRequestedAt,
		subscription.ApprovedAt,
		subscription.ApprovedBy,
		subscription.RejectionReason,
		subscription.SuspensionReason,
		subscription.TerminationReason,
		subscription.TrialEndsAt,
		subscription.CancelledAt,
		subscription.Version,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	// sqlite has no row locks; the optimistic version check still applies.
	if name := db.Dialector.Name(); name == "postgres" || name == "mysql" {
		query += ` FOR UPDATE`
	}

	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(query, id).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status subscriptiondomain.Status, limit int, cursor *pagination.Cursor) ([]subscriptiondomain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE status = ?`
	args := []any{status}

	// Snowflake ids are time-ordered, so keysetting on id alone keeps the
	// newest-first order stable across dialects.
	if cursor != nil && cursor.ID != "" {
		lastID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		query += ` AND id < ?`
		args = append(args, lastID)
	}

	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	var subscriptions []subscriptiondomain.Subscription
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription, expectedVersion int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, next_billing_at = ?, approval_requested_at = ?, approved_at = ?, approved_by = ?,
		     rejection_reason = ?, suspension_reason = ?, termination_reason = ?, cancelled_at = ?,
		     version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		subscription.Status,
		subscription.NextBillingAt,
		subscription.ApprovalRequestedAt,
		subscription.ApprovedAt,
		subscription.ApprovedBy,
		subscription.RejectionReason,
		subscription.SuspensionReason,
		subscription.TerminationReason,
		subscription.CancelledAt,
		expectedVersion+1,
		subscription.UpdatedAt,
		subscription.ID,
		expectedVersion,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.ErrConcurrencyConflict
	}
	subscription.Version = expectedVersion + 1
	return nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *subscriptiondomain.ApprovalHistoryEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO approval_history (
			id, subscription_id, admin_id, from_status, to_status, action, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.SubscriptionID,
		entry.AdminID,
		entry.FromStatus,
		entry.ToStatus,
		entry.Action,
		entry.Reason,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]subscriptiondomain.ApprovalHistoryEntry, error) {
	var entries []subscriptiondomain.ApprovalHistoryEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, admin_id, from_status, to_status, action, reason, created_at
		 FROM approval_history WHERE subscription_id = ? ORDER BY created_at ASC, id ASC`,
		subscriptionID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
