package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/subvisor/subvisor/internal/clock"
	"github.com/subvisor/subvisor/internal/config"
	integritydomain "github.com/subvisor/subvisor/internal/integrity/domain"
	"github.com/subvisor/subvisor/internal/observability/metrics"
	subscriptiondomain "github.com/subvisor/subvisor/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.Metrics

	mu               sync.RWMutex
	scheduledEnabled bool
}

type ServiceParam struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) integritydomain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("integrity.service"),
		clock:            p.Clock,
		metrics:          p.Metrics,
		scheduledEnabled: p.Config.IntegritySweepEnabled,
	}
}

func (s *Service) IsScheduledEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduledEnabled
}

func (s *Service) SetScheduledEnabled(enabled bool) {
	s.mu.Lock()
	s.scheduledEnabled = enabled
	s.mu.Unlock()
}

// RunCheck scans subscriptions, approval history and notifications for
// invariant violations. It reads only; nothing is repaired here.
func (s *Service) RunCheck(ctx context.Context) (integritydomain.Report, error) {
	report := integritydomain.Report{GeneratedAt: s.clock.Now()}

	if err := s.scanSubscriptions(ctx, &report); err != nil {
		return report, err
	}
	if err := s.scanHistory(ctx, &report); err != nil {
		return report, err
	}
	if err := s.scanNotifications(ctx, &report); err != nil {
		return report, err
	}

	for category, count := range report.CategoryCounts {
		s.metrics.AddIntegrityIssues(string(category), count)
	}

	s.log.Info("integrity check finished",
		zap.Int64("subscriptions", report.ScannedSubscriptions),
		zap.Int64("history", report.ScannedHistory),
		zap.Int64("notifications", report.ScannedNotifications),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

type subscriptionRow struct {
	ID                  snowflake.ID
	Status              subscriptiondomain.Status
	ApprovedAt          *time.Time
	ApprovedBy          *snowflake.ID
	ApprovalRequestedAt *time.Time
	RejectionReason     *string
	SuspensionReason    *string
	TerminationReason   *string
}

func (s *Service) scanSubscriptions(ctx context.Context, report *integritydomain.Report) error {
	var rows []subscriptionRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, status, approved_at, approved_by, approval_requested_at,
		 rejection_reason, suspension_reason, termination_reason
		 FROM subscriptions ORDER BY id ASC`,
	).Scan(&rows).Error; err != nil {
		return err
	}

	report.ScannedSubscriptions = int64(len(rows))

	for _, row := range rows {
		switch row.Status {
		case subscriptiondomain.StatusActive, subscriptiondomain.StatusAutoApproved:
			if row.ApprovedAt == nil || row.ApprovedBy == nil {
				report.Add(integritydomain.CategoryMissingApprovalFields,
					fmt.Sprintf("subscription %s is %s without approver or approval timestamp", row.ID, row.Status))
			}
		case subscriptiondomain.StatusRejected:
			if blank(row.RejectionReason) {
				report.Add(integritydomain.CategoryMissingOutcomeReason,
					fmt.Sprintf("subscription %s is REJECTED without a rejection reason", row.ID))
			}
		case subscriptiondomain.StatusSuspended:
			if blank(row.SuspensionReason) {
				report.Add(integritydomain.CategoryMissingOutcomeReason,
					fmt.Sprintf("subscription %s is SUSPENDED without a suspension reason", row.ID))
			}
		case subscriptiondomain.StatusTerminated:
			if blank(row.TerminationReason) {
				report.Add(integritydomain.CategoryMissingOutcomeReason,
					fmt.Sprintf("subscription %s is TERMINATED without a termination reason", row.ID))
			}
		}

		if row.ApprovalRequestedAt == nil {
			report.Add(integritydomain.CategoryMissingRequestedAt,
				fmt.Sprintf("subscription %s has no approval-requested timestamp", row.ID))
		}
	}

	return nil
}

type historyRow struct {
	ID             snowflake.ID
	SubscriptionID snowflake.ID
	AdminID        snowflake.ID
	FromStatus     subscriptiondomain.Status
	ToStatus       subscriptiondomain.Status
	OrphanSub      bool
	UnknownAdmin   bool
}

func (s *Service) scanHistory(ctx context.Context, report *integritydomain.Report) error {
	var rows []historyRow
	// AdminID 0 marks system-initiated transitions (auto-approval) and is not
	// checked against the user directory.
	if err := s.db.WithContext(ctx).Raw(
		`SELECT h.id, h.subscription_id, h.admin_id, h.from_status, h.to_status,
		 (s.id IS NULL) AS orphan_sub,
		 (h.admin_id <> 0 AND u.id IS NULL) AS unknown_admin
		 FROM approval_history h
		 LEFT JOIN subscriptions s ON s.id = h.subscription_id
		 LEFT JOIN users u ON u.id = h.admin_id
		 ORDER BY h.id ASC`,
	).Scan(&rows).Error; err != nil {
		return err
	}

	report.ScannedHistory = int64(len(rows))

	for _, row := range rows {
		if row.OrphanSub {
			report.Add(integritydomain.CategoryOrphanHistory,
				fmt.Sprintf("history entry %s references missing subscription %s", row.ID, row.SubscriptionID))
		}
		if row.UnknownAdmin {
			report.Add(integritydomain.CategoryUnknownHistoryAdmin,
				fmt.Sprintf("history entry %s references unknown admin %s", row.ID, row.AdminID))
		}
		if row.FromStatus == row.ToStatus {
			report.Add(integritydomain.CategorySelfTransition,
				fmt.Sprintf("history entry %s records a self-transition (%s)", row.ID, row.FromStatus))
		}
	}

	return nil
}

type notificationRow struct {
	ID              snowflake.ID
	RecipientID     snowflake.ID
	RelatedEntityID *snowflake.ID
	IsRead          bool
	ReadAt          *time.Time
	OrphanRecipient bool
	MissingRelated  bool
}

func (s *Service) scanNotifications(ctx context.Context, report *integritydomain.Report) error {
	var rows []notificationRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT n.id, n.recipient_id, n.related_entity_id, n.is_read, n.read_at,
		 (u.id IS NULL) AS orphan_recipient,
		 (n.related_entity_id IS NOT NULL AND s.id IS NULL) AS missing_related
		 FROM notifications n
		 LEFT JOIN users u ON u.id = n.recipient_id
		 LEFT JOIN subscriptions s ON s.id = n.related_entity_id
		 ORDER BY n.id ASC`,
	).Scan(&rows).Error; err != nil {
		return err
	}

	report.ScannedNotifications = int64(len(rows))

	for _, row := range rows {
		if row.OrphanRecipient {
			report.Add(integritydomain.CategoryOrphanNotification,
				fmt.Sprintf("notification %s references missing recipient %s", row.ID, row.RecipientID))
		}
		if row.MissingRelated {
			report.Add(integritydomain.CategoryMissingRelatedEntity,
				fmt.Sprintf("notification %s references a missing subscription", row.ID))
		}
		if row.IsRead && row.ReadAt == nil {
			report.Add(integritydomain.CategoryReadStateMismatch,
				fmt.Sprintf("notification %s is read without a read timestamp", row.ID))
		}
		if !row.IsRead && row.ReadAt != nil {
			report.Add(integritydomain.CategoryReadStateMismatch,
				fmt.Sprintf("notification %s is unread but carries a read timestamp", row.ID))
		}
	}

	return nil
}

// PerformAutoRecovery applies the safe repair subset and returns how many
// rows were fixed. Each statement only touches rows that violate the
// invariant, so a second consecutive run changes nothing.
func (s *Service) PerformAutoRecovery(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	var repaired int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE notifications SET read_at = ? WHERE is_read = ? AND read_at IS NULL`,
			now, true,
		)
		if result.Error != nil {
			return result.Error
		}
		repaired += result.RowsAffected

		result = tx.Exec(
			`UPDATE notifications SET read_at = NULL WHERE is_read = ? AND read_at IS NOT NULL`,
			false,
		)
		if result.Error != nil {
			return result.Error
		}
		repaired += result.RowsAffected

		// Bump the version so concurrent lifecycle writes observe the repair
		// as an optimistic conflict instead of silently overwriting it.
		result = tx.Exec(
			`UPDATE subscriptions
			 SET approval_requested_at = created_at, version = version + 1, updated_at = ?
			 WHERE approval_requested_at IS NULL`,
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		repaired += result.RowsAffected

		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.AddIntegrityRepairs(int(repaired))
	if repaired > 0 {
		s.log.Info("auto-recovery repaired rows", zap.Int64("repaired", repaired))
	}
	return repaired, nil
}

// CleanupOrphans deletes history rows whose subscription no longer exists and
// notification rows whose recipient no longer exists. All other rows are left
// untouched.
func (s *Service) CleanupOrphans(ctx context.Context) (int64, error) {
	var removed int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`DELETE FROM approval_history
			 WHERE subscription_id NOT IN (SELECT id FROM subscriptions)`,
		)
		if result.Error != nil {
			return result.Error
		}
		removed += result.RowsAffected

		result = tx.Exec(
			`DELETE FROM notifications
			 WHERE recipient_id NOT IN (SELECT id FROM users)`,
		)
		if result.Error != nil {
			return result.Error
		}
		removed += result.RowsAffected

		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.AddOrphansRemoved(int(removed))
	if removed > 0 {
		s.log.Info("orphan cleanup removed rows", zap.Int64("removed", removed))
	}
	return removed, nil
}

func blank(value *string) bool {
	return value == nil || *value == ""
}
