package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/subvisor/subvisor/internal/clock"
	"github.com/subvisor/subvisor/internal/config"
	directorydomain "github.com/subvisor/subvisor/internal/directory/domain"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	"github.com/subvisor/subvisor/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	clock         clock.Clock
	repo          notificationdomain.Repository
	directoryRepo directorydomain.Repository
	metrics       *metrics.Metrics

	retention time.Duration
}

type ServiceParam struct {
	fx.In

	Config        config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          notificationdomain.Repository
	DirectoryRepo directorydomain.Repository
	Metrics       *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) notificationdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("notification.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		directoryRepo: p.DirectoryRepo,
		metrics:       p.Metrics,
		retention:     p.Config.NotificationRetention,
	}
}

// Dispatch fans the event out to its recipient set, one record per recipient.
// Failures are logged and swallowed: a committed transition must never fail
// because its notifications could not be written.
func (s *Service) Dispatch(ctx context.Context, event notificationdomain.Event) {
	recipients, err := s.resolveRecipients(ctx, event)
	if err != nil {
		s.metrics.IncNotificationFailure()
		s.log.Warn("notification recipient lookup failed",
			zap.String("event", string(event.Type)),
			zap.String("subscription_id", event.SubscriptionID.String()),
			zap.Error(err),
		)
		return
	}
	if len(recipients) == 0 {
		// Zero recipients is not an error; nothing to write.
		return
	}

	now := s.clock.Now()
	entityType := "subscription"
	title, message := render(event)

	notifications := make([]notificationdomain.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		relatedID := event.SubscriptionID
		notifications = append(notifications, notificationdomain.Notification{
			ID:                s.genID.Generate(),
			RecipientID:       recipient.ID,
			Type:              event.Type,
			Title:             title,
			Message:           message,
			RelatedEntityType: &entityType,
			RelatedEntityID:   &relatedID,
			IsRead:            false,
			CreatedAt:         now,
		})
	}

	if err := s.repo.InsertBatch(ctx, s.db, notifications); err != nil {
		s.metrics.IncNotificationFailure()
		s.log.Warn("notification dispatch failed",
			zap.String("event", string(event.Type)),
			zap.String("subscription_id", event.SubscriptionID.String()),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		return
	}

	s.metrics.AddNotifications(string(event.Type), len(notifications))
}

func (s *Service) resolveRecipients(ctx context.Context, event notificationdomain.Event) ([]directorydomain.User, error) {
	switch event.Type {
	case notificationdomain.EventRequestCreated, notificationdomain.EventReminder:
		return s.directoryRepo.ListPlatformAdmins(ctx, s.db)
	case notificationdomain.EventApproved,
		notificationdomain.EventAutoApproved,
		notificationdomain.EventRejected,
		notificationdomain.EventSuspended,
		notificationdomain.EventTerminated,
		notificationdomain.EventReactivated:
		return s.directoryRepo.ListTenantAdmins(ctx, s.db, event.TenantID)
	default:
		return nil, notificationdomain.ErrUnknownEventType
	}
}

func (s *Service) MarkRead(ctx context.Context, req notificationdomain.MarkReadRequest) (int64, error) {
	recipientID, err := snowflake.ParseString(strings.TrimSpace(req.RecipientID))
	if err != nil || recipientID == 0 {
		return 0, notificationdomain.ErrInvalidRecipient
	}

	ids := make([]snowflake.ID, 0, len(req.NotificationIDs))
	for _, raw := range req.NotificationIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return 0, notificationdomain.ErrInvalidNotification
		}
		ids = append(ids, id)
	}

	// read implies a timestamp, unread implies none.
	var readAt *time.Time
	if req.Read {
		now := s.clock.Now()
		readAt = &now
	}

	return s.repo.UpdateReadState(ctx, s.db, recipientID, ids, req.Read, readAt)
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	removed, err := s.repo.DeleteOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("purged expired notifications",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

func render(event notificationdomain.Event) (string, string) {
	id := event.SubscriptionID.String()
	plan := event.PlanName
	if plan == "" {
		plan = "subscription"
	}

	switch event.Type {
	case notificationdomain.EventRequestCreated:
		return "Subscription approval requested",
			fmt.Sprintf("A new %s request (%s) is awaiting approval.", plan, id)
	case notificationdomain.EventApproved:
		return "Subscription approved",
			fmt.Sprintf("Your %s subscription (%s) has been approved.", plan, id)
	case notificationdomain.EventAutoApproved:
		return "Subscription auto-approved",
			fmt.Sprintf("Your %s subscription (%s) was approved automatically.", plan, id)
	case notificationdomain.EventRejected:
		return "Subscription rejected",
			fmt.Sprintf("Your %s subscription (%s) was rejected: %s", plan, id, event.Reason)
	case notificationdomain.EventSuspended:
		return "Subscription suspended",
			fmt.Sprintf("Your %s subscription (%s) was suspended: %s", plan, id, event.Reason)
	case notificationdomain.EventTerminated:
		return "Subscription terminated",
			fmt.Sprintf("Your %s subscription (%s) was terminated: %s", plan, id, event.Reason)
	case notificationdomain.EventReactivated:
		return "Subscription reactivated",
			fmt.Sprintf("Your %s subscription (%s) is active again.", plan, id)
	case notificationdomain.EventReminder:
		return "Pending approvals reminder",
			fmt.Sprintf("Subscription %s is still awaiting review.", id)
	default:
		return "Subscription update", fmt.Sprintf("Subscription %s changed.", id)
	}
}
