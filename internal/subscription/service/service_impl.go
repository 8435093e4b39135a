package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/subvisor/subvisor/internal/actorcontext"
	autoapprovaldomain "github.com/subvisor/subvisor/internal/autoapproval/domain"
	"github.com/subvisor/subvisor/internal/clock"
	directorydomain "github.com/subvisor/subvisor/internal/directory/domain"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	"github.com/subvisor/subvisor/internal/observability/metrics"
	plandomain "github.com/subvisor/subvisor/internal/plan/domain"
	subscriptiondomain "github.com/subvisor/subvisor/internal/subscription/domain"
	"github.com/subvisor/subvisor/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// conflictRetries bounds the reload-and-reapply attempts on an optimistic
// version conflict before the conflict surfaces to the caller.
const conflictRetries = 3

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	clock         clock.Clock
	repo          subscriptiondomain.Repository
	planRepo      plandomain.Repository
	directoryRepo directorydomain.Repository
	metrics       *metrics.Metrics

	autoapprovalSvc autoapprovaldomain.Service
	notificationSvc notificationdomain.Service
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository

	PlanRepo      plandomain.Repository
	DirectoryRepo directorydomain.Repository
	Metrics       *metrics.Metrics `optional:"true"`

	AutoapprovalSvc autoapprovaldomain.Service
	NotificationSvc notificationdomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("subscription.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		planRepo:        p.PlanRepo,
		directoryRepo:   p.DirectoryRepo,
		metrics:         p.Metrics,
		autoapprovalSvc: p.AutoapprovalSvc,
		notificationSvc: p.NotificationSvc,
	}
}

// transitionSpec describes one admin action on the lifecycle.
type transitionSpec struct {
	target        subscriptiondomain.Status
	action        subscriptiondomain.HistoryAction
	event         notificationdomain.EventType
	requireReason bool
	apply         func(sub *subscriptiondomain.Subscription, reason string, adminID snowflake.ID, now time.Time)
}

func (s *Service) Approve(ctx context.Context, req subscriptiondomain.ActionRequest) (subscriptiondomain.Response, error) {
	return s.transition(ctx, req, transitionSpec{
		target: subscriptiondomain.StatusActive,
		action: subscriptiondomain.ActionApprove,
		event:  notificationdomain.EventApproved,
		apply: func(sub *subscriptiondomain.Subscription, _ string, adminID snowflake.ID, now time.Time) {
			sub.ApprovedBy = &adminID
			sub.ApprovedAt = &now
			next := nextBillingDate(sub.BillingCycle, now)
			sub.NextBillingAt = &next
		},
	})
}

func (s *Service) Reject(ctx context.Context, req subscriptiondomain.ActionRequest) (subscriptiondomain.Response, error) {
	return s.transition(ctx, req, transitionSpec{
		target:        subscriptiondomain.StatusRejected,
		action:        subscriptiondomain.ActionReject,
		event:         notificationdomain.EventRejected,
		requireReason: true,
		apply: func(sub *subscriptiondomain.Subscription, reason string, _ snowflake.ID, _ time.Time) {
			sub.RejectionReason = &reason
		},
	})
}

func (s *Service) Suspend(ctx context.Context, req subscriptiondomain.ActionRequest) (subscriptiondomain.Response, error) {
	return s.transition(ctx, req, transitionSpec{
		target:        subscriptiondomain.StatusSuspended,
		action:        subscriptiondomain.ActionSuspend,
		event:         notificationdomain.EventSuspended,
		requireReason: true,
		apply: func(sub *subscriptiondomain.Subscription, reason string, _ snowflake.ID, _ time.Time) {
			sub.SuspensionReason = &reason
		},
	})
}

func (s *Service) Terminate(ctx context.Context, req subscriptiondomain.ActionRequest) (subscriptiondomain.Response, error) {
	return s.transition(ctx, req, transitionSpec{
		target:        subscriptiondomain.StatusTerminated,
		action:        subscriptiondomain.ActionTerminate,
		event:         notificationdomain.EventTerminated,
		requireReason: true,
		apply: func(sub *subscriptiondomain.Subscription, reason string, _ snowflake.ID, _ time.Time) {
			sub.TerminationReason = &reason
		},
	})
}

func (s *Service) Reactivate(ctx context.Context, req subscriptiondomain.ActionRequest) (subscriptiondomain.Response, error) {
	return s.transition(ctx, req, transitionSpec{
		target: subscriptiondomain.StatusActive,
		action: subscriptiondomain.ActionReactivate,
		event:  notificationdomain.EventReactivated,
		apply: func(sub *subscriptiondomain.Subscription, _ string, _ snowflake.ID, _ time.Time) {
			sub.SuspensionReason = nil
		},
	})
}

// transition runs one validated lifecycle change. The status mutation and its
// history append commit in a single transaction; notification dispatch happens
// after the commit and never fails the call.
func (s *Service) transition(ctx context.Context, req subscriptiondomain.ActionRequest, spec transitionSpec) (subscriptiondomain.Response, error) {
	adminID, ok := actorcontext.AdminIDFromContext(ctx)
	if !ok || adminID == 0 {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrMissingActor
	}

	// History rows record the acting admin, so the actor must be a known user.
	exists, err := s.directoryRepo.UserExists(ctx, s.db, adminID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if !exists {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrMissingActor
	}

	id, err := s.parseID(req.SubscriptionID, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	if spec.requireReason && reason == "" {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrMissingReason
	}

	var updated *subscriptiondomain.Subscription
	for attempt := 0; attempt < conflictRetries; attempt++ {
		updated, err = s.applyTransition(ctx, id, adminID, reason, spec)
		if err == nil {
			break
		}
		if !errors.Is(err, subscriptiondomain.ErrConcurrencyConflict) {
			break
		}
		s.log.Debug("transition conflict, retrying",
			zap.String("subscription_id", id.String()),
			zap.String("action", string(spec.action)),
			zap.Int("attempt", attempt+1),
		)
	}
	if err != nil {
		s.metrics.IncTransition(string(spec.action), "error")
		return subscriptiondomain.Response{}, err
	}

	s.metrics.IncTransition(string(spec.action), "success")
	s.dispatch(ctx, spec.event, updated, reason)

	return toResponse(updated), nil
}

func (s *Service) applyTransition(
	ctx context.Context,
	id snowflake.ID,
	adminID snowflake.ID,
	reason string,
	spec transitionSpec,
) (*subscriptiondomain.Subscription, error) {
	var updated *subscriptiondomain.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		if err := subscriptiondomain.ValidateTransition(subscription.Status, spec.target); err != nil {
			return err
		}

		now := s.clock.Now()
		fromStatus := subscription.Status
		loadedVersion := subscription.Version

		spec.apply(subscription, reason, adminID, now)
		subscription.Status = spec.target
		subscription.UpdatedAt = now

		if err := s.repo.UpdateLifecycle(ctx, tx, subscription, loadedVersion); err != nil {
			return err
		}

		entry := subscriptiondomain.ApprovalHistoryEntry{
			ID:             s.genID.Generate(),
			SubscriptionID: subscription.ID,
			AdminID:        adminID,
			FromStatus:     fromStatus,
			ToStatus:       spec.target,
			Action:         spec.action,
			Reason:         reason,
			CreatedAt:      now,
		}
		if err := s.repo.InsertHistory(ctx, tx, &entry); err != nil {
			return err
		}

		updated = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Response, error) {
	tenantID, err := s.parseID(req.TenantID, subscriptiondomain.ErrInvalidTenant)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	planID, err := s.parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	tenant, err := s.directoryRepo.FindTenantByID(ctx, s.db, tenantID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if tenant == nil {
		return subscriptiondomain.Response{}, directorydomain.ErrTenantNotFound
	}

	plan, err := s.planRepo.FindByID(ctx, s.db, planID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if plan == nil || !plan.Active {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidPlan
	}

	billingCycle := strings.ToLower(strings.TrimSpace(req.BillingCycle))
	if billingCycle == "" {
		billingCycle = plan.BillingCycle
	}
	if !isKnownBillingCycle(billingCycle) {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidBillingCycle
	}

	now := s.clock.Now()

	var trialEndsAt *time.Time
	if req.TrialDays != nil {
		if *req.TrialDays <= 0 {
			return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidTrialDays
		}
		ends := now.AddDate(0, 0, *req.TrialDays)
		trialEndsAt = &ends
	}

	subscription := subscriptiondomain.Subscription{
		ID:                  s.genID.Generate(),
		TenantID:            tenantID,
		PlanID:              planID,
		Status:              subscriptiondomain.StatusPendingApproval,
		BillingCycle:        billingCycle,
		Price:               plan.Price,
		DiscountRate:        req.DiscountRate,
		ApprovalRequestedAt: &now,
		TrialEndsAt:         trialEndsAt,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// Evaluate auto-approval before the insert; an engine failure falls back
	// to the manual path rather than failing the request.
	rule, ruleErr := s.autoapprovalSvc.GetAppliedRule(ctx, autoapprovaldomain.Request{
		TenantID: tenantID,
		PlanID:   planID,
	})
	if ruleErr != nil {
		s.log.Warn("auto-approval evaluation failed, leaving request pending",
			zap.String("tenant_id", tenantID.String()),
			zap.String("plan_id", planID.String()),
			zap.Error(ruleErr),
		)
		rule = nil
	}

	actorID, _ := actorcontext.AdminIDFromContext(ctx)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rule == nil {
			return s.repo.Insert(ctx, tx, &subscription)
		}

		subscription.Status = subscriptiondomain.StatusAutoApproved
		subscription.ApprovedAt = &now
		approver := actorID
		subscription.ApprovedBy = &approver
		next := nextBillingDate(billingCycle, now)
		subscription.NextBillingAt = &next

		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			return err
		}
		return s.repo.InsertHistory(ctx, tx, &subscriptiondomain.ApprovalHistoryEntry{
			ID:             s.genID.Generate(),
			SubscriptionID: subscription.ID,
			AdminID:        actorID,
			FromStatus:     subscriptiondomain.StatusPendingApproval,
			ToStatus:       subscriptiondomain.StatusAutoApproved,
			Action:         subscriptiondomain.ActionAutoApprove,
			Reason:         rule.Name,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	if rule != nil {
		s.metrics.IncTransition(string(subscriptiondomain.ActionAutoApprove), "success")
		s.dispatch(ctx, notificationdomain.EventAutoApproved, &subscription, rule.Name)
	} else {
		s.dispatch(ctx, notificationdomain.EventRequestCreated, &subscription, "")
	}

	return toResponse(&subscription), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if subscription == nil {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrSubscriptionNotFound
	}

	return toResponse(subscription), nil
}

func (s *Service) ListPendingApprovals(ctx context.Context, req subscriptiondomain.ListPendingRequest) (subscriptiondomain.ListPendingResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var cursor *pagination.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return subscriptiondomain.ListPendingResponse{}, err
		}
		cursor = &decoded
	}

	items, err := s.repo.ListByStatus(ctx, s.db, subscriptiondomain.StatusPendingApproval, pageSize, cursor)
	if err != nil {
		return subscriptiondomain.ListPendingResponse{}, err
	}

	refs := make([]*subscriptiondomain.Subscription, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, pageSize, func(item *subscriptiondomain.Subscription) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	subscriptions := make([]subscriptiondomain.Response, 0, len(items))
	for i := range items {
		subscriptions = append(subscriptions, toResponse(&items[i]))
	}

	resp := subscriptiondomain.ListPendingResponse{
		Subscriptions: subscriptions,
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetApprovalHistory(ctx context.Context, subscriptionID string) ([]subscriptiondomain.HistoryResponse, error) {
	id, err := s.parseID(subscriptionID, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	entries, err := s.repo.ListHistory(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	out := make([]subscriptiondomain.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, subscriptiondomain.HistoryResponse{
			ID:             entry.ID.String(),
			SubscriptionID: entry.SubscriptionID.String(),
			AdminID:        entry.AdminID.String(),
			FromStatus:     entry.FromStatus,
			ToStatus:       entry.ToStatus,
			Action:         entry.Action,
			Reason:         entry.Reason,
			CreatedAt:      entry.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) dispatch(ctx context.Context, event notificationdomain.EventType, subscription *subscriptiondomain.Subscription, reason string) {
	planName := ""
	if plan, err := s.planRepo.FindByID(ctx, s.db, subscription.PlanID); err == nil && plan != nil {
		planName = plan.Name
	}

	s.notificationSvc.Dispatch(ctx, notificationdomain.Event{
		Type:           event,
		SubscriptionID: subscription.ID,
		TenantID:       subscription.TenantID,
		PlanName:       planName,
		Reason:         reason,
	})
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func isKnownBillingCycle(cycle string) bool {
	switch cycle {
	case "monthly", "quarterly", "yearly":
		return true
	default:
		return false
	}
}

func nextBillingDate(cycle string, from time.Time) time.Time {
	switch cycle {
	case "quarterly":
		return from.AddDate(0, 3, 0)
	case "yearly":
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

func toResponse(subscription *subscriptiondomain.Subscription) subscriptiondomain.Response {
	var approvedBy *string
	if subscription.ApprovedBy != nil {
		value := subscription.ApprovedBy.String()
		approvedBy = &value
	}

	return subscriptiondomain.Response{
		ID:                  subscription.ID.String(),
		TenantID:            subscription.TenantID.String(),
		PlanID:              subscription.PlanID.String(),
		Status:              subscription.Status,
		BillingCycle:        subscription.BillingCycle,
		Price:               subscription.Price,
		DiscountRate:        subscription.DiscountRate,
		NextBillingAt:       subscription.NextBillingAt,
		ApprovalRequestedAt: subscription.ApprovalRequestedAt,
		ApprovedAt:          subscription.ApprovedAt,
		ApprovedBy:          approvedBy,
		RejectionReason:     subscription.RejectionReason,
		SuspensionReason:    subscription.SuspensionReason,
		TerminationReason:   subscription.TerminationReason,
		TrialEndsAt:         subscription.TrialEndsAt,
		CancelledAt:         subscription.CancelledAt,
		Version:             subscription.Version,
		CreatedAt:           subscription.CreatedAt,
	}
}
