package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/subvisor/subvisor/internal/actorcontext"
	autoapprovaldomain "github.com/subvisor/subvisor/internal/autoapproval/domain"
	"github.com/subvisor/subvisor/internal/clock"
	directorydomain "github.com/subvisor/subvisor/internal/directory/domain"
	directoryrepository "github.com/subvisor/subvisor/internal/directory/repository"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	plandomain "github.com/subvisor/subvisor/internal/plan/domain"
	planrepository "github.com/subvisor/subvisor/internal/plan/repository"
	subscriptiondomain "github.com/subvisor/subvisor/internal/subscription/domain"
	subscriptionrepository "github.com/subvisor/subvisor/internal/subscription/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type autoApprovalStub struct {
	rule *autoapprovaldomain.Rule
	err  error
}

func (s *autoApprovalStub) Evaluate(ctx context.Context, req autoapprovaldomain.Request) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.rule != nil, nil
}

func (s *autoApprovalStub) GetAppliedRule(ctx context.Context, req autoapprovaldomain.Request) (*autoapprovaldomain.Rule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rule, nil
}

func (s *autoApprovalStub) GetRule(ctx context.Context, id string) (*autoapprovaldomain.Rule, error) {
	if s.rule != nil && s.rule.ID.String() == id {
		return s.rule, nil
	}
	return nil, autoapprovaldomain.ErrRuleNotFound
}

func (s *autoApprovalStub) IsEnabled() bool { return s.rule != nil }
func (s *autoApprovalStub) SetEnabled(bool) {}

type notificationStub struct {
	mu     sync.Mutex
	events []notificationdomain.Event
}

func (s *notificationStub) Dispatch(ctx context.Context, event notificationdomain.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *notificationStub) MarkRead(ctx context.Context, req notificationdomain.MarkReadRequest) (int64, error) {
	return 0, nil
}

func (s *notificationStub) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *notificationStub) Events() []notificationdomain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notificationdomain.Event, len(s.events))
	copy(out, s.events)
	return out
}

type fixture struct {
	svc      subscriptiondomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	notified *notificationStub
	tenantID snowflake.ID
	planID   snowflake.ID
	adminID  snowflake.ID
}

// conflictingRepo simulates a concurrent writer: the first n lifecycle
// updates fail with a version conflict before delegating to the real repo.
type conflictingRepo struct {
	subscriptiondomain.Repository
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (r *conflictingRepo) UpdateLifecycle(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, expectedVersion int64) error {
	r.mu.Lock()
	r.attempts++
	conflict := r.conflicts > 0
	if conflict {
		r.conflicts--
	}
	r.mu.Unlock()

	if conflict {
		return subscriptiondomain.ErrConcurrencyConflict
	}
	return r.Repository.UpdateLifecycle(ctx, tx, sub, expectedVersion)
}

func (r *conflictingRepo) updateAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func setupService(t *testing.T, auto autoapprovaldomain.Service) *fixture {
	t.Helper()
	return setupServiceWithRepo(t, auto, nil)
}

func setupServiceWithRepo(t *testing.T, auto autoapprovaldomain.Service, repo subscriptiondomain.Repository) *fixture {
	t.Helper()

	node := mustNode(t)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.ApprovalHistoryEntry{},
		&directorydomain.Tenant{},
		&directorydomain.User{},
		&plandomain.Plan{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	notified := &notificationStub{}

	tenantID := node.Generate()
	planID := node.Generate()
	adminID := node.Generate()

	if err := db.Create(&directorydomain.Tenant{
		ID:       tenantID,
		Name:     "acme",
		Verified: true,
	}).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	if err := db.Create(&directorydomain.User{
		ID:    adminID,
		Role:  directorydomain.RoleAdministrator,
		Email: "ops@example.com",
	}).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if err := db.Create(&plandomain.Plan{
		ID:           planID,
		Name:         "pro",
		BillingCycle: "monthly",
		Price:        50000,
		Active:       true,
	}).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	if repo == nil {
		repo = subscriptionrepository.Provide()
	}

	svc := NewService(ServiceParam{
		DB:              db,
		Log:             zap.NewNop(),
		GenID:           node,
		Clock:           fakeClock,
		Repo:            repo,
		PlanRepo:        planrepository.Provide(),
		DirectoryRepo:   directoryrepository.Provide(),
		AutoapprovalSvc: auto,
		NotificationSvc: notified,
	})

	return &fixture{
		svc:      svc,
		db:       db,
		node:     node,
		clock:    fakeClock,
		notified: notified,
		tenantID: tenantID,
		planID:   planID,
		adminID:  adminID,
	}
}

func (f *fixture) adminCtx() context.Context {
	return actorcontext.WithAdminID(context.Background(), int64(f.adminID))
}

func (f *fixture) createPending(t *testing.T) subscriptiondomain.Response {
	t.Helper()
	resp, err := f.svc.Create(f.adminCtx(), subscriptiondomain.CreateSubscriptionRequest{
		TenantID: f.tenantID.String(),
		PlanID:   f.planID.String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return resp
}

func TestCreatePendingApproval(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})

	resp := f.createPending(t)

	if resp.Status != subscriptiondomain.StatusPendingApproval {
		t.Fatalf("expected PENDING_APPROVAL, got %s", resp.Status)
	}
	if resp.ApprovalRequestedAt == nil {
		t.Fatal("expected approval-requested timestamp")
	}
	if resp.Price != 50000 {
		t.Fatalf("expected plan price snapshot, got %v", resp.Price)
	}
	if resp.Version != 1 {
		t.Fatalf("expected version 1, got %d", resp.Version)
	}

	events := f.notified.Events()
	if len(events) != 1 || events[0].Type != notificationdomain.EventRequestCreated {
		t.Fatalf("expected one request-created event, got %+v", events)
	}
}

func TestCreateAutoApproved(t *testing.T) {
	node := mustNode(t)
	rule := &autoapprovaldomain.Rule{ID: node.Generate(), Name: "low-risk", Priority: 10}
	f := setupService(t, &autoApprovalStub{rule: rule})

	resp, err := f.svc.Create(f.adminCtx(), subscriptiondomain.CreateSubscriptionRequest{
		TenantID: f.tenantID.String(),
		PlanID:   f.planID.String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if resp.Status != subscriptiondomain.StatusAutoApproved {
		t.Fatalf("expected AUTO_APPROVED, got %s", resp.Status)
	}
	if resp.ApprovedAt == nil || resp.ApprovedBy == nil {
		t.Fatal("auto-approved subscription must carry approver and timestamp")
	}
	if resp.NextBillingAt == nil {
		t.Fatal("expected next billing date")
	}

	history, err := f.svc.GetApprovalHistory(f.adminCtx(), resp.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history row, got %d", len(history))
	}
	entry := history[0]
	if entry.Action != subscriptiondomain.ActionAutoApprove ||
		entry.FromStatus != subscriptiondomain.StatusPendingApproval ||
		entry.ToStatus != subscriptiondomain.StatusAutoApproved ||
		entry.Reason != "low-risk" {
		t.Fatalf("unexpected history row: %+v", entry)
	}

	events := f.notified.Events()
	if len(events) != 1 || events[0].Type != notificationdomain.EventAutoApproved {
		t.Fatalf("expected one auto-approved event, got %+v", events)
	}
}

func TestCreateEngineFailureFallsBackToPending(t *testing.T) {
	f := setupService(t, &autoApprovalStub{err: errors.New("rule store down")})

	resp := f.createPending(t)
	if resp.Status != subscriptiondomain.StatusPendingApproval {
		t.Fatalf("expected PENDING_APPROVAL fallback, got %s", resp.Status)
	}
}

func TestApproveSetsFieldsAndHistory(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	created := f.createPending(t)

	resp, err := f.svc.Approve(f.adminCtx(), subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if resp.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", resp.Status)
	}
	if resp.ApprovedAt == nil {
		t.Fatal("expected approved timestamp")
	}
	if resp.ApprovedBy == nil || *resp.ApprovedBy != f.adminID.String() {
		t.Fatalf("expected approver %s, got %v", f.adminID, resp.ApprovedBy)
	}
	if resp.NextBillingAt == nil {
		t.Fatal("expected next billing date")
	}
	if resp.Version != created.Version+1 {
		t.Fatalf("expected version bump to %d, got %d", created.Version+1, resp.Version)
	}

	history, err := f.svc.GetApprovalHistory(f.adminCtx(), created.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one history row, got %d", len(history))
	}
	entry := history[0]
	if entry.Action != subscriptiondomain.ActionApprove ||
		entry.FromStatus != subscriptiondomain.StatusPendingApproval ||
		entry.ToStatus != subscriptiondomain.StatusActive ||
		entry.AdminID != f.adminID.String() {
		t.Fatalf("unexpected history row: %+v", entry)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	created := f.createPending(t)

	_, err := f.svc.Reject(f.adminCtx(), subscriptiondomain.ActionRequest{
		SubscriptionID: created.ID,
		Reason:         "   ",
	})
	if !errors.Is(err, subscriptiondomain.ErrMissingReason) {
		t.Fatalf("expected ErrMissingReason, got %v", err)
	}

	resp, err := f.svc.Reject(f.adminCtx(), subscriptiondomain.ActionRequest{
		SubscriptionID: created.ID,
		Reason:         "R",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resp.Status != subscriptiondomain.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", resp.Status)
	}
	if resp.RejectionReason == nil || *resp.RejectionReason != "R" {
		t.Fatalf("expected rejection reason R, got %v", resp.RejectionReason)
	}
}

func TestSuspendTerminateLifecycle(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	created := f.createPending(t)
	ctx := f.adminCtx()

	if _, err := f.svc.Approve(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	suspended, err := f.svc.Suspend(ctx, subscriptiondomain.ActionRequest{
		SubscriptionID: created.ID,
		Reason:         "payment overdue",
	})
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.Status != subscriptiondomain.StatusSuspended {
		t.Fatalf("expected SUSPENDED, got %s", suspended.Status)
	}

	terminated, err := f.svc.Terminate(ctx, subscriptiondomain.ActionRequest{
		SubscriptionID: created.ID,
		Reason:         "contract breach",
	})
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if terminated.Status != subscriptiondomain.StatusTerminated {
		t.Fatalf("expected TERMINATED, got %s", terminated.Status)
	}
	if terminated.TerminationReason == nil || *terminated.TerminationReason != "contract breach" {
		t.Fatalf("expected termination reason, got %v", terminated.TerminationReason)
	}

	// Terminated is final: neither reactivate nor approve can leave it.
	_, err = f.svc.Reactivate(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if !errors.Is(err, subscriptiondomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	_, err = f.svc.Approve(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if !errors.Is(err, subscriptiondomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on approve after terminate, got %v", err)
	}

	history, err := f.svc.GetApprovalHistory(ctx, created.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected three history rows, got %d", len(history))
	}
}

func TestReactivateClearsSuspensionReason(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	created := f.createPending(t)
	ctx := f.adminCtx()

	if _, err := f.svc.Approve(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.Suspend(ctx, subscriptiondomain.ActionRequest{
		SubscriptionID: created.ID,
		Reason:         "fraud review",
	}); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	resp, err := f.svc.Reactivate(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if resp.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", resp.Status)
	}
	if resp.SuspensionReason != nil {
		t.Fatalf("expected suspension reason cleared, got %v", *resp.SuspensionReason)
	}
}

func TestTransitionRequiresActor(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	created := f.createPending(t)

	_, err := f.svc.Approve(context.Background(), subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if !errors.Is(err, subscriptiondomain.ErrMissingActor) {
		t.Fatalf("expected ErrMissingActor, got %v", err)
	}

	// An actor id that no user record backs is rejected the same way.
	ghostCtx := actorcontext.WithAdminID(context.Background(), int64(f.node.Generate()))
	_, err = f.svc.Approve(ghostCtx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if !errors.Is(err, subscriptiondomain.ErrMissingActor) {
		t.Fatalf("expected ErrMissingActor for unknown admin, got %v", err)
	}
}

func TestCreateUnknownTenant(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})

	_, err := f.svc.Create(f.adminCtx(), subscriptiondomain.CreateSubscriptionRequest{
		TenantID: f.node.Generate().String(),
		PlanID:   f.planID.String(),
	})
	if !errors.Is(err, directorydomain.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestTransitionUnknownSubscription(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})

	_, err := f.svc.Approve(f.adminCtx(), subscriptiondomain.ActionRequest{
		SubscriptionID: f.node.Generate().String(),
	})
	if !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestStaleVersionConflicts(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	created := f.createPending(t)
	ctx := f.adminCtx()

	repo := subscriptionrepository.Provide()
	id, err := snowflake.ParseString(created.ID)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	loaded, err := repo.FindByID(ctx, f.db, id)
	if err != nil || loaded == nil {
		t.Fatalf("load: %v", err)
	}

	// A write guarded by a version nobody holds anymore must conflict.
	loaded.Status = subscriptiondomain.StatusActive
	err = repo.UpdateLifecycle(ctx, f.db, loaded, loaded.Version+5)
	if !errors.Is(err, subscriptiondomain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestConflictRetrySucceedsAfterReload(t *testing.T) {
	repo := &conflictingRepo{Repository: subscriptionrepository.Provide(), conflicts: 1}
	f := setupServiceWithRepo(t, &autoApprovalStub{}, repo)
	created := f.createPending(t)
	ctx := f.adminCtx()

	resp, err := f.svc.Approve(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resp.Status != subscriptiondomain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", resp.Status)
	}
	if got := repo.updateAttempts(); got != 2 {
		t.Fatalf("expected one conflicted attempt plus one retry, got %d", got)
	}
	if resp.Version != created.Version+1 {
		t.Fatalf("expected a single version bump, got %d", resp.Version)
	}

	// The rolled-back attempt must leave no history behind.
	history, err := f.svc.GetApprovalHistory(ctx, created.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history row, got %d", len(history))
	}
}

func TestPersistentConflictSurfacesAfterRetries(t *testing.T) {
	repo := &conflictingRepo{Repository: subscriptionrepository.Provide(), conflicts: 10}
	f := setupServiceWithRepo(t, &autoApprovalStub{}, repo)
	created := f.createPending(t)
	ctx := f.adminCtx()

	_, err := f.svc.Approve(ctx, subscriptiondomain.ActionRequest{SubscriptionID: created.ID})
	if !errors.Is(err, subscriptiondomain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	if got := repo.updateAttempts(); got != 3 {
		t.Fatalf("expected three bounded attempts, got %d", got)
	}
	if events := f.notified.Events(); len(events) != 1 {
		t.Fatalf("failed transition must not notify beyond the create event, got %d", len(events))
	}
}

func TestListPendingApprovalsPagination(t *testing.T) {
	f := setupService(t, &autoApprovalStub{})
	ctx := f.adminCtx()

	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Minute)
		f.createPending(t)
	}

	page, err := f.svc.ListPendingApprovals(ctx, subscriptiondomain.ListPendingRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Subscriptions) != 5 {
		t.Fatalf("expected 5 pending, got %d", len(page.Subscriptions))
	}
	if page.HasMore {
		t.Fatal("expected no further pages")
	}

	small := subscriptiondomain.ListPendingRequest{}
	small.PageSize = 2
	firstPage, err := f.svc.ListPendingApprovals(ctx, small)
	if err != nil {
		t.Fatalf("list small: %v", err)
	}
	if len(firstPage.Subscriptions) != 2 || !firstPage.HasMore {
		t.Fatalf("expected full first page with more, got %d hasMore=%v",
			len(firstPage.Subscriptions), firstPage.HasMore)
	}

	next := subscriptiondomain.ListPendingRequest{}
	next.PageSize = 2
	next.PageToken = firstPage.NextPageToken
	secondPage, err := f.svc.ListPendingApprovals(ctx, next)
	if err != nil {
		t.Fatalf("list second: %v", err)
	}
	if len(secondPage.Subscriptions) != 2 || !secondPage.HasMore {
		t.Fatalf("expected full second page with more, got %d hasMore=%v",
			len(secondPage.Subscriptions), secondPage.HasMore)
	}
	if secondPage.Subscriptions[0].ID == firstPage.Subscriptions[0].ID {
		t.Fatal("pages overlap")
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
