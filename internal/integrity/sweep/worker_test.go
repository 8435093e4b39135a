package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	integritydomain "github.com/subvisor/subvisor/internal/integrity/domain"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	"go.uber.org/zap"
)

type integrityStub struct {
	mu         sync.Mutex
	enabled    bool
	report     integritydomain.Report
	checks     int
	recoveries int
	checked    chan struct{}
}

func (s *integrityStub) RunCheck(ctx context.Context) (integritydomain.Report, error) {
	s.mu.Lock()
	s.checks++
	s.mu.Unlock()
	if s.checked != nil {
		select {
		case s.checked <- struct{}{}:
		default:
		}
	}
	return s.report, nil
}

func (s *integrityStub) PerformAutoRecovery(ctx context.Context) (int64, error) {
	s.mu.Lock()
	s.recoveries++
	s.mu.Unlock()
	return 1, nil
}

func (s *integrityStub) CleanupOrphans(ctx context.Context) (int64, error) { return 0, nil }

func (s *integrityStub) IsScheduledEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *integrityStub) SetScheduledEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *integrityStub) checkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

func (s *integrityStub) recoveryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoveries
}

type purgeStub struct {
	mu     sync.Mutex
	purges int
}

func (s *purgeStub) Dispatch(ctx context.Context, event notificationdomain.Event) {}

func (s *purgeStub) MarkRead(ctx context.Context, req notificationdomain.MarkReadRequest) (int64, error) {
	return 0, nil
}

func (s *purgeStub) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	s.purges++
	s.mu.Unlock()
	return 2, nil
}

func (s *purgeStub) purgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purges
}

func newTestWorker(integrity *integrityStub, notifications *purgeStub, interval time.Duration) *Worker {
	return NewWorker(Params{
		Log:           zap.NewNop(),
		Integrity:     integrity,
		Notifications: notifications,
		Config:        Config{Interval: interval, RunTimeout: time.Second},
	})
}

func TestRunForeverSweepsBeforeFirstTick(t *testing.T) {
	integrity := &integrityStub{enabled: true, checked: make(chan struct{}, 1)}
	worker := newTestWorker(integrity, &purgeStub{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.RunForever(ctx)

	// The hour-long interval cannot have elapsed, so the only way the check
	// runs is the startup pass.
	select {
	case <-integrity.checked:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an integrity check before the first tick")
	}
}

func TestTickSkipsDisabledSweepButStillPurges(t *testing.T) {
	integrity := &integrityStub{enabled: false}
	notifications := &purgeStub{}
	worker := newTestWorker(integrity, notifications, time.Hour)

	worker.Tick(context.Background())

	if got := integrity.checkCount(); got != 0 {
		t.Fatalf("disabled sweep must not run checks, got %d", got)
	}
	if got := notifications.purgeCount(); got != 1 {
		t.Fatalf("expected one retention purge, got %d", got)
	}
}

func TestTickRecoversWhenReportFlagsIssues(t *testing.T) {
	integrity := &integrityStub{enabled: true}
	integrity.report.AutoRecoverable = 1
	notifications := &purgeStub{}
	worker := newTestWorker(integrity, notifications, time.Hour)

	worker.Tick(context.Background())

	if got := integrity.checkCount(); got != 1 {
		t.Fatalf("expected one check, got %d", got)
	}
	if got := integrity.recoveryCount(); got != 1 {
		t.Fatalf("expected one auto-recovery, got %d", got)
	}
	if got := notifications.purgeCount(); got != 1 {
		t.Fatalf("expected one retention purge, got %d", got)
	}
}
