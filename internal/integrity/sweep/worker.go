package sweep

import (
	"context"
	"time"

	integritydomain "github.com/subvisor/subvisor/internal/integrity/domain"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Integrity     integritydomain.Service
	Notifications notificationdomain.Service
	Config        Config `optional:"true"`
}

// Worker runs the integrity check on a fixed interval and applies the safe
// repair subset after each scan, then purges notifications past retention.
// The admin toggle is re-read on every tick, so disabling the sweep takes
// effect without a restart; the retention purge runs regardless.
type Worker struct {
	log           *zap.Logger
	integrity     integritydomain.Service
	notifications notificationdomain.Service
	cfg           Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:           p.Log.Named("integrity.sweep"),
		integrity:     p.Integrity,
		notifications: p.Notifications,
		cfg:           p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.Tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) Tick(ctx context.Context) {
	if w.integrity.IsScheduledEnabled() {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("integrity sweep run failed", zap.Error(err))
		}
	}

	purgeCtx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
	defer cancel()
	purged, err := w.notifications.PurgeExpired(purgeCtx)
	if err != nil {
		w.log.Warn("notification retention purge failed", zap.Error(err))
	} else if purged > 0 {
		w.log.Info("purged expired notifications", zap.Int64("purged", purged))
	}
}

func (w *Worker) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.RunTimeout)
	defer cancel()

	report, err := w.integrity.RunCheck(ctx)
	if err != nil {
		return err
	}

	repaired := int64(0)
	if report.AutoRecoverable > 0 {
		repaired, err = w.integrity.PerformAutoRecovery(ctx)
		if err != nil {
			return err
		}
	}

	w.log.Info("integrity sweep finished",
		zap.Int("issues", len(report.Issues)),
		zap.Int("auto_recoverable", report.AutoRecoverable),
		zap.Int("manual_required", report.ManualRequired),
		zap.Int64("repaired", repaired),
	)
	return nil
}
