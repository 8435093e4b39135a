package domain

import "context"

// Service is the data-integrity auditor. RunCheck never mutates; violations
// are collected into the report, never raised as errors. PerformAutoRecovery
// applies only the safe, idempotent repair subset: running it twice in a row
// performs zero additional repairs the second time.
type Service interface {
	RunCheck(ctx context.Context) (Report, error)
	PerformAutoRecovery(ctx context.Context) (int64, error)
	CleanupOrphans(ctx context.Context) (int64, error)

	// IsScheduledEnabled and SetScheduledEnabled control the periodic sweep.
	// The flag is process-local and resets to the configured default on
	// restart.
	IsScheduledEnabled() bool
	SetScheduledEnabled(enabled bool)
}
