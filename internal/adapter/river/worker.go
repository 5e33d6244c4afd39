package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// EventWorker processes workflow event jobs from the River queue. For now it
// logs the event; webhook fan-out and notification dispatch hang off here.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing workflow event",
		"event", job.Args.Event,
		"session_id", job.Args.SessionID,
		"tenant_id", job.Args.TenantID,
		"school_id", job.Args.SchoolID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// ActivationWorker calls the external activation service for tenants whose
// KYC case was approved. A returned error makes River retry; the verified
// status itself is never touched from here.
type ActivationWorker struct {
	river.WorkerDefaults[ActivationJobArgs]

	activator domain.ActivationService
}

// NewActivationWorker creates a worker calling the given activation service.
func NewActivationWorker(activator domain.ActivationService) *ActivationWorker {
	return &ActivationWorker{activator: activator}
}

// Work attempts one activation.
func (w *ActivationWorker) Work(ctx context.Context, job *river.Job[ActivationJobArgs]) error {
	if err := w.activator.Activate(ctx, job.Args.TenantID); err != nil {
		slog.WarnContext(ctx, "tenant activation failed, river will retry",
			"tenant_id", job.Args.TenantID,
			"job_id", job.ID,
			"attempt", job.Attempt,
			"error", err,
		)
		return err
	}

	slog.InfoContext(ctx, "tenant activated",
		"tenant_id", job.Args.TenantID,
		"job_id", job.ID,
	)
	return nil
}
