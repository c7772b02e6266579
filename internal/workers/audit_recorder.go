package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-forms/internal/database"
	"github.com/benvon/smart-forms/internal/queue"
	"go.uber.org/zap"
)

// errInvalidJob marks jobs that can never succeed and go straight to the DLQ
var errInvalidJob = errors.New("invalid job")

// AuditRecorder persists auth events taken off the queue
type AuditRecorder struct {
	events   database.AuthEventRepositoryInterface
	jobQueue queue.Publisher // For re-enqueueing failed jobs with their retry count
	logger   *zap.Logger
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(events database.AuthEventRepositoryInterface, jobQueue queue.Publisher, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{
		events:   events,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// RecordAuthEvent writes the event carried by job
func (a *AuditRecorder) RecordAuthEvent(ctx context.Context, job *queue.Job) error {
	if job.Event == nil {
		return fmt.Errorf("%w: job %s has no event", errInvalidJob, job.ID)
	}
	if !job.Event.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", errInvalidJob, job.Event.Type)
	}
	if err := a.events.Create(ctx, job.Event); err != nil {
		return fmt.Errorf("failed to record auth event: %w", err)
	}
	return nil
}

// ProcessJob processes a job based on its type and settles the message
func (a *AuditRecorder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		a.logger.Info("auth_event_job_expired",
			zap.String("job_id", job.ID.String()),
			zap.Time("created_at", job.CreatedAt),
		)
		if err := msg.Nack(false); err != nil {
			return fmt.Errorf("failed to nack expired job: %w", err)
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeRecordAuthEvent:
		if err := a.RecordAuthEvent(ctx, job); err != nil {
			return a.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		a.logger.Debug("auth_event_recorded",
			zap.String("job_id", job.ID.String()),
			zap.String("event_type", string(job.Event.Type)),
		)
		return nil

	default:
		if err := msg.Nack(false); err != nil { // Unknown job type, send to DLQ
			a.logger.Warn("nack_failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError retries transient failures by re-enqueueing a copy with the
// retry count bumped, since a plain requeue redelivers the original body.
func (a *AuditRecorder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if errors.Is(err, errInvalidJob) || !job.CanRetry() || a.jobQueue == nil {
		a.logger.Warn("auth_event_job_dead_lettered",
			zap.String("job_id", job.ID.String()),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (sent to DLQ): %w", err)
	}

	retry := *job
	retry.IncrementRetry()

	if enqueueErr := a.jobQueue.Enqueue(ctx, &retry); enqueueErr != nil {
		a.logger.Warn("auth_event_job_reenqueue_failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(enqueueErr),
		)
		if nackErr := msg.Nack(true); nackErr != nil {
			a.logger.Warn("nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job failed, requeued: %w", err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		a.logger.Warn("ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}
	a.logger.Info("auth_event_job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", retry.MaxRetries),
		zap.Error(err),
	)
	return fmt.Errorf("job failed (will retry): %w", err)
}
