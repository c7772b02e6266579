package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultRetention is how long auth events are kept
const DefaultRetention = 90 * 24 * time.Hour

// AuthEventPruner deletes auth events older than a cutoff
type AuthEventPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionPruner periodically deletes auth events past the retention window
type RetentionPruner struct {
	events    AuthEventPruner
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRetentionPruner creates a new retention pruner
func NewRetentionPruner(events AuthEventPruner, retention, interval time.Duration, logger *zap.Logger) *RetentionPruner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionPruner{
		events:    events,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs a prune immediately and then on every interval until ctx is done
func (p *RetentionPruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collect(ctx)
		}
	}
}

// Prune deletes events older than the retention window
func (p *RetentionPruner) Prune(ctx context.Context) (int64, error) {
	return p.events.DeleteOlderThan(ctx, p.now().Add(-p.retention))
}

func (p *RetentionPruner) collect(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("auth_event_prune_failed", zap.Error(err))
		}
		return
	}
	if deleted > 0 {
		p.logger.Info("auth_events_pruned",
			zap.Int64("deleted", deleted),
			zap.Duration("retention", p.retention),
		)
	}
}
