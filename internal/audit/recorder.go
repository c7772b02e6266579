// Package audit publishes auth events for the audit worker to persist.
package audit

import (
	"context"
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-forms/internal/logger"
	"github.com/benvon/smart-forms/internal/models"
	"github.com/benvon/smart-forms/internal/queue"
	"github.com/benvon/smart-forms/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// publishTimeout bounds how long a request waits on the broker
const publishTimeout = 2 * time.Second

// Sink accepts auth events. Recording never fails the caller.
type Sink interface {
	Record(ctx context.Context, event *models.AuthEvent)
}

// Recorder publishes auth events onto the job queue
type Recorder struct {
	publisher queue.Publisher
	logger    *zap.Logger
}

// NewRecorder creates a recorder. A nil publisher drops events after logging them.
func NewRecorder(publisher queue.Publisher, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{publisher: publisher, logger: logger}
}

// Record enqueues event. The publish outlives request cancellation so a
// client hanging up right after login still leaves a trail.
func (r *Recorder) Record(ctx context.Context, event *models.AuthEvent) {
	if r.publisher == nil {
		r.logger.Debug("auth_event_dropped", zap.String("event_type", string(event.Type)))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	job := queue.NewAuthEventJob(event)
	if err := r.publisher.Enqueue(ctx, job); err != nil {
		r.logger.Warn("auth_event_enqueue_failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
	}
}

// NewEvent builds an event of type t for the request r. Email is masked
// before it is stored.
func NewEvent(r *http.Request, t models.AuthEventType, userID string, email string) *models.AuthEvent {
	event := &models.AuthEvent{
		Type:       t,
		Email:      logpkg.MaskEmail(email),
		IP:         request.ClientIP(r),
		UserAgent:  logpkg.SanitizeString(r.UserAgent(), 512),
		OccurredAt: time.Now().UTC(),
	}
	if id, err := uuid.Parse(userID); err == nil {
		event.UserID = &id
	}
	return event
}

// Discard is a Sink that drops every event
type Discard struct{}

// Record does nothing
func (Discard) Record(context.Context, *models.AuthEvent) {}

var (
	_ Sink = (*Recorder)(nil)
	_ Sink = Discard{}
)
