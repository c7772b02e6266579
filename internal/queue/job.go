package queue

import (
	"time"

	"github.com/benvon/smart-forms/internal/models"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeRecordAuthEvent persists an auth audit event
	JobTypeRecordAuthEvent JobType = "record_auth_event"
)

// DefaultEventTTL is how long an unprocessed auth event stays worth recording
const DefaultEventTTL = 7 * 24 * time.Hour

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID         `json:"id"`
	Type       JobType           `json:"type"`
	Event      *models.AuthEvent `json:"event,omitempty"`
	NotAfter   *time.Time        `json:"not_after,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
}

// NewAuthEventJob wraps event in a job. The event gets an ID here so that
// redelivery of the same job records it once.
func NewAuthEventJob(event *models.AuthEvent) *Job {
	now := time.Now()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now.UTC()
	}
	notAfter := now.Add(DefaultEventTTL)
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeRecordAuthEvent,
		Event:      event,
		NotAfter:   &notAfter,
		CreatedAt:  now,
		MaxRetries: 3,
	}
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
