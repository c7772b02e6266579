package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-forms/internal/models"
	"github.com/google/uuid"
)

// AuthEventRepository stores the auth audit trail
type AuthEventRepository struct {
	db *DB
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Create inserts event. Re-delivered events with a known ID are ignored.
func (r *AuthEventRepository) Create(ctx context.Context, event *models.AuthEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO auth_events (id, type, user_id, email, ip, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.UserID,
		event.Email,
		event.IP,
		event.UserAgent,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth event: %w", err)
	}
	return nil
}

// ListByUser returns the most recent events for userID, newest first
func (r *AuthEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuthEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, user_id, email, ip, user_agent, occurred_at
		FROM auth_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*models.AuthEvent
	for rows.Next() {
		event := &models.AuthEvent{}
		var eventType string
		var uid uuid.NullUUID
		if err := rows.Scan(&event.ID, &eventType, &uid, &event.Email, &event.IP, &event.UserAgent, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		event.Type = models.AuthEventType(eventType)
		if uid.Valid {
			event.UserID = &uid.UUID
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan removes events that occurred before cutoff and returns how many were removed
func (r *AuthEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auth_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune auth events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
