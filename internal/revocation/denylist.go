// Package revocation keeps a per-subject deny-list of sessions in Redis.
//
// A revocation records the moment a subject's sessions were invalidated.
// Any token whose issued-at is at or before that moment is rejected, so a
// single key covers every outstanding cookie for the subject. Keys expire
// after one session lifetime since no older token can still be live.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benvon/smart-forms/internal/session"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:revoked:"

// Denylist reports whether a session has been revoked
type Denylist interface {
	Revoke(ctx context.Context, subjectID string, at time.Time) error
	IsRevoked(ctx context.Context, claims *session.Claims) (bool, error)
}

// RedisDenylist stores revocations in Redis
type RedisDenylist struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisDenylist creates a deny-list backed by client
func NewRedisDenylist(client redis.Cmdable) *RedisDenylist {
	return &RedisDenylist{client: client, ttl: session.Lifetime}
}

// Revoke invalidates every session of subjectID issued at or before at
func (d *RedisDenylist) Revoke(ctx context.Context, subjectID string, at time.Time) error {
	if subjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if err := d.client.Set(ctx, key(subjectID), at.Unix(), d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// IsRevoked reports whether claims were issued before the subject's last revocation
func (d *RedisDenylist) IsRevoked(ctx context.Context, claims *session.Claims) (bool, error) {
	if claims == nil {
		return false, nil
	}
	val, err := d.client.Get(ctx, key(claims.SubjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("corrupt revocation entry for subject: %w", err)
	}
	return claims.IssuedAt <= revokedAt, nil
}

// Clear removes the revocation entry for subjectID
func (d *RedisDenylist) Clear(ctx context.Context, subjectID string) error {
	if err := d.client.Del(ctx, key(subjectID)).Err(); err != nil {
		return fmt.Errorf("failed to clear revocation: %w", err)
	}
	return nil
}

func key(subjectID string) string {
	return keyPrefix + subjectID
}
