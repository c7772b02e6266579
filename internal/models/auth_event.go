package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthEventType identifies what happened in an auth event
type AuthEventType string

const (
	AuthEventLoginSucceeded            AuthEventType = "login_succeeded"
	AuthEventLoginFailed               AuthEventType = "login_failed"
	AuthEventSignup                    AuthEventType = "signup"
	AuthEventLogout                    AuthEventType = "logout"
	AuthEventSessionRefreshed          AuthEventType = "session_refreshed"
	AuthEventSessionRefreshUserMissing AuthEventType = "session_refresh_user_missing"
	AuthEventSessionsRevoked           AuthEventType = "sessions_revoked"
)

// Valid reports whether t is a known event type
func (t AuthEventType) Valid() bool {
	switch t {
	case AuthEventLoginSucceeded, AuthEventLoginFailed, AuthEventSignup, AuthEventLogout,
		AuthEventSessionRefreshed, AuthEventSessionRefreshUserMissing, AuthEventSessionsRevoked:
		return true
	}
	return false
}

// AuthEvent is an audit record of an authentication action
type AuthEvent struct {
	ID         uuid.UUID     `json:"id"`
	Type       AuthEventType `json:"type"`
	UserID     *uuid.UUID    `json:"user_id,omitempty"`
	Email      string        `json:"email,omitempty"`
	IP         string        `json:"ip,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
