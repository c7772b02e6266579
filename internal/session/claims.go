package session

import (
	"fmt"
	"time"
)

// Claims is the signed payload of a session token. A Claims value is never
// mutated after issuance; a refresh builds a new one.
type Claims struct {
	SubjectID   string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"name,omitempty"`
	AvatarRef   *string `json:"image,omitempty"`
	IssuedAt    int64   `json:"iat"`
	ExpiresAt   int64   `json:"exp"`
}

// Identity is the user data a session is issued for
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName *string
	AvatarRef   *string
}

// NewClaims builds claims for identity, issued at now and valid for lifetime
func NewClaims(identity Identity, now time.Time, lifetime time.Duration) *Claims {
	return &Claims{
		SubjectID:   identity.SubjectID,
		Email:       identity.Email,
		DisplayName: copyString(identity.DisplayName),
		AvatarRef:   copyString(identity.AvatarRef),
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(lifetime).Unix(),
	}
}

// Validate checks the structural invariants of the claims
func (c *Claims) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("claims are nil")
	case c.SubjectID == "":
		return fmt.Errorf("claims missing subject")
	case c.Email == "":
		return fmt.Errorf("claims missing email")
	case c.IssuedAt <= 0:
		return fmt.Errorf("claims missing issued-at")
	case c.ExpiresAt <= 0:
		return fmt.Errorf("claims missing expiry")
	case c.ExpiresAt <= c.IssuedAt:
		return fmt.Errorf("claims expiry %d not after issued-at %d", c.ExpiresAt, c.IssuedAt)
	}
	return nil
}

// Expired reports whether the claims are no longer fresh at now
func (c *Claims) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// Remaining returns the lifetime left at now (negative once expired)
func (c *Claims) Remaining(now time.Time) time.Duration {
	return time.Unix(c.ExpiresAt, 0).Sub(now)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
