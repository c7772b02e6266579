package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession indicates the request carried no session cookie
	ErrNoSession = errors.New("no session")
	// ErrTokenInvalid covers malformed tokens, signature mismatches and claims that fail structural validation
	ErrTokenInvalid = errors.New("session token invalid")
	// ErrTokenExpired indicates an authentic token whose expiry has passed
	ErrTokenExpired = errors.New("session token expired")
	// ErrCookieWrite indicates neither the structured nor the manual Set-Cookie write took effect
	ErrCookieWrite = errors.New("session cookie could not be written")
	// ErrRefreshUserMissing indicates the session subject no longer exists in the user store
	ErrRefreshUserMissing = errors.New("session subject no longer exists")
	// ErrUserNotFound is returned by UserLookup implementations when the subject is unknown
	ErrUserNotFound = errors.New("user not found")
)

// ConfigurationError is a fatal startup error. The process must not serve traffic when it occurs.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Setting, e.Reason)
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
