package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Store reads and writes the session cookie on HTTP requests and responses
type Store struct {
	codec  *Codec
	attrs  CookieAttributes
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a session store
func NewStore(codec *Codec, attrs CookieAttributes, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		codec:  codec,
		attrs:  attrs,
		logger: logger,
		now:    time.Now,
	}
}

// Attributes returns the cookie attributes used for every write
func (s *Store) Attributes() CookieAttributes {
	return s.attrs
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	return s.now()
}

// Issue signs claims and attaches the session cookie to w. On a nil return the
// Set-Cookie header is present on w.
func (s *Store) Issue(w http.ResponseWriter, claims *Claims) error {
	token, err := s.codec.Sign(claims)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	return s.write(w, token, s.attrs.MaxAge)
}

// Clear expires the session cookie using the same attributes as issuance so the
// browser matches and deletes the original cookie.
func (s *Store) Clear(w http.ResponseWriter) error {
	return s.write(w, "", -1)
}

// Read returns the verified claims carried by r. Errors are ErrNoSession,
// ErrTokenInvalid or ErrTokenExpired; expired claims are returned alongside
// ErrTokenExpired for diagnostics.
func (s *Store) Read(r *http.Request) (*Claims, error) {
	var firstErr error
	var expired *Claims

	// Stale duplicates (e.g. from an older domain setting) may accompany the live cookie
	for _, c := range r.CookiesNamed(s.attrs.Name) {
		if c.Value == "" {
			continue
		}
		claims, err := s.codec.Verify(c.Value)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if claims.Expired(s.now()) {
			if expired == nil {
				expired = claims
			}
			continue
		}
		return claims, nil
	}

	if expired != nil {
		return expired, ErrTokenExpired
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNoSession
}

// Lookup returns the fresh, authentic claims carried by r, or nil
func (s *Store) Lookup(r *http.Request) *Claims {
	claims, err := s.Read(r)
	if err != nil {
		return nil
	}
	return claims
}

func (s *Store) write(w http.ResponseWriter, value string, maxAge int) error {
	http.SetCookie(w, s.attrs.cookie(value, maxAge))
	if hasCookieHeader(w.Header(), s.attrs.Name, value) {
		return nil
	}

	s.logger.Warn("session_cookie_fallback_header_used",
		zap.String("cookie", s.attrs.Name),
		zap.Bool("clearing", maxAge < 0),
	)
	w.Header().Add("Set-Cookie", s.manualHeader(value, maxAge))
	if hasCookieHeader(w.Header(), s.attrs.Name, value) {
		return nil
	}

	s.logger.Error("session_cookie_write_failed", zap.String("cookie", s.attrs.Name))
	return ErrCookieWrite
}

// manualHeader serialises the cookie by hand for the fallback path
func (s *Store) manualHeader(value string, maxAge int) string {
	var b strings.Builder
	b.WriteString(s.attrs.Name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString("; Path=")
	b.WriteString(s.attrs.Path)
	if s.attrs.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(s.attrs.Domain)
	}
	if maxAge < 0 {
		maxAge = 0
	}
	fmt.Fprintf(&b, "; Max-Age=%d", maxAge)
	if s.attrs.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if s.attrs.Secure {
		b.WriteString("; Secure")
	}
	b.WriteString("; SameSite=")
	b.WriteString(s.attrs.SameSiteString())
	return b.String()
}

func hasCookieHeader(h http.Header, name, value string) bool {
	want := name + "=" + value
	for _, line := range h.Values("Set-Cookie") {
		if line == want || strings.HasPrefix(line, want+";") {
			return true
		}
	}
	return false
}

// IsAbsent reports whether err means "treat the caller as unauthenticated"
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired)
}
