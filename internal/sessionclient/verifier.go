// Package sessionclient is the client side of the session subsystem. It logs
// in through the auth API and confirms the issued session is readable before
// the caller proceeds to protected views.
package sessionclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is the number of session reads before giving up
	DefaultMaxAttempts = 5
	// DefaultInitialBackoff is the wait after the first failed read; it doubles each attempt
	DefaultInitialBackoff = 200 * time.Millisecond

	sessionPath = "/api/auth/session"
)

var (
	// ErrVerificationTimeout means the session could not be observed after every attempt.
	// It is recoverable: the caller should offer a retry rather than a new sign-in.
	ErrVerificationTimeout = errors.New("authentication state could not be confirmed")

	errNotAuthenticated = errors.New("session endpoint reports unauthenticated")
)

// SessionUser is the identity reported by the session endpoint
type SessionUser struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// SessionState is the body of GET /api/auth/session
type SessionState struct {
	Authenticated bool         `json:"authenticated"`
	User          *SessionUser `json:"user"`
}

// Verifier polls the session endpoint until it reports the expected identity
type Verifier struct {
	httpClient     *http.Client
	endpoint       string
	maxAttempts    int
	initialBackoff time.Duration
	logger         *zap.Logger
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithMaxAttempts sets the number of session reads
func WithMaxAttempts(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.maxAttempts = n
		}
	}
}

// WithInitialBackoff sets the first retry delay
func WithInitialBackoff(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.initialBackoff = d
		}
	}
}

// WithVerifierLogger sets the logger for attempt diagnostics
func WithVerifierLogger(logger *zap.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier creates a verifier that reads the session at baseURL using httpClient.
// httpClient must carry the cookie jar that received the login response.
func NewVerifier(httpClient *http.Client, baseURL string, opts ...VerifierOption) *Verifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	v := &Verifier{
		httpClient:     httpClient,
		endpoint:       strings.TrimRight(baseURL, "/") + sessionPath,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify succeeds as soon as the endpoint reports any authenticated session
func (v *Verifier) Verify(ctx context.Context) (*SessionUser, error) {
	return v.VerifySubject(ctx, "")
}

// VerifySubject succeeds as soon as the endpoint reports an authenticated
// session for subjectID (any subject when empty). It returns
// ErrVerificationTimeout once every attempt is spent and ctx.Err() when ctx
// is cancelled first.
func (v *Verifier) VerifySubject(ctx context.Context, subjectID string) (*SessionUser, error) {
	var (
		user     *SessionUser
		attempts int
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++

		state, err := v.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if !state.Authenticated || state.User == nil {
			return errNotAuthenticated
		}
		if subjectID != "" && state.User.ID != subjectID {
			return fmt.Errorf("session belongs to a different subject")
		}
		user = state.User
		return nil
	}

	notify := func(err error, wait time.Duration) {
		v.logger.Debug("session_verification_retry",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", v.maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, v.policy(ctx), notify)
	if err == nil {
		return user, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	v.logger.Warn("session_verification_failed",
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrVerificationTimeout, attempts, err)
}

func (v *Verifier) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = v.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(v.maxAttempts-1)), ctx)
}

func (v *Verifier) read(ctx context.Context) (*SessionState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build session request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("session endpoint returned status %d", resp.StatusCode)
	}

	var state SessionState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	return &state, nil
}
