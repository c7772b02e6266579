package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RefreshThreshold is the remaining lifetime below which a session is reissued
const RefreshThreshold = 7 * 24 * time.Hour

// UserLookup fetches the authoritative identity for a subject. Implementations
// return ErrUserNotFound (possibly wrapped) when the subject no longer exists.
type UserLookup interface {
	LookupIdentity(ctx context.Context, subjectID string) (*Identity, error)
}

// Refresher reissues sessions that are close to expiry
type Refresher struct {
	store     *Store
	users     UserLookup
	threshold time.Duration
	lifetime  time.Duration
	logger    *zap.Logger
}

// NewRefresher creates a refresher using the default threshold and lifetime
func NewRefresher(store *Store, users UserLookup, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		store:     store,
		users:     users,
		threshold: RefreshThreshold,
		lifetime:  Lifetime,
		logger:    logger,
	}
}

// ShouldRefresh reports whether claims have less than the threshold left
func (f *Refresher) ShouldRefresh(claims *Claims) bool {
	return claims.Remaining(f.store.Now()) < f.threshold
}

// Refresh re-reads the user behind claims and returns newly issued claims.
// It has no side effects, so concurrent refreshes of one subject are safe.
func (f *Refresher) Refresh(ctx context.Context, claims *Claims) (*Claims, error) {
	identity, err := f.users.LookupIdentity(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRefreshUserMissing, claims.SubjectID)
		}
		return nil, fmt.Errorf("failed to load user for refresh: %w", err)
	}
	return NewClaims(*identity, f.store.Now(), f.lifetime), nil
}

// MaybeRefresh refreshes and reissues the session cookie when claims are near
// expiry. It returns the claims now in effect and whether a refresh happened.
// On ErrRefreshUserMissing the caller must treat the session as absent.
func (f *Refresher) MaybeRefresh(ctx context.Context, w http.ResponseWriter, claims *Claims) (*Claims, bool, error) {
	if !f.ShouldRefresh(claims) {
		return claims, false, nil
	}

	fresh, err := f.Refresh(ctx, claims)
	if err != nil {
		return claims, false, err
	}
	if err := f.store.Issue(w, fresh); err != nil {
		return claims, false, fmt.Errorf("failed to reissue session: %w", err)
	}

	f.logger.Debug("session_refreshed",
		zap.String("subject_id", fresh.SubjectID),
		zap.Int64("previous_expires_at", claims.ExpiresAt),
		zap.Int64("expires_at", fresh.ExpiresAt),
	)
	return fresh, true, nil
}
