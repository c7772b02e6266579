package session

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type mockUserLookup struct {
	mu         sync.Mutex
	identities map[string]*Identity
	err        error
	calls      int
}

func (m *mockUserLookup) LookupIdentity(_ context.Context, subjectID string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	identity, ok := m.identities[subjectID]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", subjectID, ErrUserNotFound)
	}
	return identity, nil
}

func claimsWithRemaining(now time.Time, remaining time.Duration) *Claims {
	issued := now.Add(remaining - Lifetime)
	return NewClaims(Identity{SubjectID: "user-1", Email: "old@example.com"}, issued, Lifetime)
}

func TestRefresher_ShouldRefresh(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	refresher := NewRefresher(newTestStore(t, EnvironmentFacts{}, now), &mockUserLookup{}, nil)

	tests := []struct {
		name      string
		remaining time.Duration
		want      bool
	}{
		{name: "six days remaining", remaining: 6 * 24 * time.Hour, want: true},
		{name: "ten days remaining", remaining: 10 * 24 * time.Hour, want: false},
		{name: "fresh session", remaining: Lifetime, want: false},
		{name: "exactly at threshold", remaining: RefreshThreshold, want: false},
		{name: "just below threshold", remaining: RefreshThreshold - time.Second, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := refresher.ShouldRefresh(claimsWithRemaining(now, tt.remaining)); got != tt.want {
				t.Errorf("ShouldRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefresher_RefreshRereadsUser(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	users := &mockUserLookup{identities: map[string]*Identity{
		"user-1": {SubjectID: "user-1", Email: "new@example.com", DisplayName: strPtr("Renamed")},
	}}
	refresher := NewRefresher(newTestStore(t, EnvironmentFacts{}, now), users, nil)
	old := claimsWithRemaining(now, 6*24*time.Hour)

	fresh, err := refresher.Refresh(context.Background(), old)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if fresh == old {
		t.Fatal("Refresh() must return a new claims value")
	}
	if fresh.Email != "new@example.com" || fresh.DisplayName == nil || *fresh.DisplayName != "Renamed" {
		t.Errorf("Refresh() did not pick up the current user record: %+v", fresh)
	}
	if fresh.IssuedAt != now.Unix() || fresh.ExpiresAt != now.Add(Lifetime).Unix() {
		t.Errorf("Refresh() timestamps iat=%d exp=%d", fresh.IssuedAt, fresh.ExpiresAt)
	}
	if old.Email != "old@example.com" {
		t.Error("Refresh() mutated the original claims")
	}
}

func TestRefresher_RefreshUserMissing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	refresher := NewRefresher(newTestStore(t, EnvironmentFacts{}, now), &mockUserLookup{}, nil)

	_, err := refresher.Refresh(context.Background(), claimsWithRemaining(now, time.Hour))
	if !errors.Is(err, ErrRefreshUserMissing) {
		t.Errorf("Refresh() error = %v, want ErrRefreshUserMissing", err)
	}
}

func TestRefresher_RefreshLookupFailure(t *testing.T) {
	t.Parallel()

	now := time.Now()
	users := &mockUserLookup{err: errors.New("connection refused")}
	refresher := NewRefresher(newTestStore(t, EnvironmentFacts{}, now), users, nil)

	_, err := refresher.Refresh(context.Background(), claimsWithRemaining(now, time.Hour))
	if err == nil || errors.Is(err, ErrRefreshUserMissing) {
		t.Errorf("Refresh() error = %v, want a non-missing lookup error", err)
	}
}

func TestRefresher_MaybeRefresh(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	users := &mockUserLookup{identities: map[string]*Identity{
		"user-1": {SubjectID: "user-1", Email: "old@example.com"},
	}}
	store := newTestStore(t, EnvironmentFacts{}, now)
	refresher := NewRefresher(store, users, nil)

	t.Run("not due", func(t *testing.T) {
		rec := httptest.NewRecorder()
		claims := claimsWithRemaining(now, 20*24*time.Hour)
		got, refreshed, err := refresher.MaybeRefresh(context.Background(), rec, claims)
		if err != nil || refreshed || got != claims {
			t.Errorf("MaybeRefresh() = %v, %v, %v; want unchanged claims", got, refreshed, err)
		}
		if rec.Header().Get("Set-Cookie") != "" {
			t.Error("No cookie expected when refresh is not due")
		}
	})

	t.Run("due", func(t *testing.T) {
		rec := httptest.NewRecorder()
		claims := claimsWithRemaining(now, 2*24*time.Hour)
		got, refreshed, err := refresher.MaybeRefresh(context.Background(), rec, claims)
		if err != nil || !refreshed {
			t.Fatalf("MaybeRefresh() refreshed=%v err=%v", refreshed, err)
		}
		if got.ExpiresAt != now.Add(Lifetime).Unix() {
			t.Errorf("ExpiresAt = %d, want %d", got.ExpiresAt, now.Add(Lifetime).Unix())
		}
		read, err := store.Read(requestWithCookies(rec))
		if err != nil {
			t.Fatalf("Read() of reissued cookie error = %v", err)
		}
		if read.ExpiresAt != got.ExpiresAt {
			t.Errorf("reissued cookie exp = %d, want %d", read.ExpiresAt, got.ExpiresAt)
		}
	})
}

func TestRefresher_ConcurrentRefreshesAreIndependent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	users := &mockUserLookup{identities: map[string]*Identity{
		"user-1": {SubjectID: "user-1", Email: "old@example.com"},
	}}
	refresher := NewRefresher(newTestStore(t, EnvironmentFacts{}, now), users, nil)
	claims := claimsWithRemaining(now, time.Hour)

	var wg sync.WaitGroup
	results := make([]*Claims, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fresh, err := refresher.Refresh(context.Background(), claims)
			if err != nil {
				t.Errorf("Refresh() error = %v", err)
				return
			}
			results[i] = fresh
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r == nil || r.ExpiresAt != results[0].ExpiresAt || r.SubjectID != "user-1" {
			t.Errorf("Concurrent refresh produced inconsistent claims: %+v", r)
		}
	}
}
