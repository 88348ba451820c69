package sessions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/stretchr/testify/require"
)

// repoHarness gives the contract tests a repo and a way to move its clock.
type repoHarness struct {
	repo    sessions.Repo
	advance func(d time.Duration)
}

func runRepoContract(t *testing.T, newHarness func(t *testing.T, ttl time.Duration) repoHarness) {
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		h := newHarness(t, time.Hour)

		s, err := h.repo.Create(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, s.ID)
		require.Equal(t, sessions.StateAnonymous, s.State())
		require.Equal(t, time.Hour, s.ExpiresAt.Sub(s.CreatedAt))

		got, err := h.repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s.ID, got.ID)
		require.Equal(t, sessions.StateAnonymous, got.State())
	})

	t.Run("ids are unique", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		a, err := h.repo.Create(ctx)
		require.NoError(t, err)
		b, err := h.repo.Create(ctx)
		require.NoError(t, err)
		require.NotEqual(t, a.ID, b.ID)
	})

	t.Run("unknown session", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		_, err := h.repo.Get(ctx, "does-not-exist")
		require.ErrorIs(t, err, brokererrors.ErrSessionNotFound)

		_, err = h.repo.Get(ctx, "")
		require.ErrorIs(t, err, brokererrors.ErrSessionNotFound)
	})

	t.Run("save round trips every field", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		s, err := h.repo.Create(ctx)
		require.NoError(t, err)

		s.PendingFlow = &sessions.FlowState{State: "abc", CodeVerifier: "verifier", CreatedAt: s.CreatedAt}
		s.UserClaims = &sessions.UserClaims{
			Subject: "jane@example.com",
			Email:   "jane@example.com",
			Name:    "Jane",
			Roles:   []string{"admin"},
			Traits:  map[string]any{"email": "jane@example.com", "roles": []any{"admin"}},
		}
		s.TokenSet = &sessions.TokenSet{AccessToken: "x", TokenType: "bearer", ExpiresIn: 3600}
		require.NoError(t, h.repo.Save(ctx, s))

		got, err := h.repo.Get(ctx, s.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(s, got, timeEqual); diff != "" {
			t.Fatalf("session mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("returned sessions are copies", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		s, err := h.repo.Create(ctx)
		require.NoError(t, err)

		s.PendingFlow = &sessions.FlowState{State: "abc"}
		got, err := h.repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, got.PendingFlow)
	})

	t.Run("expired sessions are gone", func(t *testing.T) {
		h := newHarness(t, time.Minute)
		s, err := h.repo.Create(ctx)
		require.NoError(t, err)

		h.advance(2 * time.Minute)

		_, err = h.repo.Get(ctx, s.ID)
		require.ErrorIs(t, err, brokererrors.ErrSessionNotFound)
		require.ErrorIs(t, h.repo.Save(ctx, s), brokererrors.ErrSessionNotFound)
	})

	t.Run("delete is idempotent and save does not resurrect", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		s, err := h.repo.Create(ctx)
		require.NoError(t, err)

		require.NoError(t, h.repo.Delete(ctx, s.ID))
		require.NoError(t, h.repo.Delete(ctx, s.ID))

		_, err = h.repo.Get(ctx, s.ID)
		require.ErrorIs(t, err, brokererrors.ErrSessionNotFound)
		require.ErrorIs(t, h.repo.Save(ctx, s), brokererrors.ErrSessionNotFound)
	})

	t.Run("concurrent access", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := h.repo.Create(ctx)
				require.NoError(t, err)
				s.PendingFlow = &sessions.FlowState{State: s.ID}
				require.NoError(t, h.repo.Save(ctx, s))
				got, err := h.repo.Get(ctx, s.ID)
				require.NoError(t, err)
				require.Equal(t, s.ID, got.PendingFlow.State)
				require.NoError(t, h.repo.Delete(ctx, s.ID))
			}()
		}
		wg.Wait()
	})

	t.Run("pending flow is taken once", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		s, err := h.repo.Create(ctx)
		require.NoError(t, err)
		s.PendingFlow = &sessions.FlowState{State: "st", CodeVerifier: "cv", CreatedAt: s.CreatedAt}
		require.NoError(t, h.repo.Save(ctx, s))

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			taken []*sessions.FlowState
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				flow, err := h.repo.TakePendingFlow(ctx, s.ID)
				require.NoError(t, err)
				if flow != nil {
					mu.Lock()
					taken = append(taken, flow)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, taken, 1)
		require.Equal(t, "cv", taken[0].CodeVerifier)

		got, err := h.repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, got.PendingFlow)
	})

	t.Run("take pending flow from unknown session", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		_, err := h.repo.TakePendingFlow(ctx, "does-not-exist")
		require.ErrorIs(t, err, brokererrors.ErrSessionNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		h := newHarness(t, time.Hour)
		require.NoError(t, h.repo.Ping(ctx))
	})
}

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
