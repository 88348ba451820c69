package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/rs/zerolog/log"
)

// InMemoryRepo is a thread-safe, single process implementation of Repo.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     repoOptions
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo(options ...RepoOption) *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
		opts:     buildOptions(options),
	}
}

// Create stores a new empty session
func (r *InMemoryRepo) Create(_ context.Context) (*Session, error) {
	s := newSession(r.opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return nil, fmt.Errorf("[InMemoryRepo Create] %w", brokererrors.ErrEntropyCollision)
	}
	r.sessions[s.ID] = s.Clone()
	return s, nil
}

// Get retrieves a session by ID, evicting it if it has expired
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, brokererrors.ErrSessionNotFound
	}

	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, brokererrors.ErrSessionNotFound
	}

	if s.Expired(r.opts.nowTime()) {
		r.mu.Lock()
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		return nil, brokererrors.ErrSessionNotFound
	}

	// Return a copy to prevent external modifications
	return s.Clone(), nil
}

// Save replaces an existing, unexpired session
func (r *InMemoryRepo) Save(_ context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("[InMemoryRepo Save] session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[session.ID]
	if !ok {
		return brokererrors.ErrSessionNotFound
	}
	if existing.Expired(r.opts.nowTime()) {
		delete(r.sessions, session.ID)
		return brokererrors.ErrSessionNotFound
	}

	stored := session.Clone()
	// The lifetime is owned by the repo, not the caller.
	stored.CreatedAt = existing.CreatedAt
	stored.ExpiresAt = existing.ExpiresAt
	r.sessions[session.ID] = stored
	return nil
}

func (r *InMemoryRepo) TakePendingFlow(_ context.Context, sessionID string) (*FlowState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, brokererrors.ErrSessionNotFound
	}
	if s.Expired(r.opts.nowTime()) {
		delete(r.sessions, sessionID)
		return nil, brokererrors.ErrSessionNotFound
	}

	pending := s.PendingFlow
	s.PendingFlow = nil
	return pending, nil
}

// Delete removes a session; already missing is not an error
func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *InMemoryRepo) Ping(_ context.Context) error {
	return nil
}

// Count returns the number of stored sessions, expired ones included until
// the janitor runs.
func (r *InMemoryRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DeleteExpiredSessions removes every session whose TTL has elapsed and
// returns how many were removed.
func (r *InMemoryRepo) DeleteExpiredSessions() int {
	now := r.opts.nowTime()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor evicts expired sessions every interval until ctx is done.
func (r *InMemoryRepo) StartJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := r.DeleteExpiredSessions(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Evicted expired sessions")
			}
		}
	}
}
