package sessions

import (
	"context"
	"time"
)

const DefaultTTL = time.Hour

// Repo defines the interface for session storage operations.
// Implementations must be safe for concurrent use and enforce the TTL fixed
// at creation time.
type Repo interface {
	// Create persists a new empty session with a fresh unguessable ID.
	Create(ctx context.Context) (*Session, error)

	// Get returns a copy of the session. Unknown and expired sessions both
	// yield errors.ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Save durably replaces the stored session. It never resurrects a
	// session that was deleted or has expired (errors.ErrSessionNotFound).
	Save(ctx context.Context, session *Session) error

	// TakePendingFlow atomically removes and returns the session's pending
	// flow. It returns nil when there is none, so at most one caller can
	// consume a given flow.
	TakePendingFlow(ctx context.Context, sessionID string) (*FlowState, error)

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}

// RepoOption configures the repo implementations in this package.
type RepoOption func(*repoOptions)

type repoOptions struct {
	ttl       time.Duration
	nowTime   func() time.Time
	keyPrefix string
	newID     func() string
}

// WithTTL sets the session lifetime measured from creation.
func WithTTL(ttl time.Duration) RepoOption {
	return func(o *repoOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RepoOption {
	return func(o *repoOptions) {
		o.nowTime = nowFunc
	}
}

// WithKeyPrefix namespaces Redis keys (ignored by the in-memory repo).
func WithKeyPrefix(prefix string) RepoOption {
	return func(o *repoOptions) {
		o.keyPrefix = prefix
	}
}

func buildOptions(options []RepoOption) repoOptions {
	o := repoOptions{
		ttl:       DefaultTTL,
		nowTime:   time.Now,
		keyPrefix: "broker:session:",
		newID:     newSessionID,
	}
	for _, opt := range options {
		opt(&o)
	}
	return o
}

func newSession(o repoOptions) *Session {
	now := o.nowTime()
	return &Session{
		ID:        o.newID(),
		CreatedAt: now,
		ExpiresAt: now.Add(o.ttl),
	}
}
