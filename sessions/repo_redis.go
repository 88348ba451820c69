package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisRepo stores sessions in Redis so that every instance of the broker
// sees the same flow state. Expiry is enforced by Redis key TTLs.
type RedisRepo struct {
	client redis.UniversalClient
	opts   repoOptions
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client redis.UniversalClient, options ...RepoOption) *RedisRepo {
	return &RedisRepo{
		client: client,
		opts:   buildOptions(options),
	}
}

// DialRedis parses a redis:// URL, applies the default timeouts and checks
// the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = DefaultDialTimeout
	opts.ReadTimeout = DefaultReadTimeout
	opts.WriteTimeout = DefaultWriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisRepo) key(sessionID string) string {
	return r.opts.keyPrefix + sessionID
}

// Create stores a new empty session; SETNX guards against ID reuse.
func (r *RedisRepo) Create(ctx context.Context) (*Session, error) {
	s := newSession(r.opts)
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("[RedisRepo Create] encode: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(s.ID), payload, r.opts.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("[RedisRepo Create] %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("[RedisRepo Create] %w", brokererrors.ErrEntropyCollision)
	}
	return s, nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, brokererrors.ErrSessionNotFound
	}

	payload, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, brokererrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisRepo Get] %w", err)
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("[RedisRepo Get] decode: %w", err)
	}
	if s.Expired(r.opts.nowTime()) {
		return nil, brokererrors.ErrSessionNotFound
	}
	return &s, nil
}

// Save overwrites an existing key only (SET XX) and keeps the expiry fixed
// at creation.
func (r *RedisRepo) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("[RedisRepo Save] session ID is required")
	}

	remaining := session.ExpiresAt.Sub(r.opts.nowTime())
	if remaining <= 0 {
		_ = r.client.Del(ctx, r.key(session.ID)).Err()
		return brokererrors.ErrSessionNotFound
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[RedisRepo Save] encode: %w", err)
	}

	ok, err := r.client.SetXX(ctx, r.key(session.ID), payload, remaining).Result()
	if err != nil {
		return fmt.Errorf("[RedisRepo Save] %w", err)
	}
	if !ok {
		return brokererrors.ErrSessionNotFound
	}
	return nil
}

// takeAttempts bounds how often TakePendingFlow re-reads the session after a
// concurrent write aborted its transaction.
const takeAttempts = 2

// TakePendingFlow clears the pending flow inside a WATCH/MULTI transaction.
// When a concurrent write aborts the transaction the session is read again,
// so a flow is never left behind for a callback that was told it is gone.
func (r *RedisRepo) TakePendingFlow(ctx context.Context, sessionID string) (*FlowState, error) {
	if sessionID == "" {
		return nil, brokererrors.ErrSessionNotFound
	}

	var err error
	for attempt := 0; attempt < takeAttempts; attempt++ {
		var pending *FlowState
		pending, err = r.takePendingFlow(ctx, r.key(sessionID))
		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, brokererrors.ErrSessionNotFound):
			return nil, err
		case err != nil:
			return nil, fmt.Errorf("[RedisRepo TakePendingFlow] %w", err)
		}
		return pending, nil
	}
	return nil, fmt.Errorf("[RedisRepo TakePendingFlow] %w", err)
}

func (r *RedisRepo) takePendingFlow(ctx context.Context, key string) (*FlowState, error) {
	var pending *FlowState
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return brokererrors.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var s Session
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		remaining := s.ExpiresAt.Sub(r.opts.nowTime())
		if remaining <= 0 {
			return brokererrors.ErrSessionNotFound
		}
		if s.PendingFlow == nil {
			return nil
		}

		taken := s.PendingFlow
		s.PendingFlow = nil
		updated, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetXX(ctx, key, updated, remaining)
			return nil
		})
		if err != nil {
			return err
		}
		pending = taken
		return nil
	}, key)
	return pending, err
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Delete] %w", err)
	}
	return nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
