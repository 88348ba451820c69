package config

import "time"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetFlowMaxAge() time.Duration
	GetSessionStore() string
	GetRedisURL() string
	GetSessionCookieName() string
	GetJanitorInterval() time.Duration
}

type Session struct {
	TTL             time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	FlowMaxAge      time.Duration `env:"FLOW_MAX_AGE" envDefault:"10m"`
	Store           string        `env:"SESSION_STORE" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"`
	CookieName      string        `env:"SESSION_COOKIE_NAME" envDefault:"broker_session"`
	JanitorInterval time.Duration `env:"SESSION_JANITOR_INTERVAL" envDefault:"1m"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionTTL() time.Duration {
	return s.TTL
}

func (s Session) GetFlowMaxAge() time.Duration {
	return s.FlowMaxAge
}

func (s Session) GetSessionStore() string {
	return s.Store
}

func (s Session) GetRedisURL() string {
	return s.RedisURL
}

func (s Session) GetSessionCookieName() string {
	return s.CookieName
}

func (s Session) GetJanitorInterval() time.Duration {
	return s.JanitorInterval
}
