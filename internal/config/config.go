package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	OAuthClientConfig
	ProviderConfig
	SessionConfig
	UpstreamConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAppURL() string
	GetEnv() string
}

// UpstreamConfig bounds every outbound call made while brokering a flow.
type UpstreamConfig interface {
	GetUpstreamTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	OAuthClient
	Provider
	Session
	Upstream
}

type Upstream struct {
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
}

var _ UpstreamConfig = Upstream{}

func (u Upstream) GetUpstreamTimeout() time.Duration {
	return u.Timeout
}

// New loads the configuration from the process environment.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	return c, nil
}

func (c mainConfig) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("CLIENT_ID is required")
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("REDIRECT_URI is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE=%s", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}
	return nil
}
