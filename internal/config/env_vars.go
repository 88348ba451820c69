package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port    string `env:"PORT" envDefault:"3001"`
	AppName string `env:"APP_NAME" envDefault:"OAuth2 Broker"`
	AppURL  string `env:"APP_URL" envDefault:"http://127.0.0.1:3001"`
	Env     string `env:"ENV" envDefault:"DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "3001"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetAppURL returns the externally visible base URL of this application
// (e.g., "http://127.0.0.1:3001").
func (e EnvVars) GetAppURL() string {
	return strings.TrimSuffix(e.AppURL, "/")
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}
