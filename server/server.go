package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-auth-broker/flow"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Config is the part of the application configuration the HTTP layer needs.
type Config interface {
	GetEnv() string
	GetAppName() string
	GetDefaultScope() string
	GetSessionCookieName() string
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	router     chi.Router
	routes     []string
	config     Config
	broker     *flow.Broker
	sessions   sessions.Repo
	gatherer   prometheus.Gatherer
	errorPage  *errorRenderer
	cookieName string
	nowTime    func() time.Time
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

func New(config Config, broker *flow.Broker, repo sessions.Repo, options ...ServerOption) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if broker == nil {
		return nil, errors.New("[Server New] broker is required")
	}
	if repo == nil {
		return nil, errors.New("[Server New] sessions repo is required")
	}

	s := &Server{
		env:        config.GetEnv(),
		router:     chi.NewRouter(),
		config:     config,
		broker:     broker,
		sessions:   repo,
		gatherer:   prometheus.DefaultGatherer,
		cookieName: config.GetSessionCookieName(),
		nowTime:    time.Now,
	}
	if s.cookieName == "" {
		s.cookieName = defaultSessionCookieName
	}
	for _, opt := range options {
		opt(s)
	}

	s.router.Use(middleware.RequestID, middleware.Recoverer)
	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.MethodFunc(method, pattern, handler)
}

func (s *Server) RegisterRouteHandler(method, pattern string, handler http.Handler) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.Method(method, pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colorMethod(method), path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
