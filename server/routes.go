package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() error {
	index, err := s.IndexHandler()
	if err != nil {
		return err
	}
	errorPage, err := newErrorRenderer()
	if err != nil {
		return err
	}
	s.errorPage = errorPage

	browser := s.HTMLMiddleWare(s.SessionMiddleware)

	// Relying application
	s.RegisterRouteFunc(http.MethodGet, RouteIndex, ChainMiddleware(index, browser...))
	s.RegisterRouteFunc(http.MethodPost, RouteStartOAuth, ChainMiddleware(s.StartOAuthHandler(), browser...))
	s.RegisterRouteFunc(http.MethodGet, RouteCallback, ChainMiddleware(s.CallbackHandler(), browser...))
	s.RegisterRouteFunc(http.MethodPost, RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Login & consent provider
	s.RegisterRouteFunc(http.MethodGet, RouteLogin, ChainMiddleware(s.LoginChallengeHandler(), browser...))
	s.RegisterRouteFunc(http.MethodPost, RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), browser...))
	s.RegisterRouteFunc(http.MethodGet, RouteConsent, ChainMiddleware(s.ConsentHandler(), browser...))

	// Operations
	s.RegisterRouteFunc(http.MethodGet, RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler(http.MethodGet, RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return nil
}
