package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Relying application
	RouteIndex      = "/"
	RouteStartOAuth = "/start-oauth"
	RouteCallback   = "/callback"
	RouteLogout     = "/logout"

	// Login & consent provider
	RouteLogin     = "/login"
	RouteAuthLogin = "/auth/login"
	RouteConsent   = "/consent"

	// Operations
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)
