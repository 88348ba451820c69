package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the flow broker
var (
	// Upstream classification
	ErrUpstreamRejected = errors.New("upstream rejected")
	ErrUpstreamTimeout  = errors.New("upstream timeout")

	// Security / consistency errors
	ErrStateMismatch           = errors.New("state mismatch")
	ErrSessionExpiredOrMissing = errors.New("session expired or missing")
	ErrEntropyCollision        = errors.New("random value collision")

	// Flow errors
	ErrAuthorizationDenied    = errors.New("authorization denied")
	ErrTokenExchangeFailed    = errors.New("token exchange failed")
	ErrLoginAcceptFailed      = errors.New("login accept failed")
	ErrConsentBrokerageFailed = errors.New("consent brokerage failed")
	ErrMissingChallenge       = errors.New("missing challenge")
	ErrRequestAborted         = errors.New("request aborted")

	// Session errors; an expired session is reported as not found
	ErrSessionNotFound = errors.New("session not found")
)

// UpstreamError describes a failed call to the authorization server or the
// identity provider. It unwraps to ErrUpstreamTimeout or ErrUpstreamRejected.
type UpstreamError struct {
	Service    string // "hydra", "kratos", "token-endpoint"
	Operation  string
	StatusCode int    // 0 for transport failures
	Detail     string // human readable message extracted from the payload
	Body       []byte // raw upstream payload
	Timeout    bool
	Err        error // transport error, if any
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s %s: timed out", e.Service, e.Operation)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Operation, e.StatusCode, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Service, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Operation, e.Detail)
}

func (e *UpstreamError) Unwrap() []error {
	kind := ErrUpstreamRejected
	if e.Timeout {
		kind = ErrUpstreamTimeout
	}
	if e.Err != nil {
		return []error{kind, e.Err}
	}
	return []error{kind}
}

// Message returns the text to show a user for this failure.
func (e *UpstreamError) Message() string {
	if e.Timeout {
		return e.Service + " did not respond in time"
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.StatusCode != 0 {
		return http.StatusText(e.StatusCode)
	}
	return "upstream request failed"
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
