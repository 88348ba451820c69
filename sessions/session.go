package sessions

import (
	"time"
)

// State is the position of a session in the login lifecycle.
type State string

const (
	StateAnonymous     State = "anonymous"
	StateFlowPending   State = "flow-pending"
	StateAuthenticated State = "authenticated"
)

// FlowState is the single-use material of one authorization round-trip.
// It is created when the browser is redirected to the authorization server
// and erased when the callback is processed, whatever the outcome.
type FlowState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserClaims are the identity attributes verified by the identity provider
// at login, kept for the consent decision.
type UserClaims struct {
	Subject string         `json:"subject"`
	Email   string         `json:"email,omitempty"`
	Name    string         `json:"name,omitempty"`
	Roles   []string       `json:"roles,omitempty"`
	Traits  map[string]any `json:"traits,omitempty"`
}

// TokenSet is the token endpoint response stored after a successful exchange.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// Session is the server side state of one browser, keyed by the opaque ID
// carried in the session cookie.
type Session struct {
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"` // fixed at creation, never extended
	PendingFlow *FlowState  `json:"pending_flow,omitempty"`
	UserClaims  *UserClaims `json:"user_claims,omitempty"`
	TokenSet    *TokenSet   `json:"token_set,omitempty"`
}

func (s *Session) State() State {
	switch {
	case s.PendingFlow != nil:
		return StateFlowPending
	case s.TokenSet != nil:
		return StateAuthenticated
	}
	return StateAnonymous
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so that callers never share mutable state with a repo.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.PendingFlow != nil {
		f := *s.PendingFlow
		c.PendingFlow = &f
	}
	if s.TokenSet != nil {
		ts := *s.TokenSet
		c.TokenSet = &ts
	}
	if s.UserClaims != nil {
		uc := *s.UserClaims
		uc.Roles = append([]string(nil), s.UserClaims.Roles...)
		uc.Traits = copyMap(s.UserClaims.Traits)
		c.UserClaims = &uc
	}
	return &c
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}
