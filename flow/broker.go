package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-broker/hydra"
	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/kratos"
	"github.com/jrsteele09/go-auth-broker/pkce"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultScope      = "openid offline"
	DefaultFlowMaxAge = 10 * time.Minute
)

// TokenClient builds authorization redirects and redeems codes.
type TokenClient interface {
	AuthCodeURL(scope, state, challenge string) string
	Exchange(ctx context.Context, code, verifier string) (*sessions.TokenSet, error)
}

// AuthorizationServer is the admin side of the login and consent handshakes.
type AuthorizationServer interface {
	GetLoginRequest(ctx context.Context, challenge string) (*hydra.LoginRequest, error)
	AcceptLogin(ctx context.Context, challenge string, accept hydra.AcceptLoginRequest) (string, error)
	GetConsentRequest(ctx context.Context, challenge string) (*hydra.ConsentRequest, error)
	AcceptConsent(ctx context.Context, challenge string, accept hydra.AcceptConsentRequest) (string, error)
}

// IdentityProvider verifies end user credentials.
type IdentityProvider interface {
	Login(ctx context.Context, identifier, password string) (*kratos.Identity, error)
}

// FlowGenerator produces state, verifier and challenge for a new flow.
type FlowGenerator interface {
	NewFlow() (pkce.Flow, error)
}

// Dependencies holds the collaborators of the Broker.
type Dependencies struct {
	Sessions            sessions.Repo
	Tokens              TokenClient
	AuthorizationServer AuthorizationServer
	IdentityProvider    IdentityProvider
}

// Settings are the decision parameters of the broker.
type Settings struct {
	DefaultScope       string
	FlowMaxAge         time.Duration
	LoginRemember      bool
	LoginRememberFor   time.Duration
	LoginACR           string
	ConsentRemember    bool
	ConsentRememberFor time.Duration
	// DefaultIdentity supplies consent claims when no logged-in user matches
	// the consent subject.
	DefaultIdentity sessions.UserClaims
	// EntryPath is the local page that renders the login form.
	EntryPath string
}

// Broker orchestrates the authorization code flow on behalf of the browser
// and answers the authorization server's login and consent requests.
type Broker struct {
	deps      Dependencies
	settings  Settings
	generator FlowGenerator
	metrics   *metrics.Metrics
	nowTime   func() time.Time
}

// BrokerOption defines a function type to modify the Broker instance.
type BrokerOption func(*Broker)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) BrokerOption {
	return func(b *Broker) {
		b.nowTime = nowFunc
	}
}

func WithGenerator(g FlowGenerator) BrokerOption {
	return func(b *Broker) {
		b.generator = g
	}
}

func WithMetrics(m *metrics.Metrics) BrokerOption {
	return func(b *Broker) {
		b.metrics = m
	}
}

func NewBroker(deps Dependencies, settings Settings, options ...BrokerOption) (*Broker, error) {
	if deps.Sessions == nil {
		return nil, errors.New("[NewBroker] Sessions repo is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewBroker] token client is required")
	}
	if deps.AuthorizationServer == nil {
		return nil, errors.New("[NewBroker] authorization server client is required")
	}
	if deps.IdentityProvider == nil {
		return nil, errors.New("[NewBroker] identity provider client is required")
	}

	if strings.TrimSpace(settings.DefaultScope) == "" {
		settings.DefaultScope = DefaultScope
	}
	if settings.FlowMaxAge <= 0 {
		settings.FlowMaxAge = DefaultFlowMaxAge
	}
	if settings.EntryPath == "" {
		settings.EntryPath = "/"
	}

	b := &Broker{
		deps:      deps,
		settings:  settings,
		generator: pkce.NewGenerator(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// StartFlow generates fresh state and verifier, binds them to the session
// (replacing any earlier pending flow) and returns the authorization URL.
// The flow state is durably saved before the URL is returned.
func (b *Broker) StartFlow(ctx context.Context, sessionID, scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = b.settings.DefaultScope
	}

	session, err := b.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return "", b.sessionError(err)
	}

	generated, err := b.generator.NewFlow()
	if err != nil {
		return "", errors.Wrap(err, "[StartFlow] generate flow")
	}

	session.PendingFlow = &sessions.FlowState{
		State:        generated.State,
		CodeVerifier: generated.Verifier,
		CreatedAt:    b.nowTime(),
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", brokererrors.ErrRequestAborted, err)
	}
	if err := b.deps.Sessions.Save(ctx, session); err != nil {
		return "", b.sessionError(err)
	}

	b.metrics.IncFlowsStarted()
	return b.deps.Tokens.AuthCodeURL(scope, generated.State, generated.Challenge), nil
}

// Logout destroys the session. Unknown sessions are not an error.
func (b *Broker) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := b.deps.Sessions.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[Logout] delete session")
	}
	log.Debug().Str("session", sessionID).Msg("Session destroyed")
	return nil
}

func (b *Broker) sessionError(err error) error {
	if brokererrors.Is(err, brokererrors.ErrSessionNotFound) {
		return fmt.Errorf("%w: %w", brokererrors.ErrSessionExpiredOrMissing, err)
	}
	return err
}
