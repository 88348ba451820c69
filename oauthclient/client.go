package oauthclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/internal/upstream"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	serviceName = "token-endpoint"

	// Authorization server endpoint paths
	AuthorizePath = "/oauth2/auth"
	TokenPath     = "/oauth2/token"
)

// Config describes this application as an OAuth2 client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AuthURL is the browser facing authorization endpoint.
	AuthURL string
	// TokenURL is the back-channel token endpoint.
	TokenURL string

	HTTPClient *http.Client
	Timeout    time.Duration
	// IDTokenVerifier, when set, verifies any id_token returned by the exchange.
	IDTokenVerifier *oidc.IDTokenVerifier
	Metrics         *metrics.Metrics
}

// Client builds authorization redirects and performs the code exchange.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	verifier   *oidc.IDTokenVerifier
	metrics    *metrics.Metrics
}

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[oauthclient New] client id is required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("[oauthclient New] redirect uri is required")
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, errors.New("[oauthclient New] authorization and token endpoints are required")
	}

	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Credentials travel in the form body. Auto-detection would
				// retry a failed exchange with the other style.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: cfg.HTTPClient,
		timeout:    cfg.Timeout,
		verifier:   cfg.IDTokenVerifier,
		metrics:    cfg.Metrics,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	return c, nil
}

// AuthCodeURL returns the authorization endpoint URL carrying client_id,
// redirect_uri, response_type=code, scope, state and the S256 challenge.
// It has no side effects.
func (c *Client) AuthCodeURL(scope, state, challenge string) string {
	cfg := *c.oauth
	cfg.Scopes = strings.Fields(scope)
	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam(oauthmodel.ParamCodeChallenge, challenge),
		oauth2.SetAuthURLParam(oauthmodel.ParamCodeChallengeMethod, string(oauthmodel.CodeMethodTypeS256)),
	)
}

// Exchange makes exactly one token endpoint request for code. Failures are
// *errors.UpstreamError (rejected or timeout) or ErrRequestAborted when ctx
// was cancelled by the inbound request.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*sessions.TokenSet, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	callCtx = context.WithValue(callCtx, oauth2.HTTPClient, c.httpClient)

	start := time.Now()
	token, err := c.oauth.Exchange(callCtx, code, oauth2.VerifierOption(verifier))
	c.metrics.ObserveUpstream(serviceName, "exchange", start)
	if err != nil {
		return nil, c.exchangeError(ctx, err)
	}

	tokenSet := &sessions.TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
		Expiry:       token.Expiry,
		RefreshToken: token.RefreshToken,
	}
	if tokenSet.ExpiresIn == 0 && !token.Expiry.IsZero() {
		tokenSet.ExpiresIn = int64(time.Until(token.Expiry).Round(time.Second) / time.Second)
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokenSet.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		tokenSet.Scope = scope
	}

	if c.verifier != nil && tokenSet.IDToken != "" {
		if _, err := c.verifier.Verify(oidc.ClientContext(callCtx, c.httpClient), tokenSet.IDToken); err != nil {
			return nil, fmt.Errorf("[oauthclient Exchange] id token verification: %w", err)
		}
	}
	return tokenSet, nil
}

func (c *Client) exchangeError(ctx context.Context, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return upstream.Classify(ctx, serviceName, "exchange", err)
	}

	upErr := &brokererrors.UpstreamError{
		Service:   serviceName,
		Operation: "exchange",
		Body:      re.Body,
		Detail:    upstream.ParseErrorDetail(re.Body).Text(),
	}
	if re.Response != nil {
		upErr.StatusCode = re.Response.StatusCode
	}
	return upErr
}

// NewIDTokenVerifier discovers issuer and returns a verifier for ID tokens
// issued to clientID.
func NewIDTokenVerifier(ctx context.Context, issuer, clientID string, httpClient *http.Client) (*oidc.IDTokenVerifier, error) {
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[oauthclient NewIDTokenVerifier] discover %s: %w", issuer, err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}
