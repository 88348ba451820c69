package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-broker/flow"
	"github.com/jrsteele09/go-auth-broker/hydra"
	"github.com/jrsteele09/go-auth-broker/internal/config"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/kratos"
	"github.com/jrsteele09/go-auth-broker/oauthclient"
	"github.com/jrsteele09/go-auth-broker/server"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type app struct {
	server  *http.Server
	janitor func(ctx context.Context, interval time.Duration) error
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Err(err).Msg("Failed to release resource")
		}
	}
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	repo, err := a.newSessionRepo(ctx, c, reg, m)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Transport: http.DefaultTransport}

	oauthCfg := oauthclient.Config{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURI:  c.GetRedirectURI(),
		AuthURL:      c.GetAuthorizationServerPublicURL() + oauthclient.AuthorizePath,
		TokenURL:     c.GetAuthorizationServerInternalURL() + oauthclient.TokenPath,
		HTTPClient:   httpClient,
		Timeout:      c.GetUpstreamTimeout(),
		Metrics:      m,
	}
	if issuer := c.GetOIDCIssuer(); issuer != "" {
		discoverCtx, cancel := context.WithTimeout(ctx, c.GetUpstreamTimeout())
		verifier, err := oauthclient.NewIDTokenVerifier(discoverCtx, issuer, c.GetClientID(), httpClient)
		cancel()
		if err != nil {
			return nil, err
		}
		oauthCfg.IDTokenVerifier = verifier
	}
	tokens, err := oauthclient.New(oauthCfg)
	if err != nil {
		return nil, err
	}

	admin, err := hydra.New(c.GetAdminURL(), httpClient, c.GetUpstreamTimeout(), m)
	if err != nil {
		return nil, err
	}
	idp, err := kratos.New(c.GetIdentityProviderURL(), httpClient, c.GetUpstreamTimeout(), m)
	if err != nil {
		return nil, err
	}

	identity := c.GetDefaultIdentity()
	broker, err := flow.NewBroker(flow.Dependencies{
		Sessions:            repo,
		Tokens:              tokens,
		AuthorizationServer: admin,
		IdentityProvider:    idp,
	}, flow.Settings{
		DefaultScope:       c.GetDefaultScope(),
		FlowMaxAge:         c.GetFlowMaxAge(),
		LoginRemember:      c.GetLoginRemember(),
		LoginRememberFor:   c.GetLoginRememberFor(),
		LoginACR:           c.GetLoginACR(),
		ConsentRemember:    c.GetConsentRemember(),
		ConsentRememberFor: c.GetConsentRememberFor(),
		DefaultIdentity: sessions.UserClaims{
			Subject: identity.Email,
			Email:   identity.Email,
			Name:    identity.Name,
			Roles:   identity.Roles,
		},
	}, flow.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	handler, err := server.New(c, broker, repo, server.WithGatherer(reg))
	if err != nil {
		return nil, err
	}
	a.server = &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *app) newSessionRepo(ctx context.Context, c config.Config, reg prometheus.Registerer, m *metrics.Metrics) (sessions.Repo, error) {
	switch c.GetSessionStore() {
	case config.StoreRedis:
		client, err := sessions.DialRedis(ctx, c.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("[newSessionRepo] %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return sessions.NewRedisRepo(client, sessions.WithTTL(c.GetSessionTTL())), nil
	default:
		repo := sessions.NewInMemoryRepo(sessions.WithTTL(c.GetSessionTTL()))
		m.RegisterSessionGauge(reg, repo.Count)
		a.janitor = repo.StartJanitor
		return repo, nil
	}
}
