package flow

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jrsteele09/go-auth-broker/hydra"
	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/kratos"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/rs/zerolog/log"
)

const defaultLoginFailure = "Login failed"

// LoginRequest is the submitted login form.
type LoginRequest struct {
	Identifier string
	Secret     string
	Challenge  string
}

// LoginError is a recoverable login failure: the user is sent back to the
// login form with Message, keeping Challenge.
type LoginError struct {
	Message   string
	Challenge string
	Err       error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login rejected: %s", e.Message)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// AcceptLogin verifies the credentials with the identity provider, accepts
// the login request with the verified subject and returns the authorization
// server's redirect. User claims are stored on the session only once the
// accept has succeeded.
func (b *Broker) AcceptLogin(ctx context.Context, sessionID string, req LoginRequest) (string, error) {
	redirectTo, err := b.acceptLogin(ctx, sessionID, req)
	if err != nil {
		b.metrics.ObserveLogin(metrics.OutcomeFailure)
	} else {
		b.metrics.ObserveLogin(metrics.OutcomeSuccess)
	}
	return redirectTo, err
}

func (b *Broker) acceptLogin(ctx context.Context, sessionID string, req LoginRequest) (string, error) {
	if req.Challenge == "" {
		return "", fmt.Errorf("%w: %s", brokererrors.ErrMissingChallenge, oauthmodel.ParamLoginChallenge)
	}

	identity, err := b.deps.IdentityProvider.Login(ctx, req.Identifier, req.Secret)
	if err != nil {
		if brokererrors.Is(err, brokererrors.ErrRequestAborted) {
			return "", err
		}
		log.Info().Err(err).Msg("Credential verification failed")
		return "", &LoginError{Message: loginFailureMessage(err), Challenge: req.Challenge, Err: err}
	}

	subject := identity.Subject()
	redirectTo, err := b.deps.AuthorizationServer.AcceptLogin(ctx, req.Challenge, b.acceptLoginRequest(subject))
	if err != nil {
		return "", b.loginAcceptError(err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", brokererrors.ErrRequestAborted, err)
	}

	if err := b.storeUserClaims(ctx, sessionID, claimsFromIdentity(identity)); err != nil {
		return "", err
	}
	return redirectTo, nil
}

// ResolveLoginChallenge answers the authorization server's redirect to the
// login URL. A remembered login (skip) is accepted straight away; otherwise
// the browser is sent to the login form carrying the challenge.
func (b *Broker) ResolveLoginChallenge(ctx context.Context, challenge string) (string, error) {
	if challenge == "" {
		return b.settings.EntryPath, nil
	}

	loginReq, err := b.deps.AuthorizationServer.GetLoginRequest(ctx, challenge)
	if err != nil {
		return "", b.loginAcceptError(err)
	}
	if !loginReq.Skip {
		return b.settings.EntryPath + "?" + url.Values{oauthmodel.ParamLoginChallenge: {challenge}}.Encode(), nil
	}

	redirectTo, err := b.deps.AuthorizationServer.AcceptLogin(ctx, challenge, b.acceptLoginRequest(loginReq.Subject))
	if err != nil {
		return "", b.loginAcceptError(err)
	}
	b.metrics.ObserveLogin(metrics.OutcomeSuccess)
	return redirectTo, nil
}

func (b *Broker) acceptLoginRequest(subject string) hydra.AcceptLoginRequest {
	return hydra.AcceptLoginRequest{
		Subject:     subject,
		Remember:    b.settings.LoginRemember,
		RememberFor: int64(b.settings.LoginRememberFor.Seconds()),
		ACR:         b.settings.LoginACR,
	}
}

func (b *Broker) loginAcceptError(err error) error {
	if brokererrors.Is(err, brokererrors.ErrRequestAborted) {
		return err
	}
	log.Err(err).Msg("Login accept failed")
	return fmt.Errorf("%w: %w", brokererrors.ErrLoginAcceptFailed, err)
}

func (b *Broker) storeUserClaims(ctx context.Context, sessionID string, claims *sessions.UserClaims) error {
	session, err := b.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return b.sessionError(err)
	}
	session.UserClaims = claims
	if err := b.deps.Sessions.Save(ctx, session); err != nil {
		return b.sessionError(err)
	}
	return nil
}

func loginFailureMessage(err error) string {
	var upErr *brokererrors.UpstreamError
	if brokererrors.As(err, &upErr) {
		if msg := upErr.Message(); msg != "" {
			return msg
		}
	}
	return defaultLoginFailure
}

func claimsFromIdentity(identity *kratos.Identity) *sessions.UserClaims {
	return &sessions.UserClaims{
		Subject: identity.Subject(),
		Email:   identity.Email(),
		Name:    identity.Name(),
		Roles:   identity.Roles(),
		Traits:  identity.Traits,
	}
}
