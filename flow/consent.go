package flow

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-broker/hydra"
	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/rs/zerolog/log"
)

// AcceptConsent grants exactly what the client requested and embeds the
// user's claims in the issued tokens. The session is read but never written.
func (b *Broker) AcceptConsent(ctx context.Context, sessionID, challenge string) (string, error) {
	redirectTo, err := b.acceptConsent(ctx, sessionID, challenge)
	if err != nil {
		b.metrics.ObserveConsent(metrics.OutcomeFailure)
	} else {
		b.metrics.ObserveConsent(metrics.OutcomeSuccess)
	}
	return redirectTo, err
}

func (b *Broker) acceptConsent(ctx context.Context, sessionID, challenge string) (string, error) {
	if challenge == "" {
		return "", fmt.Errorf("%w: %s", brokererrors.ErrMissingChallenge, oauthmodel.ParamConsentChallenge)
	}

	consentReq, err := b.deps.AuthorizationServer.GetConsentRequest(ctx, challenge)
	if err != nil {
		return "", b.consentError(err)
	}

	claims := b.consentClaims(ctx, sessionID, consentReq.Subject)
	redirectTo, err := b.deps.AuthorizationServer.AcceptConsent(ctx, challenge, hydra.AcceptConsentRequest{
		GrantScope:               nonNil(consentReq.RequestedScope),
		GrantAccessTokenAudience: nonNil(consentReq.RequestedAccessTokenAudience),
		Remember:                 b.settings.ConsentRemember,
		RememberFor:              int64(b.settings.ConsentRememberFor.Seconds()),
		Session:                  consentSession(claims),
	})
	if err != nil {
		return "", b.consentError(err)
	}
	return redirectTo, nil
}

// consentClaims prefers the claims of the user who logged in through this
// session, as long as they belong to the consent subject.
func (b *Broker) consentClaims(ctx context.Context, sessionID, subject string) sessions.UserClaims {
	session, err := b.deps.Sessions.Get(ctx, sessionID)
	if err == nil && session.UserClaims != nil && (subject == "" || session.UserClaims.Subject == subject) {
		return *session.UserClaims
	}
	if err == nil && session.UserClaims != nil {
		log.Warn().Bool("security", true).Str("session", sessionID).Msg("Consent subject differs from session user")
	}
	return b.settings.DefaultIdentity
}

func (b *Broker) consentError(err error) error {
	if brokererrors.Is(err, brokererrors.ErrRequestAborted) {
		return err
	}
	log.Err(err).Msg("Consent brokerage failed")
	return fmt.Errorf("%w: %w", brokererrors.ErrConsentBrokerageFailed, err)
}

func consentSession(claims sessions.UserClaims) hydra.ConsentSession {
	traits := claims.Traits
	if len(traits) == 0 {
		traits = map[string]any{
			"email": claims.Email,
			"name":  claims.Name,
			"roles": nonNil(claims.Roles),
		}
	}
	return hydra.ConsentSession{
		AccessToken: map[string]any{
			"email":  claims.Email,
			"traits": traits,
		},
		IDToken: map[string]any{
			"email":  claims.Email,
			"name":   claims.Name,
			"traits": traits,
		},
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
