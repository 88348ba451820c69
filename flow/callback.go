package flow

import (
	"context"
	"crypto/subtle"
	"fmt"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/rs/zerolog/log"
)

// HandleCallback completes the flow started by StartFlow. The pending flow is
// consumed before anything else is checked, so a state or code can only be
// tried once. On success the session holds the token set.
func (b *Broker) HandleCallback(ctx context.Context, sessionID string, params oauthmodel.CallbackParams) error {
	err := b.handleCallback(ctx, sessionID, params)
	if err != nil {
		b.metrics.ObserveCallback(metrics.OutcomeFailure)
	} else {
		b.metrics.ObserveCallback(metrics.OutcomeSuccess)
	}
	return err
}

func (b *Broker) handleCallback(ctx context.Context, sessionID string, params oauthmodel.CallbackParams) error {
	pending, err := b.deps.Sessions.TakePendingFlow(ctx, sessionID)

	// An error response is surfaced as sent whether or not the browser still
	// has a session; any pending flow was discarded above.
	if params.Error != "" {
		if err != nil && !brokererrors.Is(err, brokererrors.ErrSessionNotFound) {
			return b.sessionError(err)
		}
		return &oauthmodel.AuthorizationError{Code: params.Error, Description: params.ErrorDescription}
	}

	if err != nil {
		if brokererrors.Is(err, brokererrors.ErrSessionNotFound) {
			securityEvent(sessionID, "callback for unknown or expired session")
		}
		return b.sessionError(err)
	}

	if pending == nil {
		securityEvent(sessionID, "callback without a pending flow")
		return brokererrors.ErrSessionExpiredOrMissing
	}
	if b.nowTime().Sub(pending.CreatedAt) > b.settings.FlowMaxAge {
		securityEvent(sessionID, "callback for a stale flow")
		return fmt.Errorf("%w: flow older than %s", brokererrors.ErrSessionExpiredOrMissing, b.settings.FlowMaxAge)
	}
	if params.State == "" || subtle.ConstantTimeCompare([]byte(params.State), []byte(pending.State)) != 1 {
		securityEvent(sessionID, "callback state mismatch")
		return brokererrors.ErrStateMismatch
	}
	if params.Code == "" {
		return &oauthmodel.AuthorizationError{Code: "invalid_request", Description: "authorization code missing from callback"}
	}

	tokens, err := b.deps.Tokens.Exchange(ctx, params.Code, pending.CodeVerifier)
	if err != nil {
		if brokererrors.Is(err, brokererrors.ErrRequestAborted) {
			return err
		}
		log.Err(err).Str("session", sessionID).Msg("Token exchange failed")
		return fmt.Errorf("%w: %w", brokererrors.ErrTokenExchangeFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", brokererrors.ErrRequestAborted, err)
	}
	return b.storeTokens(ctx, sessionID, tokens)
}

func (b *Broker) storeTokens(ctx context.Context, sessionID string, tokens *sessions.TokenSet) error {
	session, err := b.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return b.sessionError(err)
	}
	session.TokenSet = tokens
	if err := b.deps.Sessions.Save(ctx, session); err != nil {
		return b.sessionError(err)
	}
	return nil
}

func securityEvent(sessionID, msg string) {
	log.Warn().Bool("security", true).Str("session", sessionID).Msg(msg)
}
