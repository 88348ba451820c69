package server

import (
	"context"
	"net/http"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/rs/zerolog/log"
)

type contextKey string

const sessionContextKey contextKey = "broker-session"

// SessionMiddleware places the caller's session on the request context. A
// missing, unknown or expired cookie leaves nil there; handlers that write
// state create the session through sessionFromContext.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.loadSession(r)
		if err != nil {
			log.Err(err).Msg("Failed to load session")
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, session)))
	}
}

func (s *Server) loadSession(r *http.Request) (*sessions.Session, error) {
	if id := s.sessionIDFromCookie(r); id != "" {
		session, err := s.sessions.Get(r.Context(), id)
		if err == nil {
			return session, nil
		}
		if !brokererrors.Is(err, brokererrors.ErrSessionNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// sessionFromContext returns the session loaded by SessionMiddleware, creating
// it (and setting the cookie) on first use.
func (s *Server) sessionFromContext(w http.ResponseWriter, r *http.Request) (*sessions.Session, error) {
	if session := currentSession(r); session != nil {
		return session, nil
	}
	session, err := s.sessions.Create(r.Context())
	if err != nil {
		return nil, err
	}
	s.SetSessionCookie(w, r, session.ID, session.ExpiresAt)
	return session, nil
}

// currentSession returns the session loaded by SessionMiddleware without
// creating one.
func currentSession(r *http.Request) *sessions.Session {
	session, _ := r.Context().Value(sessionContextKey).(*sessions.Session)
	return session
}
