package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-broker/oauthclient"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/rs/zerolog/log"
)

// IndexPageData contains data for rendering the entry page
type IndexPageData struct {
	AppName      string
	DefaultScope string
	Tokens       *sessions.TokenSet
	Claims       *oauthclient.AccessTokenClaims
}

// LoginPageData contains data for rendering the login form
type LoginPageData struct {
	AppName   string
	Challenge string
	Error     string
	Email     string
}

// IndexHandler renders the login form when a login challenge is present,
// otherwise the authenticated or anonymous view of the session.
func (s *Server) IndexHandler() (http.HandlerFunc, error) {
	indexTmpl, err := ParseTemplate("index.html")
	if err != nil {
		return nil, err
	}
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeHTML)
		q := r.URL.Query()

		if challenge := q.Get(oauthmodel.ParamLoginChallenge); challenge != "" {
			data := LoginPageData{
				AppName:   s.config.GetAppName(),
				Challenge: challenge,
				Error:     q.Get("error"),
				Email:     q.Get("email"),
			}
			if err := loginTmpl.Execute(w, data); err != nil {
				log.Err(err).Msg("Failed to render login template")
			}
			return
		}

		data := IndexPageData{
			AppName:      s.config.GetAppName(),
			DefaultScope: s.config.GetDefaultScope(),
		}
		if session := currentSession(r); session != nil && session.TokenSet != nil {
			data.Tokens = session.TokenSet
			if claims, ok := oauthclient.DecodeAccessTokenClaims(session.TokenSet.AccessToken); ok {
				data.Claims = claims
			}
		}
		if err := indexTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render index template")
		}
	}, nil
}

// LogoutHandler destroys the session and clears the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.broker.Logout(r.Context(), s.sessionIDFromCookie(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.ClearSessionCookie(w, r)
		redirectSuccess(w, r, RouteIndex)
	}
}
