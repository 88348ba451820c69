package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-broker/oauthmodel"
	"github.com/rs/zerolog/log"
)

// StartOAuthHandler begins an authorization code flow (POST /start-oauth).
func (s *Server) StartOAuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		session, err := s.sessionFromContext(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		authURL, err := s.broker.StartFlow(r.Context(), session.ID, r.PostForm.Get(oauthmodel.ParamScope))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler handles the authorization server's redirect back to the
// application (GET /callback).
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.CallbackParamsFromValues(r.URL.Query())

		sessionID := ""
		if session := currentSession(r); session != nil {
			sessionID = session.ID
		}

		if err := s.broker.HandleCallback(r.Context(), sessionID, params); err != nil {
			s.writeError(w, r, err)
			return
		}
		log.Info().Str("session", sessionID).Msg("Authorization code flow completed")
		http.Redirect(w, r, RouteIndex, http.StatusFound)
	}
}
