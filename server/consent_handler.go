package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-broker/oauthmodel"
)

// ConsentHandler is the consent URL registered with the authorization server
// (GET /consent?consent_challenge=...). Consent is granted automatically.
func (s *Server) ConsentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if session := currentSession(r); session != nil {
			sessionID = session.ID
		}

		challenge := r.URL.Query().Get(oauthmodel.ParamConsentChallenge)
		redirectTo, err := s.broker.AcceptConsent(r.Context(), sessionID, challenge)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, redirectTo, http.StatusFound)
	}
}
