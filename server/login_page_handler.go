package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-broker/flow"
	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/oauthmodel"
)

// LoginChallengeHandler is the login URL registered with the authorization
// server (GET /login?login_challenge=...).
func (s *Server) LoginChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challenge := r.URL.Query().Get(oauthmodel.ParamLoginChallenge)
		redirectTo, err := s.broker.ResolveLoginChallenge(r.Context(), challenge)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, redirectTo, http.StatusFound)
	}
}

// LoginSubmissionHandler processes the login form (POST /auth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse form data
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		session, err := s.sessionFromContext(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		req := flow.LoginRequest{
			Identifier: r.PostForm.Get("email"),
			Secret:     r.PostForm.Get("password"),
			Challenge:  r.PostForm.Get("challenge"),
		}
		redirectTo, err := s.broker.AcceptLogin(r.Context(), session.ID, req)
		if err != nil {
			var loginErr *flow.LoginError
			if brokererrors.As(err, &loginErr) {
				redirectToLoginForm(w, r, loginErr.Challenge, loginErr.Message)
				return
			}
			s.writeError(w, r, err)
			return
		}
		redirectSuccess(w, r, redirectTo)
	}
}
