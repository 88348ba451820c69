package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-broker/oauthmodel"
)

const defaultSessionCookieName = "broker_session"

func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(s.nowTime()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionIDFromCookie returns the raw cookie value, or "" when absent.
func (s *Server) sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// redirectSuccess sends the browser on after a form post
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectToLoginForm sends the user back to the login form with errorMsg,
// keeping the login challenge.
func redirectToLoginForm(w http.ResponseWriter, r *http.Request, challenge, errorMsg string) {
	q := url.Values{}
	q.Set(oauthmodel.ParamLoginChallenge, challenge)
	q.Set("error", errorMsg)
	http.Redirect(w, r, RouteIndex+"?"+q.Encode(), http.StatusSeeOther)
}
