package flow_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-broker/hydra"
	"github.com/jrsteele09/go-auth-broker/internal/oryfakes"
	"github.com/jrsteele09/go-auth-broker/pkce"
)

type fakeUser struct {
	password string
	login    map[string]any
}

// fakeUpstream plays the authorization server (public and admin API) and
// the identity provider.
type fakeUpstream struct {
	mu sync.Mutex

	// code -> PKCE challenge it was issued for; codes are single use
	codes         map[string]string
	tokenCalls    int
	lastTokenForm map[string]string
	tokenDelay    time.Duration

	users      map[string]fakeUser
	loginCalls int

	loginRequests     map[string]hydra.LoginRequest
	loginAccepts      []hydra.AcceptLoginRequest
	loginAcceptStatus int

	consentRequests map[string]hydra.ConsentRequest
	consentAccepts  []map[string]any
	consentStatus   int
}

func newFakeUpstream(t *testing.T) (*fakeUpstream, *httptest.Server) {
	f := &fakeUpstream{
		codes:           map[string]string{},
		users:           map[string]fakeUser{},
		loginRequests:   map[string]hydra.LoginRequest{},
		consentRequests: map[string]hydra.ConsentRequest{},
	}
	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeUpstream) issueCode(code, challenge string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = challenge
}

func (f *fakeUpstream) addUser(email, password string, traits map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = fakeUser{password: password, login: oryfakes.NativeLogin("id-"+email, traits)}
}

func (f *fakeUpstream) tokenCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func reply(w http.ResponseWriter, status int, body any) {
	oryfakes.WriteJSON(w, status, body)
}

func (f *fakeUpstream) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.tokenCalls++
		f.lastTokenForm = map[string]string{}
		for k := range r.PostForm {
			f.lastTokenForm[k] = r.PostForm.Get(k)
		}
		delay := f.tokenDelay
		challenge, ok := f.codes[r.PostForm.Get("code")]
		delete(f.codes, r.PostForm.Get("code"))
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if !ok || !pkce.Verify(r.PostForm.Get("code_verifier"), challenge) {
			reply(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "The provided authorization grant is invalid, expired or revoked",
			})
			return
		}
		reply(w, http.StatusOK, map[string]any{"access_token": "x", "token_type": "bearer", "expires_in": 3600})
	})

	mux.HandleFunc("GET /self-service/login/api", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, oryfakes.LoginFlow("flow-1"))
	})
	mux.HandleFunc("POST /self-service/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.loginCalls++
		user, ok := f.users[body["identifier"]]
		f.mu.Unlock()
		if !ok || user.password != body["password"] {
			reply(w, http.StatusBadRequest, oryfakes.InvalidCredentials("flow-1", "The provided credentials are invalid."))
			return
		}
		reply(w, http.StatusOK, user.login)
	})

	mux.HandleFunc("GET /admin/oauth2/auth/requests/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		req, ok := f.loginRequests[r.URL.Query().Get("login_challenge")]
		f.mu.Unlock()
		if !ok {
			reply(w, http.StatusNotFound, oryfakes.OAuth2Error("Not Found", "Unable to locate the resource"))
			return
		}
		reply(w, http.StatusOK, oryfakes.LoginRequest(req))
	})
	mux.HandleFunc("PUT /admin/oauth2/auth/requests/login/accept", func(w http.ResponseWriter, r *http.Request) {
		accept, _ := oryfakes.ReadAcceptLogin(r)
		f.mu.Lock()
		status := f.loginAcceptStatus
		if status == 0 {
			f.loginAccepts = append(f.loginAccepts, accept)
		}
		f.mu.Unlock()
		if status != 0 {
			reply(w, status, map[string]any{"error": map[string]any{"code": status, "message": "login request expired"}})
			return
		}
		reply(w, http.StatusOK, oryfakes.RedirectTo(oryfakes.HydraURL+"/oauth2/auth?login_verifier="+r.URL.Query().Get("login_challenge")))
	})

	mux.HandleFunc("GET /admin/oauth2/auth/requests/consent", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		req, ok := f.consentRequests[r.URL.Query().Get("consent_challenge")]
		status := f.consentStatus
		f.mu.Unlock()
		if status != 0 {
			reply(w, status, map[string]string{"error": "server_error"})
			return
		}
		if !ok {
			reply(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
			return
		}
		reply(w, http.StatusOK, oryfakes.ConsentRequest(req))
	})
	mux.HandleFunc("PUT /admin/oauth2/auth/requests/consent/accept", func(w http.ResponseWriter, r *http.Request) {
		var accept map[string]any
		_ = json.NewDecoder(r.Body).Decode(&accept)
		f.mu.Lock()
		f.consentAccepts = append(f.consentAccepts, accept)
		f.mu.Unlock()
		reply(w, http.StatusOK, oryfakes.RedirectTo(oryfakes.HydraURL+"/oauth2/auth?consent_verifier="+r.URL.Query().Get("consent_challenge")))
	})
	return mux
}
