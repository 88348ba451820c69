package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-broker/flow"
	"github.com/jrsteele09/go-auth-broker/hydra"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/internal/oryfakes"
	"github.com/jrsteele09/go-auth-broker/kratos"
	"github.com/jrsteele09/go-auth-broker/oauthclient"
	"github.com/jrsteele09/go-auth-broker/pkce"
	"github.com/jrsteele09/go-auth-broker/server"
	"github.com/jrsteele09/go-auth-broker/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const hydraPublicURL = oryfakes.HydraURL

var writeJSON = oryfakes.WriteJSON

type testConfig struct{}

func (testConfig) GetEnv() string               { return "TEST" }
func (testConfig) GetAppName() string           { return "OAuth2 Demo Application" }
func (testConfig) GetDefaultScope() string      { return "openid offline" }
func (testConfig) GetSessionCookieName() string { return "broker_session" }

// upstream fakes the authorization server and the identity provider.
type upstream struct {
	mu             sync.Mutex
	challenge      string // PKCE challenge of the last authorization request
	codeUsed       bool
	tokenCalls     int
	tokenStatus    int
	tokenDelay     time.Duration
	loginSubject   string
	consentAccepts []hydra.AcceptConsentRequest
}

func (u *upstream) authorize(challenge string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.challenge = challenge
	u.codeUsed = false
}

func (u *upstream) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokenCalls
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		u.mu.Lock()
		u.tokenCalls++
		status, delay := u.tokenStatus, u.tokenDelay
		valid := r.PostForm.Get("code") == "abc" && !u.codeUsed && pkce.Verify(r.PostForm.Get("code_verifier"), u.challenge)
		u.codeUsed = true
		u.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "server_error", "error_description": "token endpoint unavailable"})
			return
		}
		if !valid {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "code already used"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "x", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /self-service/login/api", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, oryfakes.LoginFlow("flow-1"))
	})
	mux.HandleFunc("POST /self-service/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["identifier"] != "jane@example.com" || body["password"] != "secret" {
			writeJSON(w, http.StatusBadRequest, oryfakes.InvalidCredentials("flow-1", "The provided credentials are invalid."))
			return
		}
		writeJSON(w, http.StatusOK, oryfakes.NativeLogin("id-1", map[string]any{
			"email": "jane@example.com", "name": "Jane", "roles": []string{"user"},
		}))
	})
	mux.HandleFunc("GET /admin/oauth2/auth/requests/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, oryfakes.LoginRequest(hydra.LoginRequest{Challenge: r.URL.Query().Get("login_challenge")}))
	})
	mux.HandleFunc("PUT /admin/oauth2/auth/requests/login/accept", func(w http.ResponseWriter, r *http.Request) {
		accept, _ := oryfakes.ReadAcceptLogin(r)
		u.mu.Lock()
		u.loginSubject = accept.Subject
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, oryfakes.RedirectTo(hydraPublicURL+"/oauth2/auth?login_verifier=lv"))
	})
	mux.HandleFunc("GET /admin/oauth2/auth/requests/consent", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		subject := u.loginSubject
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, oryfakes.ConsentRequest(hydra.ConsentRequest{
			Challenge:      r.URL.Query().Get("consent_challenge"),
			Subject:        subject,
			RequestedScope: []string{"openid", "offline"},
		}))
	})
	mux.HandleFunc("PUT /admin/oauth2/auth/requests/consent/accept", func(w http.ResponseWriter, r *http.Request) {
		accept, _ := oryfakes.ReadAcceptConsent(r)
		u.mu.Lock()
		u.consentAccepts = append(u.consentAccepts, accept)
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, oryfakes.RedirectTo(hydraPublicURL+"/oauth2/auth?consent_verifier=cv"))
	})
	return mux
}

type testApp struct {
	upstream *upstream
	app      *httptest.Server
	client   *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	up := &upstream{}
	upSrv := httptest.NewServer(up.handler())
	t.Cleanup(upSrv.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := sessions.NewInMemoryRepo()
	m.RegisterSessionGauge(reg, repo.Count)

	tokens, err := oauthclient.New(oauthclient.Config{
		ClientID:     "web",
		ClientSecret: "web-secret",
		RedirectURI:  "http://127.0.0.1:3001/callback",
		AuthURL:      hydraPublicURL + oauthclient.AuthorizePath,
		TokenURL:     upSrv.URL + oauthclient.TokenPath,
		Timeout:      300 * time.Millisecond,
		Metrics:      m,
	})
	require.NoError(t, err)
	admin, err := hydra.New(upSrv.URL, nil, time.Second, m)
	require.NoError(t, err)
	idp, err := kratos.New(upSrv.URL, nil, time.Second, m)
	require.NoError(t, err)

	broker, err := flow.NewBroker(flow.Dependencies{
		Sessions:            repo,
		Tokens:              tokens,
		AuthorizationServer: admin,
		IdentityProvider:    idp,
	}, flow.Settings{
		LoginRemember:      true,
		LoginRememberFor:   time.Hour,
		LoginACR:           "0",
		ConsentRemember:    true,
		ConsentRememberFor: time.Hour,
		DefaultIdentity:    sessions.UserClaims{Email: "test@example.com", Name: "Test User", Roles: []string{"admin", "user"}},
	}, flow.WithMetrics(m))
	require.NoError(t, err)

	srv, err := server.New(testConfig{}, broker, repo, server.WithGatherer(reg))
	require.NoError(t, err)
	app := httptest.NewServer(srv)
	t.Cleanup(app.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{upstream: up, app: app, client: client}
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.app.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.app.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// startFlow posts the scope form and plays the authorization server receiving
// the redirect. It returns the state to echo back.
func (a *testApp) startFlow(t *testing.T) string {
	t.Helper()
	resp, _ := a.post(t, server.RouteStartOAuth, url.Values{"scope": {"openid offline"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "hydra.test", location.Host)
	q := location.Query()
	require.Equal(t, "openid offline", q.Get("scope"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	a.upstream.authorize(q.Get("code_challenge"))
	return q.Get("state")
}

func TestEndToEnd(t *testing.T) {
	a := newTestApp(t)

	resp, body := a.get(t, server.RouteIndex)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `id="anonymous"`)
	require.Contains(t, body, `value="openid offline"`)

	state := a.startFlow(t)

	// the authorization server sends the browser to the login URL
	resp, _ = a.get(t, server.RouteLogin+"?login_challenge=lc-1")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/?login_challenge=lc-1", resp.Header.Get("Location"))

	resp, body = a.get(t, "/?login_challenge=lc-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `name="challenge" value="lc-1"`)

	resp, _ = a.post(t, server.RouteAuthLogin, url.Values{
		"email":     {"jane@example.com"},
		"password":  {"secret"},
		"challenge": {"lc-1"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, hydraPublicURL+"/oauth2/auth?login_verifier=lv", resp.Header.Get("Location"))

	resp, _ = a.get(t, server.RouteConsent+"?consent_challenge=cc-1")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, hydraPublicURL+"/oauth2/auth?consent_verifier=cv", resp.Header.Get("Location"))
	require.Len(t, a.upstream.consentAccepts, 1)
	require.Equal(t, []string{"openid", "offline"}, a.upstream.consentAccepts[0].GrantScope)
	require.Equal(t, "jane@example.com", a.upstream.consentAccepts[0].Session.IDToken["email"])

	resp, _ = a.get(t, server.RouteCallback+"?code=abc&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, server.RouteIndex, resp.Header.Get("Location"))

	resp, body = a.get(t, server.RouteIndex)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `id="authenticated"`)
	require.Contains(t, body, "<pre>x</pre>")
	require.Contains(t, body, "3600 seconds")

	// replaying the callback finds no pending flow
	resp, _ = a.get(t, server.RouteCallback+"?code=abc&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 1, a.upstream.calls())

	resp, _ = a.post(t, server.RouteLogout, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body = a.get(t, server.RouteIndex)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `id="anonymous"`)

	// logging out again is harmless
	resp, _ = a.post(t, server.RouteLogout, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestSessionCookie(t *testing.T) {
	a := newTestApp(t)

	resp, _ := a.post(t, server.RouteStartOAuth, url.Values{})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "broker_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.False(t, cookie.Secure)
	require.InDelta(t, time.Hour.Seconds(), cookie.MaxAge, 5)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "openid offline", location.Query().Get("scope"))
}

func TestCallback_StateMismatch(t *testing.T) {
	a := newTestApp(t)
	a.startFlow(t)

	resp, body := a.get(t, server.RouteCallback+"?code=abc&state=forged")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "Invalid state parameter")
	require.Equal(t, 0, a.upstream.calls())
}

func TestCallback_WithoutSession(t *testing.T) {
	a := newTestApp(t)

	resp, body := a.get(t, server.RouteCallback+"?code=abc&state=s")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "OAuth session not found")
	require.Equal(t, 0, a.upstream.calls())
}

func TestCallback_AuthorizationError(t *testing.T) {
	a := newTestApp(t)
	a.startFlow(t)

	resp, body := a.get(t, server.RouteCallback+"?error=access_denied&error_description="+url.QueryEscape("The resource owner denied the request"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "access_denied")
	require.Contains(t, body, "The resource owner denied the request")
	require.Equal(t, 0, a.upstream.calls())
}

func TestCallback_AuthorizationErrorWithoutCookie(t *testing.T) {
	a := newTestApp(t)

	resp, body := a.get(t, server.RouteCallback+"?error=access_denied&error_description="+url.QueryEscape("The resource owner denied the request"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "access_denied")
	require.Contains(t, body, "The resource owner denied the request")
	require.NotContains(t, body, "OAuth session not found")
	require.Equal(t, 0, a.upstream.calls())
}

func TestCallback_TokenEndpointFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		delay  time.Duration
		want   int
	}{
		{name: "rejected", status: http.StatusInternalServerError, want: http.StatusBadGateway},
		{name: "timeout", delay: 2 * time.Second, want: http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t)
			a.upstream.tokenStatus = tt.status
			a.upstream.tokenDelay = tt.delay
			state := a.startFlow(t)

			resp, _ := a.get(t, server.RouteCallback+"?code=abc&state="+url.QueryEscape(state))
			require.Equal(t, tt.want, resp.StatusCode)
			require.Equal(t, 1, a.upstream.calls())

			_, body := a.get(t, server.RouteIndex)
			require.Contains(t, body, `id="anonymous"`)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	a := newTestApp(t)

	resp, _ := a.post(t, server.RouteAuthLogin, url.Values{
		"email":     {"jane@example.com"},
		"password":  {"wrong"},
		"challenge": {"lc-1"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/", location.Path)
	require.Equal(t, "lc-1", location.Query().Get("login_challenge"))
	require.Equal(t, "The provided credentials are invalid.", location.Query().Get("error"))

	_, body := a.get(t, location.String())
	require.Contains(t, body, "The provided credentials are invalid.")
}

func TestLogin_MissingChallenge(t *testing.T) {
	a := newTestApp(t)
	resp, _ := a.post(t, server.RouteAuthLogin, url.Values{"email": {"jane@example.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConsent_MissingChallenge(t *testing.T) {
	a := newTestApp(t)
	resp, _ := a.get(t, server.RouteConsent)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginForm_EscapesError(t *testing.T) {
	a := newTestApp(t)
	_, body := a.get(t, "/?login_challenge=lc-1&error="+url.QueryEscape("<script>alert(1)</script>"))
	require.NotContains(t, body, "<script>alert(1)</script>")
	require.Contains(t, body, "&lt;script&gt;")
}

func TestHealthzAndMetrics(t *testing.T) {
	a := newTestApp(t)

	resp, body := a.get(t, server.RouteHealthz)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, body)

	a.startFlow(t)
	resp, body = a.get(t, server.RouteMetrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(body, "broker_flows_started_total 1"))
	require.Contains(t, body, "broker_active_sessions 1")
}
