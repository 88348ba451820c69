// Package oryfakes builds admin and self-service payloads shaped like real
// authorization server and identity provider responses, for fake upstreams
// in tests.
package oryfakes

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-broker/hydra"
	ory "github.com/ory/client-go"
)

const (
	HydraURL  = "http://hydra.test"
	KratosURL = "http://kratos.test"

	defaultClientID = "web"

	// CodeInvalidCredentials is the identity provider's message id for a
	// wrong identifier or password.
	CodeInvalidCredentials = 4000006
)

// WriteJSON replies with body; the SDK only decodes bodies labelled as JSON.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func LoginRequest(req hydra.LoginRequest) map[string]any {
	requestURL := req.RequestURL
	if requestURL == "" {
		requestURL = HydraURL + "/oauth2/auth?" + url.Values{"client_id": {clientID(req.Client)}}.Encode()
	}
	scope := req.RequestedScope
	if scope == nil {
		scope = []string{}
	}
	return map[string]any{
		"challenge":                       req.Challenge,
		"skip":                            req.Skip,
		"subject":                         req.Subject,
		"request_url":                     requestURL,
		"requested_scope":                 scope,
		"requested_access_token_audience": []string{},
		"client":                          client(req.Client),
	}
}

// ConsentRequest keeps nil slices as JSON null, which the authorization
// server sends when nothing was requested.
func ConsentRequest(req hydra.ConsentRequest) map[string]any {
	return map[string]any{
		"challenge":                       req.Challenge,
		"skip":                            req.Skip,
		"subject":                         req.Subject,
		"request_url":                     HydraURL + "/oauth2/auth?client_id=" + clientID(req.Client),
		"requested_scope":                 req.RequestedScope,
		"requested_access_token_audience": req.RequestedAccessTokenAudience,
		"client":                          client(req.Client),
	}
}

func RedirectTo(target string) map[string]any {
	return map[string]any{"redirect_to": target}
}

// OAuth2Error is the admin API error envelope.
func OAuth2Error(code, description string) map[string]any {
	return map[string]any{"error": code, "error_description": description}
}

// LoginFlow is an API login flow waiting for a method to be chosen.
func LoginFlow(id string) map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"id":          id,
		"type":        "api",
		"state":       "choose_method",
		"issued_at":   now.Format(time.RFC3339),
		"expires_at":  now.Add(time.Hour).Format(time.RFC3339),
		"request_url": KratosURL + "/self-service/login/api",
		"ui": map[string]any{
			"action": KratosURL + "/self-service/login?" + url.Values{"flow": {id}}.Encode(),
			"method": http.MethodPost,
			"nodes":  []any{},
		},
	}
}

// InvalidCredentials is the flow returned with a 400 after a failed password
// submission.
func InvalidCredentials(flowID, text string) map[string]any {
	flow := LoginFlow(flowID)
	flow["ui"].(map[string]any)["messages"] = []map[string]any{
		{"id": CodeInvalidCredentials, "text": text, "type": "error"},
	}
	return flow
}

// NativeLogin is a successful password login for an identity with traits.
func NativeLogin(identityID string, traits map[string]any) map[string]any {
	return map[string]any{
		"session_token": "st-" + identityID,
		"session": map[string]any{
			"id":     "session-" + identityID,
			"active": true,
			"identity": map[string]any{
				"id":         identityID,
				"schema_id":  "default",
				"schema_url": KratosURL + "/schemas/default",
				"state":      "active",
				"traits":     traits,
			},
		},
	}
}

// ReadAcceptLogin decodes an accept-login body the way the admin API does.
func ReadAcceptLogin(r *http.Request) (hydra.AcceptLoginRequest, error) {
	var body ory.AcceptOAuth2LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return hydra.AcceptLoginRequest{}, err
	}
	return hydra.AcceptLoginRequest{
		Subject:     body.GetSubject(),
		Remember:    body.GetRemember(),
		RememberFor: body.GetRememberFor(),
		ACR:         body.GetAcr(),
	}, nil
}

// ReadAcceptConsent decodes an accept-consent body the way the admin API does.
func ReadAcceptConsent(r *http.Request) (hydra.AcceptConsentRequest, error) {
	var body ory.AcceptOAuth2ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return hydra.AcceptConsentRequest{}, err
	}
	session := body.GetSession()
	accessToken, _ := session.GetAccessToken().(map[string]any)
	idToken, _ := session.GetIdToken().(map[string]any)
	return hydra.AcceptConsentRequest{
		GrantScope:               body.GetGrantScope(),
		GrantAccessTokenAudience: body.GetGrantAccessTokenAudience(),
		Remember:                 body.GetRemember(),
		RememberFor:              body.GetRememberFor(),
		Session:                  hydra.ConsentSession{AccessToken: accessToken, IDToken: idToken},
	}, nil
}

func clientID(c hydra.OAuth2Client) string {
	if c.ClientID == "" {
		return defaultClientID
	}
	return c.ClientID
}

func client(c hydra.OAuth2Client) map[string]any {
	return map[string]any{"client_id": clientID(c), "client_name": c.ClientName}
}
