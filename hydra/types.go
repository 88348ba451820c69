package hydra

// OAuth2Client is the subset of the requesting client shown to the user.
type OAuth2Client struct {
	ClientID   string
	ClientName string
}

type LoginRequest struct {
	Challenge      string
	Skip           bool
	Subject        string
	RequestURL     string
	RequestedScope []string
	Client         OAuth2Client
}

type AcceptLoginRequest struct {
	Subject     string
	Remember    bool
	RememberFor int64 // seconds
	ACR         string
}

type ConsentRequest struct {
	Challenge                    string
	Skip                         bool
	Subject                      string
	RequestedScope               []string
	RequestedAccessTokenAudience []string
	Client                       OAuth2Client
}

// ConsentSession holds the claims embedded into issued tokens.
type ConsentSession struct {
	AccessToken map[string]any
	IDToken     map[string]any
}

// AcceptConsentRequest grants scopes and audiences. Empty, non nil slices
// are sent as [] rather than omitted.
type AcceptConsentRequest struct {
	GrantScope               []string
	GrantAccessTokenAudience []string
	Remember                 bool
	RememberFor              int64 // seconds
	Session                  ConsentSession
}
