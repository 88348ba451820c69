package config

import "strings"

// OAuthClientConfig describes this application as a relying party of the
// authorization server.
type OAuthClientConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetDefaultScope() string
	// GetAuthorizationServerPublicURL is the browser facing base URL.
	GetAuthorizationServerPublicURL() string
	// GetAuthorizationServerInternalURL is used for back-channel calls (token endpoint).
	GetAuthorizationServerInternalURL() string
	// GetOIDCIssuer enables ID token verification when non-empty.
	GetOIDCIssuer() string
}

type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID" envDefault:"web"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:"web-secret"`
	RedirectURI  string `env:"REDIRECT_URI" envDefault:"http://127.0.0.1:3001/callback"`
	DefaultScope string `env:"DEFAULT_SCOPE" envDefault:"openid offline"`
	PublicURL    string `env:"HYDRA_PUBLIC_URL" envDefault:"http://hydra:4444"`
	InternalURL  string `env:"HYDRA_INTERNAL_URL" envDefault:"http://hydra:4444"`
	OIDCIssuer   string `env:"OIDC_ISSUER"`
}

var _ OAuthClientConfig = OAuthClient{}

func (o OAuthClient) GetClientID() string {
	return o.ClientID
}

func (o OAuthClient) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuthClient) GetRedirectURI() string {
	return o.RedirectURI
}

func (o OAuthClient) GetDefaultScope() string {
	return o.DefaultScope
}

func (o OAuthClient) GetAuthorizationServerPublicURL() string {
	return strings.TrimSuffix(o.PublicURL, "/")
}

func (o OAuthClient) GetAuthorizationServerInternalURL() string {
	return strings.TrimSuffix(o.InternalURL, "/")
}

func (o OAuthClient) GetOIDCIssuer() string {
	return o.OIDCIssuer
}
