package hydra

import (
	"context"
	"net/http"
	"time"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
	"github.com/jrsteele09/go-auth-broker/internal/upstream"
	ory "github.com/ory/client-go"
	"github.com/pkg/errors"
)

const serviceName = "hydra"

// Client calls the authorization server's admin API for the login and
// consent handshakes.
type Client struct {
	api    *ory.APIClient
	caller *upstream.Caller
}

func New(adminURL string, httpClient *http.Client, timeout time.Duration, m *metrics.Metrics) (*Client, error) {
	api, err := upstream.NewOryClient(adminURL, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "[hydra New] admin api")
	}
	return &Client{
		api: api,
		caller: &upstream.Caller{
			Service: serviceName,
			Timeout: timeout,
			Metrics: m,
		},
	}, nil
}

// GetLoginRequest fetches the pending login request for challenge.
func (c *Client) GetLoginRequest(ctx context.Context, challenge string) (*LoginRequest, error) {
	var req *ory.OAuth2LoginRequest
	err := c.caller.Call(ctx, "get-login-request", func(ctx context.Context) (resp *http.Response, err error) {
		req, resp, err = c.api.OAuth2API.GetOAuth2LoginRequest(ctx).LoginChallenge(challenge).Execute()
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	client := req.GetClient()
	return &LoginRequest{
		Challenge:      req.GetChallenge(),
		Skip:           req.GetSkip(),
		Subject:        req.GetSubject(),
		RequestURL:     req.GetRequestUrl(),
		RequestedScope: req.GetRequestedScope(),
		Client:         clientFromModel(&client),
	}, nil
}

// AcceptLogin accepts the login request and returns where to send the browser.
func (c *Client) AcceptLogin(ctx context.Context, challenge string, accept AcceptLoginRequest) (string, error) {
	body := ory.NewAcceptOAuth2LoginRequest(accept.Subject)
	body.SetRemember(accept.Remember)
	body.SetRememberFor(accept.RememberFor)
	if accept.ACR != "" {
		body.SetAcr(accept.ACR)
	}

	var redirect *ory.OAuth2RedirectTo
	err := c.caller.Call(ctx, "accept-login", func(ctx context.Context) (resp *http.Response, err error) {
		redirect, resp, err = c.api.OAuth2API.AcceptOAuth2LoginRequest(ctx).
			LoginChallenge(challenge).
			AcceptOAuth2LoginRequest(*body).
			Execute()
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return redirectTarget("accept-login", redirect)
}

// GetConsentRequest fetches the pending consent request for challenge.
func (c *Client) GetConsentRequest(ctx context.Context, challenge string) (*ConsentRequest, error) {
	var req *ory.OAuth2ConsentRequest
	err := c.caller.Call(ctx, "get-consent-request", func(ctx context.Context) (resp *http.Response, err error) {
		req, resp, err = c.api.OAuth2API.GetOAuth2ConsentRequest(ctx).ConsentChallenge(challenge).Execute()
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	client := req.GetClient()
	return &ConsentRequest{
		Challenge:                    req.GetChallenge(),
		Skip:                         req.GetSkip(),
		Subject:                      req.GetSubject(),
		RequestedScope:               req.GetRequestedScope(),
		RequestedAccessTokenAudience: req.GetRequestedAccessTokenAudience(),
		Client:                       clientFromModel(&client),
	}, nil
}

// AcceptConsent accepts the consent request and returns where to send the browser.
func (c *Client) AcceptConsent(ctx context.Context, challenge string, accept AcceptConsentRequest) (string, error) {
	session := ory.NewAcceptOAuth2ConsentRequestSession()
	session.SetAccessToken(accept.Session.AccessToken)
	session.SetIdToken(accept.Session.IDToken)

	body := ory.NewAcceptOAuth2ConsentRequest()
	body.SetGrantScope(accept.GrantScope)
	body.SetGrantAccessTokenAudience(accept.GrantAccessTokenAudience)
	body.SetRemember(accept.Remember)
	body.SetRememberFor(accept.RememberFor)
	body.SetSession(*session)

	var redirect *ory.OAuth2RedirectTo
	err := c.caller.Call(ctx, "accept-consent", func(ctx context.Context) (resp *http.Response, err error) {
		redirect, resp, err = c.api.OAuth2API.AcceptOAuth2ConsentRequest(ctx).
			ConsentChallenge(challenge).
			AcceptOAuth2ConsentRequest(*body).
			Execute()
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return redirectTarget("accept-consent", redirect)
}

func clientFromModel(client *ory.OAuth2Client) OAuth2Client {
	return OAuth2Client{
		ClientID:   client.GetClientId(),
		ClientName: client.GetClientName(),
	}
}

func redirectTarget(operation string, redirect *ory.OAuth2RedirectTo) (string, error) {
	if redirect == nil || redirect.GetRedirectTo() == "" {
		return "", &brokererrors.UpstreamError{
			Service:    serviceName,
			Operation:  operation,
			StatusCode: http.StatusOK,
			Detail:     "response carried no redirect_to",
		}
	}
	return redirect.GetRedirectTo(), nil
}
