package kratos

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

const (
	serviceName = "kratos"

	methodPassword = "password"
)

// Client talks to the identity provider's public self-service API.
type Client struct {
	api    *ory.APIClient
	caller *upstream.Caller
}

func New(baseURL string, httpClient *http.Client, timeout time.Duration, m *metrics.Metrics) (*Client, error) {
	api, err := upstream.NewOryClient(baseURL, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "[kratos New] identity provider")
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

// LoginFlow is a self-service login flow created for API clients.
type LoginFlow struct {
	ID        string
	ExpiresAt time.Time
}

// CreateLoginFlow starts an API login flow.
func (c *Client) CreateLoginFlow(ctx context.Context) (*LoginFlow, error) {
	var flow *ory.LoginFlow
	err := c.caller.Call(ctx, "create-login-flow", func(ctx context.Context) (resp *http.Response, err error) {
		flow, resp, err = c.api.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if flow == nil || flow.GetId() == "" {
		return nil, noContent("create-login-flow", "login flow response carried no id")
	}
	return &LoginFlow{ID: flow.GetId(), ExpiresAt: flow.GetExpiresAt()}, nil
}

// SubmitPassword completes flowID with the password method and returns the
// verified identity. Wrong credentials come back as a rejected
// *errors.UpstreamError whose Detail holds the provider's message.
func (c *Client) SubmitPassword(ctx context.Context, flowID, identifier, password string) (*Identity, error) {
	body := ory.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&ory.UpdateLoginFlowWithPasswordMethod{
		Method:     methodPassword,
		Identifier: identifier,
		Password:   password,
	})

	var result *ory.SuccessfulNativeLogin
	err := c.caller.Call(ctx, "submit-password", func(ctx context.Context) (resp *http.Response, err error) {
		result, resp, err = c.api.FrontendAPI.UpdateLoginFlow(ctx).
			Flow(flowID).
			UpdateLoginFlowBody(body).
			Execute()
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	identity := identityFromLogin(result)
	if identity == nil {
		return nil, noContent("submit-password", "login response carried no identity")
	}
	return identity, nil
}

// Login runs the whole password login: create a flow, then submit to it.
func (c *Client) Login(ctx context.Context, identifier, password string) (*Identity, error) {
	flow, err := c.CreateLoginFlow(ctx)
	if err != nil {
		return nil, err
	}
	return c.SubmitPassword(ctx, flow.ID, identifier, password)
}

func identityFromLogin(result *ory.SuccessfulNativeLogin) *Identity {
	if result == nil {
		return nil
	}
	session := result.GetSession()
	if !session.HasIdentity() {
		return nil
	}
	identity := session.GetIdentity()
	if identity.GetId() == "" {
		return nil
	}
	traits, _ := identity.GetTraits().(map[string]any)
	return &Identity{ID: identity.GetId(), Traits: traits}
}

func noContent(operation, detail string) error {
	return &brokererrors.UpstreamError{
		Service:    serviceName,
		Operation:  operation,
		StatusCode: http.StatusOK,
		Detail:     detail,
	}
}
