package upstream

import (
	"net/http"
	"net/url"
	"strings"

	ory "github.com/ory/client-go"
	"github.com/pkg/errors"
)

const userAgent = "go-auth-broker"

// NewOryClient returns an SDK client whose only server is baseURL. A nil
// httpClient uses http.DefaultClient.
func NewOryClient(baseURL string, httpClient *http.Client) (*ory.APIClient, error) {
	if baseURL == "" {
		return nil, errors.New("[upstream NewOryClient] base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[upstream NewOryClient] invalid base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[upstream NewOryClient] base url %q must be absolute", baseURL)
	}

	cfg := ory.NewConfiguration()
	cfg.Servers = ory.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	cfg.HTTPClient = httpClient
	cfg.UserAgent = userAgent
	return ory.NewAPIClient(cfg), nil
}
