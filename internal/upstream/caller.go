package upstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"github.com/jrsteele09/go-auth-broker/internal/metrics"
)

// Caller bounds the SDK requests made against one upstream service with a
// timeout per call. It never retries.
type Caller struct {
	Service string
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// RequestFunc issues exactly one request with ctx and returns the raw
// response next to the SDK error. The response may be nil on transport
// failures.
type RequestFunc func(ctx context.Context) (*http.Response, error)

// responseBody is implemented by the SDK error type, which keeps the payload
// of a non 2xx or undecodable response.
type responseBody interface {
	Body() []byte
}

// Call runs do under the per call timeout. Failures are returned as
// *errors.UpstreamError, except when ctx itself was cancelled, which yields
// ErrRequestAborted.
func (c *Caller) Call(ctx context.Context, operation string, do RequestFunc) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	start := time.Now()
	resp, err := do(callCtx)
	c.Metrics.ObserveUpstream(c.Service, operation, start)
	if err == nil {
		return nil
	}
	return c.classifyResponse(ctx, operation, resp, err)
}

func (c *Caller) classifyResponse(parent context.Context, operation string, resp *http.Response, err error) error {
	var payload responseBody
	if parent.Err() != nil || resp == nil || !brokererrors.As(err, &payload) {
		return Classify(parent, c.Service, operation, err)
	}

	body := payload.Body()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &brokererrors.UpstreamError{
			Service:    c.Service,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Detail:     ParseErrorDetail(body).Text(),
			Body:       body,
		}
	}
	return &brokererrors.UpstreamError{
		Service:    c.Service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Detail:     "malformed response",
		Body:       body,
		Err:        err,
	}
}

func (c *Caller) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.Timeout
}

// Classify converts a transport level failure into the broker's taxonomy.
// parent is the inbound request context: if it is done the caller went away
// and the result must not be applied.
func Classify(parent context.Context, service, operation string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", brokererrors.ErrRequestAborted, parent.Err())
	}
	return &brokererrors.UpstreamError{
		Service:   service,
		Operation: operation,
		Timeout:   IsTimeout(err),
		Err:       err,
	}
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	if brokererrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return brokererrors.As(err, &netErr) && netErr.Timeout()
}
