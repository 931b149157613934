package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v74/github"
	"github.com/sirupsen/logrus"

	"github.com/urizennnn/reposcraper/ratelimit"
)

// Gate runs every GitHub call inside the shared limiter and turns failing
// statuses into *RemoteRequestError. It never retries.
type Gate struct {
	client  *github.Client
	limiter *ratelimit.Limiter
	quota   *ratelimit.Quota
	timeout time.Duration
	log     logrus.FieldLogger
}

type GateOption func(*Gate)

// WithQuota waits on q before every call.
func WithQuota(q *ratelimit.Quota) GateOption {
	return func(g *Gate) { g.quota = q }
}

// WithRequestTimeout bounds a single call, excluding time spent in the limiter.
func WithRequestTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.timeout = d }
}

func WithGateLogger(l logrus.FieldLogger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGate(client *github.Client, limiter *ratelimit.Limiter, opts ...GateOption) *Gate {
	g := &Gate{
		client:  client,
		limiter: limiter,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends method to endpoint (relative to the client's base URL) with params
// as the query string and decodes the JSON body into v.
func (g *Gate) Do(ctx context.Context, method, endpoint string, params url.Values, v any) (*github.Response, error) {
	if err := g.quota.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quota wait for %s: %w", endpoint, err)
	}

	var resp *github.Response
	err := g.limiter.Throttle(ctx, func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		target := endpoint
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
		req, err := g.client.NewRequest(method, target, nil)
		if err != nil {
			return fmt.Errorf("build request %s %s: %w", method, endpoint, err)
		}

		g.log.WithFields(logrus.Fields{"method": method, "endpoint": endpoint}).Debug("github: making request")
		var doErr error
		resp, doErr = g.client.Do(ctx, req, v)
		if resp != nil {
			g.log.WithFields(logrus.Fields{
				"method":   method,
				"endpoint": endpoint,
				"status":   resp.StatusCode,
			}).Debug("github: received response")

			if resp.StatusCode >= http.StatusBadRequest {
				return &RemoteRequestError{
					Method:     method,
					Endpoint:   endpoint,
					StatusCode: resp.StatusCode,
					Err:        doErr,
				}
			}
		}
		if doErr != nil && !nonFailureStatus(resp, doErr) {
			return fmt.Errorf("%s %s: %w", method, endpoint, doErr)
		}
		return nil
	})
	return resp, err
}

// nonFailureStatus reports whether doErr only reflects a status below 400
// that go-github refuses to decode, such as 202 Accepted or 304 Not Modified.
func nonFailureStatus(resp *github.Response, doErr error) bool {
	if resp == nil || resp.StatusCode >= http.StatusBadRequest {
		return false
	}
	var (
		accepted *github.AcceptedError
		errResp  *github.ErrorResponse
		redirect *github.RedirectionError
	)
	return errors.As(doErr, &accepted) || errors.As(doErr, &errResp) || errors.As(doErr, &redirect)
}
