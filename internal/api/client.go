// Package api is the HTTP adapter for the marketplace API and the object
// storage it hands out write URLs for.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/metrics"
)

// Credentials supplies the bearer credential for authenticated calls. It is
// read once per request.
type Credentials interface {
	Credential() (string, bool)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Credentials Credentials
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	HTTPClient  *http.Client  // optional; Timeout is ignored when set
	RetryWait   time.Duration // initial backoff interval; default 300ms
}

// Client talks to the marketplace API.
type Client struct {
	base       *url.URL
	http       *http.Client
	creds      Credentials
	log        *zap.Logger
	metrics    *metrics.Metrics
	maxRetries int
	retryWait  time.Duration
}

// New returns a Client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q: scheme and host required", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wait := opts.RetryWait
	if wait <= 0 {
		wait = 300 * time.Millisecond
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		base:       base,
		http:       hc,
		creds:      opts.Credentials,
		log:        log,
		metrics:    opts.Metrics,
		maxRetries: maxRetries,
		retryWait:  wait,
	}, nil
}

// call describes one logical API request.
type call struct {
	endpoint string // short name used in logs, metrics and errors
	method   string
	path     string
	query    url.Values
	body     any
	auth     bool
	retry    bool // only for idempotent requests
}

// do executes c against the API and returns the 2xx response body.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")

	if cl.auth {
		cred, ok := "", false
		if c.creds != nil {
			cred, ok = c.creds.Credential()
		}
		if !ok || cred == "" {
			return nil, ErrNotAuthenticated
		}
		headers.Set("Authorization", "Bearer "+cred)
	}

	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", cl.endpoint, err)
		}
		headers.Set("Content-Type", "application/json")
	}

	target := c.base.JoinPath(cl.path)
	if len(cl.query) > 0 {
		target.RawQuery = cl.query.Encode()
	}
	return c.send(ctx, cl.endpoint, cl.method, target.String(), headers, payload, cl.retry)
}

// send performs the HTTP exchange, retrying transport errors and 5xx
// responses with exponential backoff when retry is set. 4xx responses are
// never retried.
func (c *Client) send(ctx context.Context, endpoint, method, target string, headers http.Header, payload []byte, retry bool) ([]byte, error) {
	var out []byte
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: build request: %w", endpoint, err))
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", "bazaar-cli")
		injectTraceContext(req)

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.metrics.ObserveRequest(endpoint, 0, time.Since(start))
			c.log.Debug("request failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return wrapRetry(fmt.Errorf("%s: %w", endpoint, err), retry)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(start))

		c.log.Debug("request completed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)))

		if readErr != nil {
			return wrapRetry(fmt.Errorf("%s: read response: %w", endpoint, readErr), retry)
		}
		if resp.StatusCode >= 500 {
			return wrapRetry(newError(endpoint, resp.StatusCode, body), retry)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(newError(endpoint, resp.StatusCode, body))
		}
		out = body
		return nil
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(0)
	if retry {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.retryWait
		exp.MaxElapsedTime = 0
		policy = exp
	}
	maxRetries := uint64(c.maxRetries)
	if !retry {
		maxRetries = 0
	}
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", endpoint, err)
		}
		return nil, err
	}
	return out, nil
}

func wrapRetry(err error, retry bool) error {
	if retry {
		return err
	}
	return backoff.Permanent(err)
}

func bodyReader(payload []byte) io.Reader {
	if payload == nil {
		return nil
	}
	return bytes.NewReader(payload)
}

// injectTraceContext propagates the caller's span, if any, to the API.
func injectTraceContext(req *http.Request) {
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
