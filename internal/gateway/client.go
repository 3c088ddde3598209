// Package gateway performs HTTP requests as the signed-in owner. A request
// answered with 401 triggers one shared credential refresh and one retry;
// when the refresh fails the session is cleared and the caller is sent to
// the login page.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	slogctx "github.com/veqryn/slog-context"

	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

const instrumentationName = "github.com/passengerlk/owner-session/internal/gateway"

// ErrLoginRequired is returned with a nil response when the session could
// not be recovered. Callers must abandon the in-flight work.
var ErrLoginRequired = errors.New("login required")

// LoginRedirect is invoked once per unrecoverable request, after the stored
// credentials have been cleared.
type LoginRedirect func(ctx context.Context, loginURL string)

type Option func(*Client)

func WithLoginRedirect(fn LoginRedirect) Option {
	return func(c *Client) { c.onLoginRequired = fn }
}

func WithMeter(meter metric.Meter) Option {
	return func(c *Client) { c.meter = meter }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

type Client struct {
	store      credential.Store
	refresher  *Refresher
	httpClient *http.Client
	loginURL   string

	onLoginRequired LoginRedirect
	flights         singleflight.Group
	meter           metric.Meter
	tracer          trace.Tracer
	metrics         *metrics
}

var _ = http.RoundTripper(&Client{})

// NewClient returns a gateway client. httpClient must not use the returned
// client as its transport.
func NewClient(store credential.Store, refresher *Refresher, httpClient *http.Client, loginURL string, opts ...Option) (*Client, error) {
	c := &Client{
		store:      store,
		refresher:  refresher,
		httpClient: httpClient,
		loginURL:   loginURL,
		onLoginRequired: func(ctx context.Context, loginURL string) {
			slogctx.Info(ctx, "Login required", "login_url", loginURL)
		},
		meter:  otel.Meter(instrumentationName),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	m, err := newMetrics(c.meter)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	return c, nil
}

// LoginURL returns the page unrecoverable requests are sent to.
func (c *Client) LoginURL() string {
	return c.loginURL
}

// RoundTrip implements http.RoundTripper on top of Do.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Do(req)
}

// Do sends req with the stored access credential. Any response other than
// 401 is returned as is. On 401 the credentials are refreshed and the
// identical request is sent once more; that second response is final
// whatever its status. If the refresh fails Do clears the credentials,
// calls the login redirect and returns ErrLoginRequired.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx, span := c.tracer.Start(req.Context(), "gateway.Do", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	))
	defer span.End()

	body, err := replayableBody(req)
	if err != nil {
		c.metrics.fetch(ctx, outcomeError)
		span.SetStatus(codes.Error, "buffering request body")
		return nil, fmt.Errorf("buffering request body: %w", err)
	}

	resp, usedAccess, err := c.attempt(ctx, req, body)
	if err != nil {
		c.metrics.fetch(ctx, outcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "first attempt")
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		c.metrics.fetch(ctx, outcomeSuccess)
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		return resp, nil
	}

	drain(resp)
	slogctx.Debug(ctx, "Access credential rejected, refreshing", "method", req.Method, "path", req.URL.Path)

	if err := c.sharedRefresh(ctx, usedAccess); err != nil {
		if ctx.Err() != nil {
			c.metrics.fetch(ctx, outcomeError)
			return nil, fmt.Errorf("waiting for credential refresh: %w", ctx.Err())
		}

		slogctx.Warn(ctx, "Token refresh failed, redirecting to login", "error", err)
		c.logout(ctx)
		c.metrics.fetch(ctx, outcomeLoggedOut)
		span.SetStatus(codes.Error, "login required")

		return nil, ErrLoginRequired
	}

	resp, _, err = c.attempt(ctx, req, body)
	if err != nil {
		c.metrics.fetch(ctx, outcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "retry attempt")
		return nil, err
	}

	c.metrics.fetch(ctx, outcomeRetried)
	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.Bool("owner_session.retried", true),
	)

	return resp, nil
}

// attempt sends a clone of req with the access credential read from the
// store and reports the credential it used.
func (c *Client) attempt(ctx context.Context, req *http.Request, body func() (io.ReadCloser, error)) (*http.Response, string, error) {
	access, err := c.store.Read(ctx, credential.AccessTokenName)
	if err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return nil, "", fmt.Errorf("reading access credential: %w", err)
	}

	out := req.Clone(ctx)
	out.RequestURI = ""
	if body != nil {
		rc, err := body()
		if err != nil {
			return nil, "", fmt.Errorf("rewinding request body: %w", err)
		}
		out.Body = rc
		out.GetBody = body
	}

	if access != "" {
		out.Header.Set("Authorization", "Bearer "+access)
	} else {
		out.Header.Del("Authorization")
	}

	resp, err := c.httpClient.Do(out)
	if err != nil {
		return nil, access, fmt.Errorf("executing request: %w", err)
	}

	return resp, access, nil
}

// sharedRefresh collapses concurrent refreshes for the same rejected
// credential into one flight. The flight is detached from the caller's
// cancellation so that it completes for every waiter.
func (c *Client) sharedRefresh(ctx context.Context, rejectedAccess string) error {
	flightCtx := context.WithoutCancel(ctx)

	// only the caller whose function runs leads the flight
	led := false
	ch := c.flights.DoChan(rejectedAccess, func() (any, error) {
		led = true

		current, err := c.store.Read(flightCtx, credential.AccessTokenName)
		if err == nil && current != "" && current != rejectedAccess {
			// an earlier flight already rotated the pair
			c.metrics.refresh(flightCtx, resultReused)
			return nil, nil
		}

		_, err = c.refresher.Refresh(flightCtx)
		c.metrics.refresh(flightCtx, refreshResult(err))

		return nil, err
	})

	select {
	case res := <-ch:
		if res.Shared && !led {
			c.metrics.joined(ctx)
		}

		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) logout(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if err := c.store.ClearPair(ctx); err != nil {
		slogctx.Error(ctx, "Failed to clear stale credentials", "error", err)
	}

	c.onLoginRequired(ctx, c.loginURL)
}

func refreshResult(err error) string {
	switch {
	case err == nil:
		return resultRefreshed
	case errors.Is(err, serviceerr.ErrNoRefreshCredential):
		return resultNoCredential
	case errors.Is(err, serviceerr.ErrRefreshRejected):
		return resultRejected
	default:
		return resultNetwork
	}
}

// replayableBody returns a function yielding a fresh copy of the request
// body, or nil when there is none. The original body is consumed.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}

	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
