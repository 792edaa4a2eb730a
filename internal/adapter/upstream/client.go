package upstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

// UserAgent identifies the service to the status page operators.
const UserAgent = "garage-occupancy-service/1.0 (+https://github.com/couchcryptid/garage-occupancy-service)"

// Client fetches the garage status page.
//
// The status page is served with a certificate that fails chain and hostname
// validation, so the client skips verification. The relaxation lives on this
// client's own transport only and redirects to any other host are refused.
type Client struct {
	url     string
	http    *resty.Client
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a status page client for rawURL. The URL must be absolute.
// A nil clock uses real time.
func NewClient(rawURL string, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("upstream url %q has no host", rawURL)
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	rc := resty.New().
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}). //nolint:gosec // upstream serves an invalid certificate
		SetRedirectPolicy(resty.DomainCheckRedirectPolicy(u.Hostname())).
		SetHeader("User-Agent", UserAgent).
		SetHeader("Accept", "text/html").
		SetLogger(restyLogger{logger})

	return &Client{
		url:     u.String(),
		http:    rc,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// URL returns the status page address.
func (c *Client) URL() string {
	return c.url
}

// Fetch issues a single GET for the status page and returns the body.
// Network errors and non-2xx responses are returned as errors; there are no
// retries and no deadline beyond ctx.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	start := c.clock.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.url)
	elapsed := c.clock.Since(start)
	c.metrics.UpstreamDuration.Observe(elapsed.Seconds())
	if err != nil {
		return "", fmt.Errorf("status page request: %w", err)
	}

	c.logger.DebugContext(ctx, "status page fetched",
		"url", c.url,
		"status", resp.StatusCode(),
		"bytes", len(resp.Body()),
		"duration", elapsed,
	)

	if !resp.IsSuccess() {
		return "", fmt.Errorf("status page: unexpected status %d", resp.StatusCode())
	}
	return string(resp.Body()), nil
}

// restyLogger routes resty's internal warnings through slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) {
	r.l.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.l.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.l.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
