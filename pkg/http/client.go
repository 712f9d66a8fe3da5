package http

import (
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// botTokenPattern matches the token segment of Bot API URLs so tokens
// never reach logs or metric labels.
var botTokenPattern = regexp.MustCompile(`/bot[^/]+`)

// RedactURL strips bot tokens out of a URL.
func RedactURL(url string) string {
	return botTokenPattern.ReplaceAllString(url, "/bot<redacted>")
}

// observer accounts for completed requests: duration, error
// classification and flood-control state. Both instrumentation
// flavors below share it.
type observer struct {
	metrics *Metrics
	log     *logrus.Logger
}

func (o observer) observe(service, operation string, req *http.Request, resp *http.Response, err error, started time.Time) {
	duration := time.Since(started).Seconds()
	o.metrics.apiRequestDuration.WithLabelValues(service, operation).Observe(duration)

	fields := logrus.Fields{
		"service":   service,
		"operation": operation,
		"url":       RedactURL(req.URL.String()),
		"method":    req.Method,
		"duration":  duration,
	}

	if err != nil {
		o.log.WithFields(fields).WithError(err).Error("Bot API request failed")
		o.metrics.apiRequestsErrors.WithLabelValues(service, operation, "network_error").Inc()

		return
	}

	if resp.StatusCode >= 400 {
		fields["status_code"] = resp.StatusCode
		o.log.WithFields(fields).Error("Bot API returned an error status")
		o.metrics.apiRequestsErrors.WithLabelValues(service, operation, fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
	}

	// Bot APIs signal flood control via a Retry-After header on 429s.
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, parseErr := strconv.ParseFloat(retryAfter, 64); parseErr == nil {
			o.metrics.apiFloodWait.WithLabelValues(service).Set(seconds)
		}
	}
}

// ClientWrapper instruments an HTTP client for callers that label each
// request themselves.
type ClientWrapper struct {
	client *http.Client
	obs    observer
}

// NewClientWrapper creates a new HTTP client wrapper with metrics.
func NewClientWrapper(client *http.Client, metrics *Metrics, log *logrus.Logger) *ClientWrapper {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &ClientWrapper{
		client: client,
		obs:    observer{metrics: metrics, log: log},
	}
}

// Do executes an HTTP request with metrics tracking.
func (c *ClientWrapper) Do(req *http.Request, service, operation string) (*http.Response, error) {
	started := time.Now()
	c.obs.metrics.apiRequestsTotal.WithLabelValues(service, operation).Inc()

	resp, err := c.client.Do(req)
	c.obs.observe(service, operation, req, resp, err, started)

	return resp, err
}

// Get performs a GET request with metrics.
func (c *ClientWrapper) Get(url, service, operation string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	return c.Do(req, service, operation)
}

// Client returns the underlying HTTP client.
func (c *ClientWrapper) Client() *http.Client {
	return c.client
}

// MetricsRoundTripper instruments a transport, deriving the operation
// label from the request path so a channel's stock client can be
// wrapped without touching call sites.
type MetricsRoundTripper struct {
	next    http.RoundTripper
	obs     observer
	service string
}

// RoundTripperOption is a function that configures a MetricsRoundTripper.
type RoundTripperOption func(*MetricsRoundTripper)

// WithService sets the service name for the MetricsRoundTripper.
func WithService(service string) RoundTripperOption {
	return func(t *MetricsRoundTripper) {
		t.service = service
	}
}

// NewMetricsRoundTripper creates a new metrics-collecting round tripper.
func NewMetricsRoundTripper(next http.RoundTripper, metrics *Metrics, log *logrus.Logger, opts ...RoundTripperOption) *MetricsRoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	t := &MetricsRoundTripper{
		next:    next,
		obs:     observer{metrics: metrics, log: log},
		service: "telegram",
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// RoundTrip implements the http.RoundTripper interface.
func (t *MetricsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	// Bot API paths look like /bot<token>/<method>, so the last segment
	// is the only part safe to use as a label.
	operation := path.Base(req.URL.Path)

	t.obs.metrics.apiRequestsTotal.WithLabelValues(t.service, operation).Inc()

	resp, err := t.next.RoundTrip(req)
	t.obs.observe(t.service, operation, req, resp, err, started)

	return resp, err
}
