package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClientTestMetrics(t *testing.T) *Metrics {
	t.Helper()

	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	return NewMetrics("test")
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t,
		"https://api.telegram.org/bot<redacted>/sendMessage",
		RedactURL("https://api.telegram.org/bot123456:AAH-secret/sendMessage"),
	)

	// URLs without a token segment pass through untouched.
	assert.Equal(t, "https://example.com/healthz", RedactURL("https://example.com/healthz"))
}

func TestMetricsRoundTripper(t *testing.T) {
	t.Run("counts requests by operation", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := &http.Client{
			Transport: NewMetricsRoundTripper(http.DefaultTransport, metrics, discardLogger()),
		}

		resp, err := client.Get(srv.URL + "/bot123:secret/sendMessage")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.apiRequestsTotal.WithLabelValues("telegram", "sendMessage")))
	})

	t.Run("error statuses count as errors but still return the response", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := &http.Client{
			Transport: NewMetricsRoundTripper(http.DefaultTransport, metrics, discardLogger()),
		}

		resp, err := client.Get(srv.URL + "/bot123:secret/getUpdates")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.apiRequestsErrors.WithLabelValues("telegram", "getUpdates", "http_500")))
	})

	t.Run("records flood control waits", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "35")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := &http.Client{
			Transport: NewMetricsRoundTripper(http.DefaultTransport, metrics, discardLogger()),
		}

		resp, err := client.Get(srv.URL + "/bot123:secret/sendMessage")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, float64(35),
			testutil.ToFloat64(metrics.apiFloodWait.WithLabelValues("telegram")))
	})

	t.Run("network failures count as network_error", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // Closed on purpose, every request must fail.

		client := &http.Client{
			Transport: NewMetricsRoundTripper(http.DefaultTransport, metrics, discardLogger()),
		}

		_, err := client.Get(srv.URL + "/bot123:secret/sendMessage") //nolint:bodyclose // request fails
		require.Error(t, err)

		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.apiRequestsErrors.WithLabelValues("telegram", "sendMessage", "network_error")))
	})

	t.Run("service label is configurable", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := &http.Client{
			Transport: NewMetricsRoundTripper(http.DefaultTransport, metrics, discardLogger(), WithService("discord")),
		}

		resp, err := client.Get(srv.URL + "/channels/42/messages")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.apiRequestsTotal.WithLabelValues("discord", "messages")))
	})
}

func TestClientWrapper(t *testing.T) {
	t.Run("labels come from the caller", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		wrapper := NewClientWrapper(srv.Client(), metrics, discardLogger())

		resp, err := wrapper.Get(srv.URL+"/anything", "telegram", "getMe")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, float64(1),
			testutil.ToFloat64(metrics.apiRequestsTotal.WithLabelValues("telegram", "getMe")))
	})

	t.Run("nil client falls back to a default", func(t *testing.T) {
		metrics := newClientTestMetrics(t)

		wrapper := NewClientWrapper(nil, metrics, discardLogger())

		assert.NotNil(t, wrapper.Client())
	})
}
