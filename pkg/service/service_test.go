package service

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/suite"
)

func setupTest(t *testing.T) *logrus.Logger {
	t.Helper()

	// Each subtest builds a fresh service, so metrics need a fresh
	// registry to avoid duplicate registration panics.
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func testConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{
		Channels:           []string{"simulated"},
		ReportDir:          t.TempDir(),
		ScreenshotDir:      t.TempDir(),
		ResponseWait:       200 * time.Millisecond,
		HealthCheckAddress: "127.0.0.1:19191",
		MetricsAddress:     "127.0.0.1:19091",
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("Start_And_Stop", func(t *testing.T) {
		log := setupTest(t)

		svc, err := NewService(ctx, log, testConfig(t))
		require.NoError(t, err)

		require.NoError(t, svc.Start(ctx))

		client := &http.Client{Timeout: 5 * time.Second}

		// Wait for the health endpoint to come up.
		require.Eventually(t, func() bool {
			resp, getErr := client.Get("http://127.0.0.1:19191/healthz")
			if getErr != nil {
				return false
			}
			defer resp.Body.Close()

			return resp.StatusCode == http.StatusOK
		}, 5*time.Second, 100*time.Millisecond)

		// Verify the metrics endpoint is working.
		resp, err := client.Get("http://127.0.0.1:19091/metrics")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		require.NoError(t, svc.Stop(ctx))
	})

	t.Run("RunSuite_Writes_Reports", func(t *testing.T) {
		log := setupTest(t)
		cfg := testConfig(t)

		svc, err := NewService(ctx, log, cfg)
		require.NoError(t, err)

		smoke, ok := suite.ByName("smoke")
		require.True(t, ok)

		sum, err := svc.RunSuite(ctx, smoke)
		require.NoError(t, err)

		assert.Equal(t, 2, sum.Total)
		assert.Equal(t, 2, sum.Passed)
		assert.False(t, sum.HasFailures())

		jsonFiles, err := filepath.Glob(filepath.Join(cfg.ReportDir, "test_report_*.json"))
		require.NoError(t, err)
		assert.Len(t, jsonFiles, 1)

		htmlFiles, err := filepath.Glob(filepath.Join(cfg.ReportDir, "test_report_*.html"))
		require.NoError(t, err)
		assert.Len(t, htmlFiles, 1)

		logFiles, err := filepath.Glob(filepath.Join(cfg.ReportDir, "test_log_*.log"))
		require.NoError(t, err)
		require.Len(t, logFiles, 1)

		logData, err := os.ReadFile(logFiles[0])
		require.NoError(t, err)
		assert.Contains(t, string(logData), "smoke-start-command")
	})

	t.Run("RunSuite_Counts_Failures", func(t *testing.T) {
		log := setupTest(t)

		svc, err := NewService(ctx, log, testConfig(t))
		require.NoError(t, err)

		st := suite.Suite{
			Name: "failing",
			Probes: []probe.Probe{
				{Name: "echo-mismatch", Message: "ping", Keywords: []string{"definitely-not-in-the-echo"}},
				{Name: "echo-any", Message: "ping"},
			},
		}

		sum, err := svc.RunSuite(ctx, st)
		require.NoError(t, err)

		assert.Equal(t, 2, sum.Total)
		assert.Equal(t, 1, sum.Passed)
		assert.Equal(t, 1, sum.Failed)
		assert.True(t, sum.HasFailures())
	})

	t.Run("RunSuite_Skips_Unconfigured_Channels", func(t *testing.T) {
		log := setupTest(t)

		svc, err := NewService(ctx, log, testConfig(t))
		require.NoError(t, err)

		st := suite.Suite{
			Name: "mixed",
			Probes: []probe.Probe{
				{Name: "sim-ping", Message: "ping"},
				{Name: "api-only", Message: "/start", Channel: channel.KindTelegramAPI},
			},
		}

		sum, err := svc.RunSuite(ctx, st)
		require.NoError(t, err)

		// The pinned probe has no matching channel and is skipped.
		assert.Equal(t, 1, sum.Total)
	})

	t.Run("RunSuite_Concurrent", func(t *testing.T) {
		log := setupTest(t)
		cfg := testConfig(t)
		cfg.Concurrency = 4

		svc, err := NewService(ctx, log, cfg)
		require.NoError(t, err)

		all := suite.All()

		sum, err := svc.RunSuite(ctx, all)
		require.NoError(t, err)

		assert.Equal(t, len(all.Probes), sum.Total)
		assert.Equal(t, sum.Total, sum.Passed+sum.Failed+sum.Errors)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "simulated needs nothing", cfg: Config{Channels: []string{"simulated"}}},
		{name: "empty config defaults to simulated", cfg: Config{}},
		{name: "telegram api needs token", cfg: Config{Channels: []string{"telegram-api"}}, wantErr: "TELEGRAM_BOT_TOKEN"},
		{name: "telegram api needs chat id", cfg: Config{Channels: []string{"telegram-api"}, TelegramToken: "123:abc"}, wantErr: "TELEGRAM_TEST_CHAT_ID"},
		{name: "telegram web needs username", cfg: Config{Channels: []string{"telegram-web"}}, wantErr: "TELEGRAM_BOT_USERNAME"},
		{name: "discord needs token", cfg: Config{Channels: []string{"discord"}}, wantErr: "DISCORD_BOT_TOKEN"},
		{name: "discord needs channel id", cfg: Config{Channels: []string{"discord"}, DiscordToken: "tok"}, wantErr: "DISCORD_CHANNEL_ID"},
		{name: "s3 needs access key", cfg: Config{S3Bucket: "reports"}, wantErr: "AWS_ACCESS_KEY_ID"},
		{name: "s3 needs secret key", cfg: Config{S3Bucket: "reports", AccessKeyID: "ak"}, wantErr: "AWS_SECRET_ACCESS_KEY"},
		{name: "unknown channel kind", cfg: Config{Channels: []string{"smoke-signals"}}, wantErr: "unknown channel kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_ChannelKinds(t *testing.T) {
	t.Run("parses and dedups", func(t *testing.T) {
		cfg := Config{Channels: []string{" Telegram-API ", "simulated", "telegram-api"}}

		kinds, err := cfg.ChannelKinds()
		require.NoError(t, err)
		assert.Equal(t, []channel.Kind{channel.KindTelegramAPI, channel.KindSimulated}, kinds)
	})

	t.Run("defaults to simulated", func(t *testing.T) {
		kinds, err := (&Config{}).ChannelKinds()
		require.NoError(t, err)
		assert.Equal(t, []channel.Kind{channel.KindSimulated}, kinds)
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		_, err := (&Config{Channels: []string{"carrier-pigeon"}}).ChannelKinds()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "carrier-pigeon")
	})
}

func TestResolveSuite(t *testing.T) {
	t.Run("builtin by name", func(t *testing.T) {
		st, err := ResolveSuite("smoke")
		require.NoError(t, err)
		assert.Equal(t, "smoke", st.Name)
		assert.NotEmpty(t, st.Probes)
	})

	t.Run("empty means all", func(t *testing.T) {
		st, err := ResolveSuite("")
		require.NoError(t, err)
		assert.Equal(t, "all", st.Name)
		assert.NotEmpty(t, st.Probes)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		data := `name: custom
probes:
  - name: custom-ping
    message: ping
    keywords: [pong]
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		st, err := ResolveSuite(path)
		require.NoError(t, err)
		assert.Equal(t, "custom", st.Name)
		require.Len(t, st.Probes, 1)
		assert.Equal(t, "custom-ping", st.Probes[0].Name)
	})

	t.Run("unknown name lists builtins", func(t *testing.T) {
		_, err := ResolveSuite("nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown suite")
		assert.Contains(t, err.Error(), "smoke")
	})
}
