package probe

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel/mock"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/logger"
)

func newTestExecutor(t *testing.T, ch channel.Channel) *Executor {
	t.Helper()

	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := Config{
		Timeout:       2 * time.Second,
		ResponseWait:  150 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		ScreenshotDir: t.TempDir(),
	}

	return NewExecutor(log, logger.NewSessionLogger("test-session"), ch, cfg, NewMetrics("test"))
}

func TestExecutor_Run(t *testing.T) {
	t.Run("passes when reply contains a keyword", func(t *testing.T) {
		exec := newTestExecutor(t, channel.NewSimulated())

		result := exec.Run(context.Background(), Probe{
			Name:     "echo-ping",
			Message:  "ping",
			Keywords: []string{"you said"},
		})

		assert.Equal(t, StatusPassed, result.Status)
		assert.Equal(t, "echo-ping", result.TestName)
		assert.Empty(t, result.ErrorMessage)
		assert.Equal(t, "You said: ping", result.Details["api_response"])
		assert.False(t, result.Timestamp.IsZero())
		assert.Greater(t, result.ExecutionTime, time.Duration(0))
	})

	t.Run("passes on any reply when no keywords are set", func(t *testing.T) {
		exec := newTestExecutor(t, channel.NewSimulated())

		result := exec.Run(context.Background(), Probe{
			Name:    "echo-any",
			Message: "anything at all",
		})

		assert.Equal(t, StatusPassed, result.Status)
	})

	t.Run("fails when keywords are missing from the reply", func(t *testing.T) {
		exec := newTestExecutor(t, channel.NewSimulated())

		result := exec.Run(context.Background(), Probe{
			Name:     "echo-mismatch",
			Message:  "ping",
			Keywords: []string{"pong"},
		})

		assert.Equal(t, StatusFailed, result.Status)
		assert.Contains(t, result.ErrorMessage, "pong")
		assert.Equal(t, "You said: ping", result.Details["api_response"])
	})

	t.Run("match all requires every keyword", func(t *testing.T) {
		exec := newTestExecutor(t, channel.NewSimulated())

		result := exec.Run(context.Background(), Probe{
			Name:     "echo-strict",
			Message:  "ping",
			Keywords: []string{"you said", "zebra"},
			MatchAll: true,
		})

		assert.Equal(t, StatusFailed, result.Status)
		assert.Contains(t, result.ErrorMessage, "zebra")
		assert.NotContains(t, result.ErrorMessage, "you said")
	})

	t.Run("fails when the bot stays silent", func(t *testing.T) {
		sim := channel.NewSimulated()
		sim.Mute(true)

		exec := newTestExecutor(t, sim)

		result := exec.Run(context.Background(), Probe{
			Name:    "echo-silence",
			Message: "ping",
		})

		assert.Equal(t, StatusFailed, result.Status)
		assert.Contains(t, result.ErrorMessage, "no reply from bot")
		assert.Empty(t, result.ScreenshotPath)
	})

	t.Run("errors when send fails", func(t *testing.T) {
		sim := channel.NewSimulated()
		sim.FailSends(fmt.Errorf("connection reset"))

		exec := newTestExecutor(t, sim)

		result := exec.Run(context.Background(), Probe{
			Name:    "echo-transport",
			Message: "ping",
		})

		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.ErrorMessage, "failed to send message")
		assert.Contains(t, result.ErrorMessage, "connection reset")
	})

	t.Run("errors when reading the reply fails", func(t *testing.T) {
		sim := channel.NewSimulated()
		sim.FailReplies(fmt.Errorf("poll exploded"))

		exec := newTestExecutor(t, sim)

		result := exec.Run(context.Background(), Probe{
			Name:    "echo-poll",
			Message: "ping",
		})

		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.ErrorMessage, "failed to read reply")
	})

	t.Run("errors when the probe times out", func(t *testing.T) {
		sim := channel.NewSimulated()
		sim.Mute(true)

		exec := newTestExecutor(t, sim)

		// The probe deadline is shorter than the response window, so the
		// context expires while we are still polling.
		result := exec.Run(context.Background(), Probe{
			Name:    "echo-deadline",
			Message: "ping",
			Timeout: 50 * time.Millisecond,
		})

		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.ErrorMessage, "probe timed out after 50ms")
	})

	t.Run("recovers from a panicking channel", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ch := mock.NewMockChannel(ctrl)
		ch.EXPECT().Kind().Return(channel.KindSimulated).AnyTimes()
		ch.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) error {
			panic("channel gone sideways")
		})

		exec := newTestExecutor(t, ch)

		result := exec.Run(context.Background(), Probe{
			Name:    "echo-panic",
			Message: "ping",
		})

		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.ErrorMessage, "panic during probe")
		assert.Equal(t, "echo-panic", result.TestName)
	})

	t.Run("captures a screenshot when a ui probe fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ch := mock.NewMockChannel(ctrl)
		ch.EXPECT().Kind().Return(channel.KindTelegramWeb).AnyTimes()
		ch.EXPECT().Send(gomock.Any(), "ping").Return(nil)
		ch.EXPECT().LatestReply(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
		ch.EXPECT().Screenshot(gomock.Any(), gomock.Any()).Return(nil)

		exec := newTestExecutor(t, ch)

		result := exec.Run(context.Background(), Probe{
			Name:    "ui flow/login",
			Message: "ping",
		})

		require.Equal(t, StatusFailed, result.Status)
		require.NotEmpty(t, result.ScreenshotPath)
		assert.True(t, strings.HasPrefix(filepath.Base(result.ScreenshotPath), "ui_flow-login_"))
		assert.True(t, strings.HasSuffix(result.ScreenshotPath, ".png"))
	})

	t.Run("swallows screenshot failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ch := mock.NewMockChannel(ctrl)
		ch.EXPECT().Kind().Return(channel.KindTelegramWeb).AnyTimes()
		ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
		ch.EXPECT().LatestReply(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
		ch.EXPECT().Screenshot(gomock.Any(), gomock.Any()).Return(fmt.Errorf("browser crashed"))

		exec := newTestExecutor(t, ch)

		result := exec.Run(context.Background(), Probe{
			Name:    "ui-broken-capture",
			Message: "ping",
		})

		assert.Equal(t, StatusFailed, result.Status)
		assert.Empty(t, result.ScreenshotPath)
	})
}

func TestExecutor_RunAll(t *testing.T) {
	exec := newTestExecutor(t, channel.NewSimulated())

	probes := []Probe{
		{Name: "smoke-start", Message: "/start", Keywords: []string{"welcome"}},
		{Name: "smoke-help", Message: "/help", Keywords: []string{"help"}},
		{Name: "smoke-echo", Message: "order check", Keywords: []string{"order check"}},
	}

	results := exec.RunAll(context.Background(), probes)

	require.Len(t, results, len(probes))

	for i, r := range results {
		assert.Equal(t, probes[i].Name, r.TestName)
		assert.Equal(t, StatusPassed, r.Status)
	}
}

func TestExecutor_RunConcurrent(t *testing.T) {
	t.Run("bounded parallel run keeps input order", func(t *testing.T) {
		exec := newTestExecutor(t, channel.NewSimulated())

		probes := make([]Probe, 8)
		for i := range probes {
			probes[i] = Probe{
				Name:    fmt.Sprintf("conc-%d", i),
				Message: fmt.Sprintf("message %d", i),
			}
		}

		results := exec.RunConcurrent(context.Background(), probes, 4)

		require.Len(t, results, len(probes))

		for i, r := range results {
			assert.Equal(t, fmt.Sprintf("conc-%d", i), r.TestName)
			assert.Equal(t, StatusPassed, r.Status)
		}
	})

	t.Run("limit of one falls back to sequential", func(t *testing.T) {
		exec := newTestExecutor(t, channel.NewSimulated())

		results := exec.RunConcurrent(context.Background(), []Probe{
			{Name: "seq-only", Message: "ping"},
		}, 1)

		require.Len(t, results, 1)
		assert.Equal(t, StatusPassed, results[0].Status)
	})
}

func TestValidateReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		keywords []string
		matchAll bool
		ok       bool
		missing  []string
	}{
		{
			name:  "no keywords accepts any reply",
			reply: "whatever",
			ok:    true,
		},
		{
			name:     "any mode passes on one match",
			reply:    "Welcome aboard!",
			keywords: []string{"welcome", "zebra"},
			ok:       true,
		},
		{
			name:     "any mode fails when nothing matches",
			reply:    "Welcome aboard!",
			keywords: []string{"zebra", "yak"},
			missing:  []string{"zebra", "yak"},
		},
		{
			name:     "match is case insensitive",
			reply:    "WELCOME ABOARD",
			keywords: []string{"Welcome"},
			ok:       true,
		},
		{
			name:     "all mode passes when everything matches",
			reply:    "Welcome aboard, said the bot",
			keywords: []string{"welcome", "aboard"},
			matchAll: true,
			ok:       true,
		},
		{
			name:     "all mode reports only the missing keywords",
			reply:    "Welcome aboard",
			keywords: []string{"welcome", "zebra"},
			matchAll: true,
			missing:  []string{"zebra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, missing := validateReply(tt.reply, tt.keywords, tt.matchAll)

			assert.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Empty(t, missing)
			} else {
				assert.Equal(t, tt.missing, missing)
			}
		})
	}
}
