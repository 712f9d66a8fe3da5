package probe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultResponseWait  = 2 * time.Second
	defaultPollInterval  = 500 * time.Millisecond
	defaultScreenshotDir = "screenshots"
)

// Config contains configuration for the executor.
type Config struct {
	// Timeout bounds a whole probe, send included.
	Timeout time.Duration
	// ResponseWait is the window the bot gets to answer after a send.
	ResponseWait time.Duration
	// PollInterval is how often the channel is asked for a reply.
	PollInterval time.Duration
	// ScreenshotDir is where failure screenshots land.
	ScreenshotDir string
}

// Executor runs probes against a single channel.
type Executor struct {
	log     *logrus.Logger
	slog    *logger.SessionLogger
	ch      channel.Channel
	cfg     Config
	metrics *Metrics
}

// NewExecutor creates a new executor for the given channel.
func NewExecutor(log *logrus.Logger, sessionLog *logger.SessionLogger, ch channel.Channel, cfg Config, metrics *Metrics) *Executor {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ResponseWait == 0 {
		cfg.ResponseWait = DefaultResponseWait
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = defaultScreenshotDir
	}

	return &Executor{
		log:     log,
		slog:    sessionLog,
		ch:      ch,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Channel returns the channel this executor drives.
func (e *Executor) Channel() channel.Channel {
	return e.ch
}

// Run executes a single probe. One probe in, exactly one result out, no
// matter how the channel misbehaves.
func (e *Executor) Run(ctx context.Context, p Probe) (result Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = e.finish(ctx, p, start, Result{
				Status:       StatusError,
				ErrorMessage: fmt.Sprintf("panic during probe: %v", r),
			})
		}
	}()

	timeout := p.Timeout
	if timeout == 0 {
		timeout = e.cfg.Timeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.slog.Section("Probe %s (%s)", p.Name, e.ch.Kind())

	sentAt := time.Now()

	if err := e.ch.Send(probeCtx, p.Message); err != nil {
		return e.finish(ctx, p, start, Result{
			Status:       StatusError,
			ErrorMessage: transportError("failed to send message", err, timeout),
		})
	}

	reply, err := e.awaitReply(probeCtx, sentAt)
	if err != nil {
		return e.finish(ctx, p, start, Result{
			Status:       StatusError,
			ErrorMessage: transportError("failed to read reply", err, timeout),
		})
	}

	if reply == "" {
		return e.finish(ctx, p, start, Result{
			Status:       StatusFailed,
			ErrorMessage: fmt.Sprintf("no reply from bot within %s", e.cfg.ResponseWait),
		})
	}

	if ok, missing := validateReply(reply, p.Keywords, p.MatchAll); !ok {
		return e.finish(ctx, p, start, Result{
			Status:       StatusFailed,
			ErrorMessage: fmt.Sprintf("reply did not contain expected keywords %v", missing),
			Details:      replyDetails(e.ch.Kind(), reply),
		})
	}

	return e.finish(ctx, p, start, Result{
		Status:  StatusPassed,
		Details: replyDetails(e.ch.Kind(), reply),
	})
}

// RunAll executes probes sequentially, preserving order.
func (e *Executor) RunAll(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, 0, len(probes))

	for _, p := range probes {
		results = append(results, e.Run(ctx, p))
	}

	return results
}

// RunConcurrent executes probes with bounded parallelism. The channel must
// be safe for concurrent use. Results keep the input order, and N probes
// always produce N results.
func (e *Executor) RunConcurrent(ctx context.Context, probes []Probe, limit int) []Result {
	if limit <= 1 {
		return e.RunAll(ctx, probes)
	}

	results := make([]Result, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, p := range probes {
		g.Go(func() error {
			results[i] = e.Run(gctx, p)

			return nil
		})
	}

	// Workers never return errors, failures are carried in the results.
	_ = g.Wait()

	return results
}

// awaitReply polls the channel until a fresh reply shows up or the
// response window closes. An empty reply with no error means the bot
// stayed silent.
func (e *Executor) awaitReply(ctx context.Context, sentAt time.Time) (string, error) {
	window := time.NewTimer(e.cfg.ResponseWait)
	defer window.Stop()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		reply, err := e.ch.LatestReply(ctx, sentAt)
		if err != nil {
			return "", err
		}

		if reply != "" {
			return reply, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-window.C:
			return "", nil
		case <-ticker.C:
		}
	}
}

// finish stamps the shared result fields, grabs a screenshot when a UI
// probe went bad, and records the outcome.
func (e *Executor) finish(ctx context.Context, p Probe, start time.Time, result Result) Result {
	result.TestName = p.Name
	result.ExecutionTime = time.Since(start)
	result.Timestamp = time.Now().UTC()

	if result.Status != StatusPassed && channel.IsUIKind(e.ch.Kind()) {
		result.ScreenshotPath = e.captureScreenshot(ctx, p.Name)
	}

	e.slog.Printf("  - %s: %s (%.2fs)", p.Name, result.Status, result.ExecutionTime.Seconds())

	if result.ErrorMessage != "" {
		e.slog.Printf("    %s", result.ErrorMessage)
	}

	e.log.WithFields(logrus.Fields{
		"probe":    p.Name,
		"channel":  e.ch.Kind(),
		"status":   result.Status,
		"duration": result.ExecutionTime.Seconds(),
	}).Info("Probe finished")

	e.metrics.ObserveProbe(e.ch.Kind().String(), string(result.Status), result.ExecutionTime.Seconds())

	return result
}

// captureScreenshot is best effort, failures are logged and swallowed.
func (e *Executor) captureScreenshot(ctx context.Context, name string) string {
	path := filepath.Join(e.cfg.ScreenshotDir, ScreenshotName(name, time.Now()))

	if err := e.ch.Screenshot(ctx, path); err != nil {
		if !errors.Is(err, channel.ErrNoScreenshot) {
			e.log.WithError(err).WithField("probe", name).Warn("Failed to capture screenshot")
			e.slog.Printf("    screenshot failed: %v", err)
		}

		return ""
	}

	return path
}

// validateReply checks the reply against the probe's keywords. With no
// keywords, any non-empty reply passes.
func validateReply(reply string, keywords []string, matchAll bool) (bool, []string) {
	if len(keywords) == 0 {
		return true, nil
	}

	lower := strings.ToLower(reply)
	missing := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			if !matchAll {
				return true, nil
			}

			continue
		}

		missing = append(missing, kw)
	}

	if matchAll {
		return len(missing) == 0, missing
	}

	return false, keywords
}

func replyDetails(kind channel.Kind, reply string) map[string]interface{} {
	key := "api_response"
	if channel.IsUIKind(kind) {
		key = "ui_elements"
	}

	return map[string]interface{}{key: reply}
}

func transportError(action string, err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("probe timed out after %s", timeout)
	}

	return fmt.Sprintf("%s: %v", action, err)
}
