// Package service wires channels, executor, reporter and the optional
// store and watch-mode machinery into one runnable unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
	apihttp "github.com/molkabha/telegram-bot-automation-testing/pkg/http"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/logger"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/queue"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/report"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/scheduler"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/session"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/store"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/suite"
)

const metricsNamespace = "botprobe"

type Service struct {
	config *Config
	log    *logrus.Logger

	kinds    []channel.Kind
	channels map[channel.Kind]channel.Channel

	reporter *report.Generator
	reports  *store.ReportsRepo

	scheduler *scheduler.Scheduler
	queue     *queue.RunQueue

	probeMetrics *probe.Metrics

	healthServer  *http.Server
	metricsServer *http.Server
}

func NewService(ctx context.Context, log *logrus.Logger, cfg *Config) (*Service, error) {
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kinds, err := cfg.ChannelKinds()
	if err != nil {
		return nil, err
	}

	// One instrumented HTTP client, shared by every API channel.
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: apihttp.NewMetricsRoundTripper(http.DefaultTransport, apihttp.NewMetrics(metricsNamespace), log),
	}

	channels := make(map[channel.Kind]channel.Channel, len(kinds))

	for _, kind := range kinds {
		ch, chErr := buildChannel(kind, cfg, httpClient, log)
		if chErr != nil {
			return nil, fmt.Errorf("failed to build %s channel: %w", kind, chErr)
		}

		channels[kind] = ch
	}

	// Reports always land on disk; S3 persistence is layered on top
	// when a bucket is configured.
	reporter := report.NewGenerator(log, cfg.ReportDir, cfg.ScreenshotDir, report.NewMetrics(metricsNamespace))

	var reports *store.ReportsRepo
	if cfg.S3Enabled() {
		reports, err = store.NewReportsRepo(ctx, log, cfg.AsS3Config(), store.NewMetrics(metricsNamespace))
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
	}

	s := &Service{
		config:       cfg,
		log:          log,
		kinds:        kinds,
		channels:     channels,
		reporter:     reporter,
		reports:      reports,
		scheduler:    scheduler.NewScheduler(log, scheduler.NewMetrics(metricsNamespace)),
		probeMetrics: probe.NewMetrics(metricsNamespace),
	}

	s.queue = queue.NewRunQueue(log, s.processRun, queue.NewMetrics(metricsNamespace))

	return s, nil
}

func buildChannel(kind channel.Kind, cfg *Config, httpClient *http.Client, log *logrus.Logger) (channel.Channel, error) {
	switch kind {
	case channel.KindTelegramAPI:
		return channel.NewTelegramAPI(cfg.AsTelegramConfig(), httpClient, log)
	case channel.KindTelegramWeb:
		return channel.NewTelegramWeb(cfg.AsTelegramConfig(), cfg.TelegramWebURL, cfg.Headless, log), nil
	case channel.KindDiscord:
		return channel.NewDiscord(cfg.AsDiscordConfig(), log)
	case channel.KindSimulated:
		return channel.NewSimulated(), nil
	default:
		return nil, fmt.Errorf("unknown channel kind %q", kind)
	}
}

// VerifyChannels checks every channel that can be checked without side
// effects, plus the S3 store when one is configured.
func (s *Service) VerifyChannels(ctx context.Context) error {
	for kind, ch := range s.channels {
		v, ok := ch.(interface{ Verify(context.Context) error })
		if !ok {
			continue
		}

		if err := v.Verify(ctx); err != nil {
			return fmt.Errorf("failed to verify %s channel: %w", kind, err)
		}
	}

	if s.reports != nil {
		if err := s.reports.VerifyConnection(ctx); err != nil {
			return fmt.Errorf("failed to verify S3 store: %w", err)
		}
	}

	return nil
}

// Start verifies external dependencies, brings up the health and
// metrics servers and starts the queue processor.
func (s *Service) Start(ctx context.Context) error {
	s.log.Info("Starting service")

	if err := s.VerifyChannels(ctx); err != nil {
		return err
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	s.healthServer = &http.Server{
		Addr:              s.config.HealthCheckAddress,
		Handler:           healthMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	s.metricsServer = &http.Server{
		Addr:              s.config.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.serve("health", s.healthServer)
	go s.serve("metrics", s.metricsServer)

	s.queue.Start(ctx)

	s.log.WithFields(logrus.Fields{
		"channels": joinKinds(s.kinds),
		"health":   s.config.HealthCheckAddress,
		"metrics":  s.config.MetricsAddress,
	}).Info("Service started")

	return nil
}

func (s *Service) serve(name string, srv *http.Server) {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.WithError(err).Errorf("%s server failed", name)
	}
}

// Stop shuts everything down in reverse order of Start.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service")

	s.scheduler.Stop()
	s.queue.Stop(ctx)

	var firstErr error

	for _, srv := range []*http.Server{s.metricsServer, s.healthServer} {
		if srv == nil {
			continue
		}

		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to shut down server: %w", err)
		}
	}

	for kind, ch := range s.channels {
		if err := ch.Close(ctx); err != nil {
			s.log.WithError(err).Errorf("Failed to close %s channel", kind)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.log.Info("Service stopped")

	return firstErr
}

// Watch schedules the suite and starts the cron loop. Fires go through
// the queue, so a run still in flight is never doubled up.
func (s *Service) Watch(suiteName, category, schedule string) error {
	err := s.scheduler.AddJob("watch-"+suiteName, schedule, func(_ context.Context) error {
		s.queue.Enqueue(&queue.RunRequest{
			Suite:    suiteName,
			Category: category,
			Trigger:  "schedule",
		})

		return nil
	})
	if err != nil {
		return err
	}

	s.scheduler.Start()

	return nil
}

// WaitForWebLogin blocks until the Telegram Web session is logged in.
// A no-op when the telegram-web channel is not configured.
func (s *Service) WaitForWebLogin(ctx context.Context, timeout time.Duration) error {
	ch, ok := s.channels[channel.KindTelegramWeb]
	if !ok {
		return nil
	}

	web, ok := ch.(*channel.TelegramWeb)
	if !ok {
		return nil
	}

	return web.WaitForLogin(ctx, timeout)
}

// processRun is the queue worker behind watch mode.
func (s *Service) processRun(ctx context.Context, req *queue.RunRequest) (bool, error) {
	st, err := ResolveSuite(req.Suite)
	if err != nil {
		return false, err
	}

	if req.Category != "" {
		st = st.FilterCategory(req.Category)
	}

	sum, err := s.RunSuite(ctx, st)
	if err != nil {
		return false, err
	}

	return !sum.HasFailures(), nil
}

// RunSuite executes the suite over every configured channel, writes the
// JSON report, the HTML report and the session log, and uploads the
// artifacts when S3 persistence is configured.
func (s *Service) RunSuite(ctx context.Context, st suite.Suite) (session.Summary, error) {
	sess := session.New()
	slog := logger.NewSessionLogger(sess.ID())

	s.log.WithFields(logrus.Fields{
		"suite":    st.Name,
		"session":  sess.ID(),
		"channels": joinKinds(s.kinds),
		"probes":   len(st.Probes),
	}).Info("Starting suite")

	slog.Printf("Suite %s, session %s", st.Name, sess.ID())

	for _, kind := range s.kinds {
		probes := probesFor(st, kind)
		if len(probes) == 0 {
			continue
		}

		exec := probe.NewExecutor(s.log, slog, s.channels[kind], s.executorConfig(), s.probeMetrics)

		if s.config.Concurrency > 1 {
			sess.AppendAll(exec.RunConcurrent(ctx, probes, s.config.Concurrency))
		} else {
			sess.AppendAll(exec.RunAll(ctx, probes))
		}
	}

	if skipped := skippedProbes(st, s.kinds); skipped > 0 {
		s.log.WithField("count", skipped).Warn("Probes skipped, their channel is not configured")
		slog.Printf("%d probes skipped, channel not configured", skipped)
	}

	sum := sess.Summary()

	slog.Printf("Done: %d probes, %d passed, %d failed, %d errors",
		sum.Total, sum.Passed, sum.Failed, sum.Errors)

	jsonPath, err := s.reporter.WriteJSON(sess)
	if err != nil {
		return sum, fmt.Errorf("failed to write JSON report: %w", err)
	}

	htmlPath, err := s.reporter.WriteHTML(sess)
	if err != nil {
		return sum, fmt.Errorf("failed to write HTML report: %w", err)
	}

	logPath, err := s.reporter.WriteSessionLog(slog)
	if err != nil {
		return sum, fmt.Errorf("failed to write session log: %w", err)
	}

	if s.reports != nil {
		if err := s.uploadArtifacts(ctx, sess, jsonPath, htmlPath, logPath); err != nil {
			return sum, fmt.Errorf("failed to upload artifacts: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"session":      sess.ID(),
		"total":        sum.Total,
		"passed":       sum.Passed,
		"failed":       sum.Failed,
		"errors":       sum.Errors,
		"success_rate": fmt.Sprintf("%.1f%%", sum.SuccessRate),
		"duration":     sum.Duration.Seconds(),
		"report":       jsonPath,
	}).Info("Suite finished")

	return sum, nil
}

func (s *Service) executorConfig() probe.Config {
	return probe.Config{
		Timeout:       s.config.ProbeTimeout,
		ResponseWait:  s.config.ResponseWait,
		ScreenshotDir: s.config.ScreenshotDir,
	}
}

// uploadArtifacts persists the report files plus any failure
// screenshots the session produced.
func (s *Service) uploadArtifacts(ctx context.Context, sess *session.Session, paths ...string) error {
	artifacts := make([]*store.ReportArtifact, 0, len(paths))

	for _, path := range paths {
		artifact, err := artifactFromFile(sess.ID(), path)
		if err != nil {
			return err
		}

		artifacts = append(artifacts, artifact)
	}

	for _, r := range sess.Results() {
		if r.ScreenshotPath == "" {
			continue
		}

		artifact, err := artifactFromFile(sess.ID(), r.ScreenshotPath)
		if err != nil {
			s.log.WithError(err).WithField("screenshot", r.ScreenshotPath).Warn("Skipping unreadable screenshot")

			continue
		}

		artifacts = append(artifacts, artifact)
	}

	for _, artifact := range artifacts {
		if err := s.reports.Persist(ctx, artifact); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"session": sess.ID(),
		"count":   len(artifacts),
		"bucket":  s.reports.GetBucket(),
	}).Info("Uploaded session artifacts")

	return nil
}

// ResolveSuite turns a --suite argument into a Suite: a built-in name,
// "all", or a path to a YAML suite file.
func ResolveSuite(name string) (suite.Suite, error) {
	if name == "" {
		return suite.All(), nil
	}

	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return suite.Load(name)
	}

	if st, ok := suite.ByName(name); ok {
		return st, nil
	}

	return suite.Suite{}, fmt.Errorf("unknown suite %q, built-in suites: %s", name, strings.Join(suite.Names(), ", "))
}

// probesFor filters the suite down to probes that should run on the
// given channel kind. Unpinned probes run everywhere.
func probesFor(st suite.Suite, kind channel.Kind) []probe.Probe {
	probes := make([]probe.Probe, 0, len(st.Probes))

	for _, p := range st.Probes {
		if p.Channel == "" || p.Channel == kind {
			probes = append(probes, p)
		}
	}

	return probes
}

func skippedProbes(st suite.Suite, kinds []channel.Kind) int {
	active := make(map[channel.Kind]bool, len(kinds))
	for _, k := range kinds {
		active[k] = true
	}

	skipped := 0

	for _, p := range st.Probes {
		if p.Channel != "" && !active[p.Channel] {
			skipped++
		}
	}

	return skipped
}

func artifactFromFile(sessionID, path string) (*store.ReportArtifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	now := time.Now().UTC()

	return &store.ReportArtifact{
		SessionID: sessionID,
		Name:      filepath.Base(path),
		Kind:      artifactKind(path),
		CreatedAt: now,
		UpdatedAt: now,
		Content:   content,
	}, nil
}

func artifactKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return store.ArtifactJSON
	case ".html":
		return store.ArtifactHTML
	case ".png":
		return store.ArtifactScreenshot
	default:
		return store.ArtifactLog
	}
}
