package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/consolidate"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/service"
)

// Set at build time via -ldflags.
var version = "dev"

const webLoginTimeout = 2 * time.Minute

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var (
		cfg       service.Config
		channels  string
		suiteArg  string
		category  string
		schedule  string
		outputDir string
		logLevel  string
	)

	rootCmd := &cobra.Command{
		Use:          "botprobe",
		Short:        "Conversation test harness for chat bots",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}

			log.SetLevel(level)
			cfg.Channels = splitList(channels)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a probe suite once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), log, &cfg, suiteArg, category)
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the suite on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), log, &cfg, suiteArg, category, schedule)
		},
	}

	watchCmd.Flags().StringVar(&schedule, "schedule", "", `cron schedule, e.g. "*/10 * * * *"`)

	if err := watchCmd.MarkFlagRequired("schedule"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// run and watch share the suite and channel surface.
	for _, cmd := range []*cobra.Command{runCmd, watchCmd} {
		cmd.Flags().StringVar(&suiteArg, "suite", "all", "built-in suite name or path to a YAML suite file")
		cmd.Flags().StringVar(&category, "category", "", "only run probes whose category matches")
		cmd.Flags().StringVar(&channels, "channels", envOr("PROBE_CHANNELS", "simulated"),
			"comma-separated channel kinds (telegram-api, telegram-web, discord, simulated)")
		cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 1, "number of probes to run in parallel per channel")
		cmd.Flags().DurationVar(&cfg.ProbeTimeout, "timeout", envDuration("PROBE_TIMEOUT", 30*time.Second), "per-probe timeout")
		cmd.Flags().DurationVar(&cfg.ResponseWait, "response-wait", envDuration("RESPONSE_WAIT", 2*time.Second), "how long the bot gets to answer")
		cmd.Flags().StringVar(&cfg.ReportDir, "report-dir", envOr("REPORT_DIR", "reports"), "directory for report artifacts")
		cmd.Flags().StringVar(&cfg.ScreenshotDir, "screenshot-dir", envOr("SCREENSHOT_DIR", "screenshots"), "directory for failure screenshots")
		cmd.Flags().BoolVar(&cfg.Headless, "headless", envBool("HEADLESS", true), "run browser channels headless")
	}

	consolidateCmd := &cobra.Command{
		Use:   "consolidate <dir>",
		Short: "Merge heterogeneous test artifacts into one dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConsolidate(log, args[0], outputDir)
		},
	}

	consolidateCmd.Flags().StringVar(&outputDir, "output-dir", ".",
		"where consolidated-report.html and test-summary.json are written")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("botprobe %s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd, watchCmd, consolidateCmd, versionCmd)

	// Secrets only come from the environment, never from flags.
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramUsername = os.Getenv("TELEGRAM_BOT_USERNAME")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_TEST_CHAT_ID")
	cfg.DiscordToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.DiscordChannelID = os.Getenv("DISCORD_CHANNEL_ID")
	cfg.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.S3Region = os.Getenv("AWS_REGION")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3BucketPrefix = os.Getenv("S3_BUCKET_PREFIX")
	cfg.S3EndpointURL = os.Getenv("S3_ENDPOINT_URL")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, log *logrus.Logger, cfg *service.Config, suiteArg, category string) error {
	st, err := service.ResolveSuite(suiteArg)
	if err != nil {
		return err
	}

	if category != "" {
		st = st.FilterCategory(category)
		if len(st.Probes) == 0 {
			return fmt.Errorf("no probes in category %q", category)
		}
	}

	svc, err := service.NewService(ctx, log, cfg)
	if err != nil {
		return err
	}

	defer func() {
		if stopErr := svc.Stop(context.Background()); stopErr != nil {
			log.WithError(stopErr).Warn("Shutdown was not clean")
		}
	}()

	if err := svc.VerifyChannels(ctx); err != nil {
		return err
	}

	if err := svc.WaitForWebLogin(ctx, webLoginTimeout); err != nil {
		return err
	}

	sum, err := svc.RunSuite(ctx, st)
	if err != nil {
		return err
	}

	if sum.HasFailures() {
		return fmt.Errorf("%d of %d probes did not pass (%d failed, %d errors)",
			sum.Failed+sum.Errors, sum.Total, sum.Failed, sum.Errors)
	}

	return nil
}

func runWatch(parent context.Context, log *logrus.Logger, cfg *service.Config, suiteArg, category, schedule string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Fail on a bad suite reference before the first cron fire would.
	if _, err := service.ResolveSuite(suiteArg); err != nil {
		return err
	}

	svc, err := service.NewService(ctx, log, cfg)
	if err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}

	if err := svc.WaitForWebLogin(ctx, webLoginTimeout); err != nil {
		return err
	}

	if err := svc.Watch(suiteArg, category, schedule); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"suite":    suiteArg,
		"schedule": schedule,
	}).Info("Watching, interrupt to stop")

	<-ctx.Done()

	return svc.Stop(context.Background())
}

func runConsolidate(log *logrus.Logger, dir, outputDir string) error {
	c := consolidate.NewConsolidator(log, consolidate.Config{
		ArtifactsDir: dir,
		OutputDir:    outputDir,
	})

	sum, err := c.Run()
	if err != nil {
		return err
	}

	if sum.HasFailures() {
		return fmt.Errorf("consolidated results contain %d failures and %d errors", sum.Failed, sum.Errors)
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}

	return parsed
}

func splitList(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
