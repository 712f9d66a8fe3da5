package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/channel"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
	"github.com/molkabha/telegram-bot-automation-testing/pkg/store"
)

// Config contains the configuration for the service.
type Config struct {
	TelegramToken    string
	TelegramUsername string
	TelegramChatID   string
	TelegramWebURL   string // Defaults to channel.DefaultTelegramWebURL

	DiscordToken     string
	DiscordChannelID string

	Channels      []string // Channel kinds to probe. Defaults to simulated.
	Headless      bool
	ProbeTimeout  time.Duration
	ResponseWait  time.Duration
	Concurrency   int
	ReportDir     string
	ScreenshotDir string

	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3BucketPrefix  string
	S3Region        string
	S3EndpointURL   string

	MetricsAddress     string // Defaults to :9091
	HealthCheckAddress string // Defaults to :9191
}

func (c *Config) setDefaults() {
	if len(c.Channels) == 0 {
		c.Channels = []string{channel.KindSimulated.String()}
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = probe.DefaultTimeout
	}

	if c.ResponseWait == 0 {
		c.ResponseWait = probe.DefaultResponseWait
	}

	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}

	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "screenshots"
	}

	if c.MetricsAddress == "" {
		c.MetricsAddress = ":9091"
	}

	if c.HealthCheckAddress == "" {
		c.HealthCheckAddress = ":9191"
	}
}

// ChannelKinds parses the configured channel list. Unknown kinds are a
// configuration error.
func (c *Config) ChannelKinds() ([]channel.Kind, error) {
	kinds := make([]channel.Kind, 0, len(c.Channels))
	seen := make(map[channel.Kind]bool)

	for _, name := range c.Channels {
		kind := channel.Kind(strings.TrimSpace(strings.ToLower(name)))
		if kind == "" || seen[kind] {
			continue
		}

		if !channel.IsValidKind(kind) {
			return nil, fmt.Errorf("unknown channel kind %q, valid kinds: %s", name, joinKinds(channel.AllKinds()))
		}

		seen[kind] = true
		kinds = append(kinds, kind)
	}

	if len(kinds) == 0 {
		kinds = append(kinds, channel.KindSimulated)
	}

	return kinds, nil
}

// S3Enabled reports whether artifact persistence is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// AsTelegramConfig converts the configuration to a TelegramConfig.
func (c *Config) AsTelegramConfig() *channel.TelegramConfig {
	return &channel.TelegramConfig{
		Token:    c.TelegramToken,
		Username: c.TelegramUsername,
		ChatID:   c.TelegramChatID,
	}
}

// AsDiscordConfig converts the configuration to a DiscordConfig.
func (c *Config) AsDiscordConfig() *channel.DiscordConfig {
	return &channel.DiscordConfig{
		Token:     c.DiscordToken,
		ChannelID: c.DiscordChannelID,
	}
}

// AsS3Config converts the configuration to an S3Config.
func (c *Config) AsS3Config() *store.S3Config {
	return &store.S3Config{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Bucket:          c.S3Bucket,
		Prefix:          c.S3BucketPrefix,
		Region:          c.S3Region,
		EndpointURL:     c.S3EndpointURL,
	}
}

// Validate validates the configuration. Only the requirements of the
// selected channels and of S3 persistence (when a bucket is set) are
// enforced, so a simulated-only run needs no environment at all.
func (c *Config) Validate() error {
	kinds, err := c.ChannelKinds()
	if err != nil {
		return err
	}

	for _, kind := range kinds {
		switch kind {
		case channel.KindTelegramAPI:
			if c.TelegramToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required for channel %s", kind)
			}

			if c.TelegramChatID == "" {
				return fmt.Errorf("TELEGRAM_TEST_CHAT_ID environment variable is required for channel %s", kind)
			}
		case channel.KindTelegramWeb:
			if c.TelegramUsername == "" {
				return fmt.Errorf("TELEGRAM_BOT_USERNAME environment variable is required for channel %s", kind)
			}
		case channel.KindDiscord:
			if c.DiscordToken == "" {
				return fmt.Errorf("DISCORD_BOT_TOKEN environment variable is required for channel %s", kind)
			}

			if c.DiscordChannelID == "" {
				return fmt.Errorf("DISCORD_CHANNEL_ID environment variable is required for channel %s", kind)
			}
		case channel.KindSimulated:
			// Needs nothing.
		}
	}

	if c.S3Enabled() {
		if c.AccessKeyID == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID environment variable is required for S3 persistence")
		}

		if c.SecretAccessKey == "" {
			return fmt.Errorf("AWS_SECRET_ACCESS_KEY environment variable is required for S3 persistence")
		}
	}

	return nil
}

func joinKinds(kinds []channel.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}

	return strings.Join(names, ", ")
}
