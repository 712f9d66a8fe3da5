package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const discordFetchLimit = 50

// DiscordConfig contains configuration for the Discord channel.
type DiscordConfig struct {
	Token     string
	ChannelID string
	// BotUserID identifies the bot under test. When empty, any bot-authored
	// message in the channel counts as a reply.
	BotUserID string
}

// Discord drives a bot in a Discord channel.
type Discord struct {
	cfg     *DiscordConfig
	session *discordgo.Session
	log     *logrus.Logger

	mu     sync.Mutex
	opened bool
	selfID string
}

// NewDiscord creates a new Discord channel.
func NewDiscord(cfg *DiscordConfig, log *logrus.Logger) (*Discord, error) {
	// Create a new Discord session.
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &Discord{
		cfg:     cfg,
		session: session,
		log:     log,
	}, nil
}

// Kind returns the kind of the channel.
func (d *Discord) Kind() Kind {
	return KindDiscord
}

// Send delivers a message to the configured channel.
func (d *Discord) Send(ctx context.Context, text string) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	if _, err := d.session.ChannelMessageSend(d.cfg.ChannelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}

	return nil
}

// LatestReply returns the newest bot-authored message after the given instant.
func (d *Discord) LatestReply(ctx context.Context, after time.Time) (string, error) {
	if err := d.ensureOpen(); err != nil {
		return "", err
	}

	msgs, err := d.session.ChannelMessages(d.cfg.ChannelID, discordFetchLimit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch discord messages: %w", err)
	}

	// Messages arrive newest-first.
	for _, msg := range msgs {
		if msg.Author == nil || msg.Author.ID == d.selfID {
			continue
		}

		if d.cfg.BotUserID != "" {
			if msg.Author.ID != d.cfg.BotUserID {
				continue
			}
		} else if !msg.Author.Bot {
			continue
		}

		if !msg.Timestamp.After(after) {
			continue
		}

		return msg.Content, nil
	}

	return "", nil
}

// Screenshot is unsupported on the Discord channel.
func (d *Discord) Screenshot(_ context.Context, _ string) error {
	return ErrNoScreenshot
}

// Close shuts down the Discord session.
func (d *Discord) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return nil
	}

	d.opened = false

	return d.session.Close()
}

// ensureOpen opens the gateway connection once.
func (d *Discord) ensureOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opened {
		return nil
	}

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	if d.session.State != nil && d.session.State.User != nil {
		d.selfID = d.session.State.User.ID
	}

	d.opened = true
	d.log.WithField("channel", d.cfg.ChannelID).Info("Discord connection opened")

	return nil
}
