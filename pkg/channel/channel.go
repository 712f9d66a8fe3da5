package channel

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -package mock -destination mock/channel.mock.go github.com/molkabha/telegram-bot-automation-testing/pkg/channel Channel

// ErrNoScreenshot is returned by channels that have nothing to capture.
var ErrNoScreenshot = errors.New("channel does not support screenshots")

// Channel is a transport the harness drives the bot through.
type Channel interface {
	// Kind returns the kind of the channel.
	Kind() Kind
	// Send delivers a message to the bot.
	Send(ctx context.Context, text string) error
	// LatestReply returns the newest bot reply received after the given
	// instant. It returns ("", nil) when no fresh reply exists yet; an
	// error means the transport itself failed.
	LatestReply(ctx context.Context, after time.Time) (string, error)
	// Screenshot captures the current state of the channel to a PNG file.
	// Non-UI channels return ErrNoScreenshot.
	Screenshot(ctx context.Context, path string) error
	// Close releases the channel's resources.
	Close(ctx context.Context) error
}

// Kind represents the kind of channel.
type Kind string

// Define the channel kinds.
const (
	KindTelegramAPI Kind = "telegram-api"
	KindTelegramWeb Kind = "telegram-web"
	KindDiscord     Kind = "discord"
	KindSimulated   Kind = "simulated"
)

// String returns the string representation of a kind.
func (k Kind) String() string {
	return string(k)
}

var (
	// Buckets of known kinds.
	UIKinds  = []Kind{KindTelegramWeb}
	APIKinds = []Kind{KindTelegramAPI, KindDiscord, KindSimulated}
)

// AllKinds returns every kind the harness knows how to build.
func AllKinds() []Kind {
	return []Kind{KindTelegramAPI, KindTelegramWeb, KindDiscord, KindSimulated}
}

// IsUIKind returns true if the kind drives a browser surface.
func IsUIKind(kind Kind) bool {
	for _, k := range UIKinds {
		if k == kind {
			return true
		}
	}

	return false
}

// IsAPIKind returns true if the kind talks to a bot API directly.
func IsAPIKind(kind Kind) bool {
	for _, k := range APIKinds {
		if k == kind {
			return true
		}
	}

	return false
}

// IsValidKind returns true if the kind is one the harness can build.
func IsValidKind(kind Kind) bool {
	for _, k := range AllKinds() {
		if k == kind {
			return true
		}
	}

	return false
}
