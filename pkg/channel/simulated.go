package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Simulated is an in-memory channel backed by a deterministic bot. It lets
// the harness run end to end without tokens and gives tests a peer whose
// behavior, latency and failures can be controlled.
type Simulated struct {
	mu      sync.Mutex
	replies []simReply
	handler func(text string) string
	latency time.Duration
	muted   bool
	sendErr error
	pollErr error
	closed  bool
}

type simReply struct {
	text string
	at   time.Time
}

// SimulatedOption configures a Simulated channel.
type SimulatedOption func(*Simulated)

// WithHandler replaces the canned bot with a custom one.
func WithHandler(handler func(text string) string) SimulatedOption {
	return func(s *Simulated) {
		s.handler = handler
	}
}

// WithLatency delays every send by the given duration.
func WithLatency(latency time.Duration) SimulatedOption {
	return func(s *Simulated) {
		s.latency = latency
	}
}

// NewSimulated creates a new simulated channel.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		handler: defaultReply,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Kind returns the kind of the channel.
func (s *Simulated) Kind() Kind {
	return KindSimulated
}

// Send delivers a message to the simulated bot and queues its reply.
func (s *Simulated) Send(ctx context.Context, text string) error {
	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.latency):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("channel closed")
	}

	if s.sendErr != nil {
		return s.sendErr
	}

	if s.muted {
		return nil
	}

	s.replies = append(s.replies, simReply{
		text: s.handler(text),
		at:   time.Now(),
	})

	return nil
}

// LatestReply returns the newest queued reply after the given instant.
func (s *Simulated) LatestReply(_ context.Context, after time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("channel closed")
	}

	if s.pollErr != nil {
		return "", s.pollErr
	}

	for i := len(s.replies) - 1; i >= 0; i-- {
		if s.replies[i].at.After(after) {
			return s.replies[i].text, nil
		}
	}

	return "", nil
}

// Screenshot is unsupported on the simulated channel.
func (s *Simulated) Screenshot(_ context.Context, _ string) error {
	return ErrNoScreenshot
}

// Close shuts the channel down.
func (s *Simulated) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// Mute silences the bot so sends succeed but nothing replies.
func (s *Simulated) Mute(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.muted = muted
}

// FailSends makes every Send return the given error. Pass nil to heal.
func (s *Simulated) FailSends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendErr = err
}

// FailReplies makes every LatestReply return the given error. Pass nil to heal.
func (s *Simulated) FailReplies(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pollErr = err
}

// defaultReply mimics a small command bot, enough for the built-in suites
// to exercise every validation path.
func defaultReply(text string) string {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" {
		return "Please send a non-empty message."
	}

	if strings.HasPrefix(trimmed, "/") {
		return commandReply(strings.ToLower(strings.Fields(trimmed)[0]))
	}

	lower := strings.ToLower(trimmed)

	switch {
	case containsAny(lower, "hello", "hi", "hey", "good morning", "greetings"):
		return "Hello there! Hi, welcome aboard. Greetings from the demo bot."
	case strings.Contains(lower, "name"):
		return "My name is DemoBot, nice to meet you. I am a bot."
	case strings.Contains(lower, "thank"):
		return "You're welcome! Thank you for chatting."
	default:
		return "You said: " + trimmed
	}
}

func commandReply(cmd string) string {
	switch cmd {
	case "/start":
		return "Welcome aboard! Send /help to see what I can do. Let's start."
	case "/help":
		return "Here to help. Available commands: /start, /help, /about, /info, /menu."
	case "/about":
		return "I am a demo bot used for automated conversation testing."
	case "/info":
		return "Demo bot, version 1.0. Send /help for the command list."
	case "/menu":
		return "Menu: /start, /help, /about, /info."
	case "/end":
		return "Goodbye! This is the end of our chat, bye."
	default:
		return "Sorry, unknown command. Send /help to see the available commands."
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
