package channel

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulated_Kind(t *testing.T) {
	assert.Equal(t, KindSimulated, NewSimulated().Kind())
}

func TestSimulated_Replies(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		contains string
	}{
		{
			name:     "plain text is echoed",
			message:  "status of order 7",
			contains: "You said: status of order 7",
		},
		{
			name:     "start command",
			message:  "/start",
			contains: "Welcome",
		},
		{
			name:     "help command",
			message:  "/help",
			contains: "/start",
		},
		{
			name:     "unknown command",
			message:  "/frobnicate",
			contains: "unknown command",
		},
		{
			name:     "command matching ignores arguments",
			message:  "/help me please",
			contains: "Available commands",
		},
		{
			name:     "greeting",
			message:  "hello there",
			contains: "Hello",
		},
		{
			name:     "asking for a name",
			message:  "what is your name?",
			contains: "DemoBot",
		},
		{
			name:     "gratitude",
			message:  "thank you!",
			contains: "welcome",
		},
		{
			name:     "blank input gets nudged",
			message:  "   ",
			contains: "non-empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulated()
			since := time.Now().Add(-time.Minute)

			require.NoError(t, sim.Send(context.Background(), tt.message))

			reply, err := sim.LatestReply(context.Background(), since)
			require.NoError(t, err)
			assert.Contains(t, reply, tt.contains)
		})
	}
}

func TestSimulated_LatestReply(t *testing.T) {
	t.Run("no reply before anything was sent", func(t *testing.T) {
		sim := NewSimulated()

		reply, err := sim.LatestReply(context.Background(), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Empty(t, reply)
	})

	t.Run("replies before the cutoff are invisible", func(t *testing.T) {
		sim := NewSimulated()

		require.NoError(t, sim.Send(context.Background(), "ping"))

		reply, err := sim.LatestReply(context.Background(), time.Now())
		require.NoError(t, err)
		assert.Empty(t, reply)
	})

	t.Run("newest reply wins", func(t *testing.T) {
		sim := NewSimulated()
		since := time.Now().Add(-time.Minute)

		require.NoError(t, sim.Send(context.Background(), "first"))
		require.NoError(t, sim.Send(context.Background(), "second"))

		reply, err := sim.LatestReply(context.Background(), since)
		require.NoError(t, err)
		assert.Equal(t, "You said: second", reply)
	})
}

func TestSimulated_FaultInjection(t *testing.T) {
	t.Run("muted bot stays silent", func(t *testing.T) {
		sim := NewSimulated()
		sim.Mute(true)

		require.NoError(t, sim.Send(context.Background(), "ping"))

		reply, err := sim.LatestReply(context.Background(), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Empty(t, reply)

		// Healing the mute makes it talk again.
		sim.Mute(false)
		require.NoError(t, sim.Send(context.Background(), "ping"))

		reply, err = sim.LatestReply(context.Background(), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.NotEmpty(t, reply)
	})

	t.Run("send failures", func(t *testing.T) {
		sim := NewSimulated()
		sim.FailSends(fmt.Errorf("wire cut"))

		err := sim.Send(context.Background(), "ping")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wire cut")

		sim.FailSends(nil)
		assert.NoError(t, sim.Send(context.Background(), "ping"))
	})

	t.Run("reply failures", func(t *testing.T) {
		sim := NewSimulated()
		sim.FailReplies(fmt.Errorf("poll broken"))

		_, err := sim.LatestReply(context.Background(), time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "poll broken")
	})
}

func TestSimulated_CustomHandler(t *testing.T) {
	sim := NewSimulated(WithHandler(func(text string) string {
		return strings.ToUpper(text)
	}))

	require.NoError(t, sim.Send(context.Background(), "quiet please"))

	reply, err := sim.LatestReply(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "QUIET PLEASE", reply)
}

func TestSimulated_Latency(t *testing.T) {
	t.Run("send respects context cancellation", func(t *testing.T) {
		sim := NewSimulated(WithLatency(time.Minute))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := sim.Send(ctx, "ping")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSimulated_Close(t *testing.T) {
	sim := NewSimulated()

	require.NoError(t, sim.Close(context.Background()))

	err := sim.Send(context.Background(), "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")

	_, err = sim.LatestReply(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestSimulated_Screenshot(t *testing.T) {
	err := NewSimulated().Screenshot(context.Background(), "out.png")
	assert.ErrorIs(t, err, ErrNoScreenshot)
}
