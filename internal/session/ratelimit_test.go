package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ODCA117/ratchat/internal/proto"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRateLimiter(2, time.Minute)
	r.now = func() time.Time { return now }

	require.True(t, r.allow())
	require.True(t, r.allow())
	require.False(t, r.allow())

	now = now.Add(time.Minute)
	require.True(t, r.allow())
}

func TestNilRateLimiterAllows(t *testing.T) {
	var r *rateLimiter
	require.Nil(t, newRateLimiter(0, time.Minute))
	for i := 0; i < 100; i++ {
		require.True(t, r.allow())
	}
}

func TestSessionDropsMessagesOverLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 2})

	chatty := f.connect()
	chatty.join("chatty")
	reader := f.connect()
	reader.join("reader")

	for _, text := range []string{"one", "two", "three"} {
		chatty.send(proto.Message{Text: text})
	}

	require.Equal(t, proto.Message{SenderID: 0, Text: "one"}, reader.recv())
	require.Equal(t, proto.Message{SenderID: 0, Text: "two"}, reader.recv())
	reader.expectSilence()

	// Dropping is not fatal to the session.
	require.Len(t, f.clients(), 2)
}
