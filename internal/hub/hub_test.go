package hub

import (
	"context"
	"testing"
	"time"

	"github.com/nfrund/chatapp/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := New(logging.Discard())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func TestHubBroadcast(t *testing.T) {
	h, _ := startHub(t)
	a := NewSubscriber("alice", 4)
	b := NewSubscriber("bob", 4)
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Count())

	h.Broadcast([]byte("<div>hi</div>"))
	assert.Equal(t, "<div>hi</div>", string(<-a.Send))
	assert.Equal(t, "<div>hi</div>", string(<-b.Send))

	h.Unregister(a)
	_, open := <-a.Send
	assert.False(t, open)
	assert.Equal(t, 1, h.Count())
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h, _ := startHub(t)
	slow := NewSubscriber("slow", 1)
	h.Register(slow)

	h.Broadcast([]byte("one"))
	h.Broadcast([]byte("two"))

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, "one", string(<-slow.Send))
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestHubStop(t *testing.T) {
	h, cancel := startHub(t)
	s := NewSubscriber("alice", 1)
	h.Register(s)
	require.Equal(t, 1, h.Count())

	cancel()
	select {
	case _, open := <-s.Send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("queue not closed on stop")
	}

	late := NewSubscriber("late", 1)
	h.Register(late)
	_, open := <-late.Send
	assert.False(t, open)
	h.Broadcast([]byte("ignored"))
	assert.Equal(t, 0, h.Count())
}
