package serve

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csso/fngraph/internal/run"
)

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	h := NewHub()
	a := &wsClient{send: make(chan []byte, 4)}
	b := &wsClient{send: make(chan []byte, 4)}
	h.register(a)
	h.register(b)
	require.Equal(t, 2, h.Clients())

	id := uuid.New()
	h.Broadcast(run.Event{
		Type:     "node_executed",
		Node:     "sum",
		NodeID:   id,
		Duration: 42 * time.Millisecond,
	})

	for _, c := range []*wsClient{a, b} {
		var e wireEvent
		require.NoError(t, json.Unmarshal(<-c.send, &e))
		assert.Equal(t, "node_executed", e.Type)
		assert.Equal(t, "sum", e.Node)
		assert.Equal(t, id.String(), e.NodeID)
		assert.Equal(t, int64(42), e.DurationMS)
	}
}

func TestHubOmitsNilNodeID(t *testing.T) {
	h := NewHub()
	c := &wsClient{send: make(chan []byte, 1)}
	h.register(c)

	h.Broadcast(run.Event{Type: "run_started"})

	data := <-c.send
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "node_id")
}

func TestHubDropsEventsForSlowClients(t *testing.T) {
	h := NewHub()
	slow := &wsClient{send: make(chan []byte, 1)}
	fast := &wsClient{send: make(chan []byte, 4)}
	h.register(slow)
	h.register(fast)

	// The first event fills the slow client's buffer; the second must not
	// block Broadcast and must still reach the fast client.
	h.Broadcast(run.Event{Type: "run_started"})
	h.Broadcast(run.Event{Type: "run_finished"})

	assert.Len(t, slow.send, 1)
	assert.Len(t, fast.send, 2)
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	c := &wsClient{send: make(chan []byte, 1)}
	h.register(c)

	h.unregister(c)
	assert.Equal(t, 0, h.Clients())

	_, open := <-c.send
	assert.False(t, open)

	// Unregistering twice must not close the channel again.
	h.unregister(c)
}
