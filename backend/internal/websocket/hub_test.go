package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cryptodemo/backend/internal/ticker"
)

func startHub(t *testing.T) (*Hub, chan ticker.PriceUpdate, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	updates := make(chan ticker.PriceUpdate)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx, updates)
	t.Cleanup(cancel)
	return hub, updates, cancel
}

func TestHub_Broadcast(t *testing.T) {
	hub, updates, _ := startHub(t)

	a, b := NewClient("a"), NewClient("b")
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	updates <- ticker.PriceUpdate{Symbol: "BTC", Price: decimal.NewFromInt(45000), Ts: 1}

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			var got map[string]any
			require.NoError(t, json.Unmarshal(msg, &got))
			assert.Equal(t, "BTC", got["symbol"])
			assert.Equal(t, "45000", got["price"])
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", c.ID)
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, _, _ := startHub(t)

	c := NewClient("c")
	require.True(t, hub.Register(c))
	hub.Unregister(c)
	hub.Unregister(c)

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_DropsSlowClients(t *testing.T) {
	hub, updates, _ := startHub(t)

	slow := NewClient("slow")
	require.True(t, hub.Register(slow))

	for i := 0; i <= cap(slow.Send); i++ {
		updates <- ticker.PriceUpdate{Symbol: "ETH", Price: decimal.NewFromInt(3000), Ts: int64(i)}
	}

	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, _, cancel := startHub(t)

	c := NewClient("c")
	require.True(t, hub.Register(c))
	cancel()

	select {
	case _, open := <-c.Send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("client not closed")
	}
	assert.False(t, hub.Register(NewClient("late")))
}
