package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastewise/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)
	require.Equal(t, 1, h.Len())

	h.Broadcast(context.Background(), core.NewCoinsAdded(16, 66))

	received := <-ch
	assert.Equal(t, core.EventCoinsAdded, received.Type)
	assert.Equal(t, int64(66), received.Total)

	h.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "expected channel closed after unsubscribe")
	assert.Zero(t, h.Len())
}

func TestHubFiltersByType(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(4, core.EventLevelUp)
	h.Broadcast(context.Background(), core.NewCoinsAdded(1, 51))
	h.Broadcast(context.Background(), core.NewLevelUp(2))

	got := <-ch
	assert.Equal(t, core.EventLevelUp, got.Type)
	assert.Len(t, ch, 0)
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, _ = h.Subscribe(1)
	h.Broadcast(context.Background(), core.NewLevelUp(2))
	h.Broadcast(context.Background(), core.NewLevelUp(3))
	assert.Equal(t, int64(1), h.Dropped())
}

type fakeSource struct {
	handler func(context.Context, core.Event)
}

func (f *fakeSource) SubscribeAll(h func(context.Context, core.Event)) func() {
	f.handler = h
	return func() { f.handler = nil }
}

func TestHubAttach(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)
	src := &fakeSource{}
	detach := h.Attach(src)
	src.handler(context.Background(), core.NewAchievementUnlocked("first_scan"))
	assert.Equal(t, "first_scan", (<-ch).AchievementID)
	detach()
	assert.Nil(t, src.handler)
}

func TestMarshalJSON(t *testing.T) {
	b := MarshalJSON(core.NewRewardUnlocked(core.RewardSticker, "earth", 15, 35))
	var out core.Event
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "earth", out.RewardID)
	assert.Equal(t, core.RewardSticker, out.RewardKind)
	assert.Equal(t, int64(-15), out.Delta)
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub()
	id, a := h.Subscribe(1)
	_, b := h.Subscribe(1, core.EventLevelUp)

	h.Close()
	_, okA := <-a
	_, okB := <-b
	assert.False(t, okA)
	assert.False(t, okB)
	assert.Zero(t, h.Len())

	// unsubscribing after close is a no-op
	h.Unsubscribe(id)
}
