package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akuma-real/ActiveNow/internal/v1/metastore"
	"github.com/Akuma-real/ActiveNow/internal/v1/originpolicy"
)

func TestFlushOnlineStatsOnlyWritesOnChange(t *testing.T) {
	meta := metastore.NewMemory()
	h := New(30*time.Second, 0, meta, originpolicy.New(nil))
	ctx := context.Background()

	h.flushOnlineStats(ctx) // no change from initial 0 -> no-op, no crash

	h.Online.Set(3)
	h.flushOnlineStats(ctx)
	assert.Equal(t, 3, h.lastFlushed)
}

func TestHubRunStopsOnContextCancel(t *testing.T) {
	meta := metastore.NewMemory()
	h := New(30*time.Second, 0, meta, originpolicy.New(nil))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestSessionsExposesWiredDeps(t *testing.T) {
	meta := metastore.NewMemory()
	h := New(30*time.Second, 0, meta, originpolicy.New(nil))
	deps := h.Sessions()

	require.NotNil(t, deps)
	assert.Same(t, h.Rooms, deps.Rooms)
	assert.Same(t, h.GlobalBus, deps.GlobalBus)
	assert.Same(t, h.Online, deps.OnlineLatch)
}
