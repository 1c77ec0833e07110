package metastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUpsertThenSetSessionID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertIdentity(ctx, "sid-1", "sid-1", 100))
	require.NoError(t, m.SetSessionID(ctx, "sid-1", "session-a", 200))

	rec, ok, err := m.FindBySession(ctx, "session-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sid-1", rec.Identity)
	assert.EqualValues(t, 100, rec.ConnectedAtMs)
	assert.EqualValues(t, 200, rec.UpdatedAtMs)
}

func TestMemorySetSessionIDOnUnknownIdentityIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SetSessionID(ctx, "ghost", "session-a", 1))

	_, ok, _ := m.FindBySession(ctx, "session-a")
	assert.False(t, ok)
}

func TestMemoryUniqueSessionCountCollapsesSharedSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertIdentity(ctx, "conn-a", "conn-a", 1))
	require.NoError(t, m.UpsertIdentity(ctx, "conn-b", "conn-b", 1))
	n, err := m.UniqueSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// conn-b adopts conn-a's session id: P7, count collapses by one.
	require.NoError(t, m.SetSessionID(ctx, "conn-b", "conn-a", 2))
	n, err = m.UniqueSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryJoinLeaveRoomAndRoomPresence(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertIdentity(ctx, "sid-1", "sid-1", 1))
	require.NoError(t, m.JoinRoom(ctx, "sid-1", "alpha", 10))

	presence, err := m.RoomPresence(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, presence, 1)
	assert.Equal(t, "sid-1", presence[0].Identity)

	require.NoError(t, m.LeaveRoom(ctx, "sid-1", "alpha", 20))
	presence, err = m.RoomPresence(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, presence)
}

func TestMemoryClearRemovesRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertIdentity(ctx, "sid-1", "sid-1", 1))
	require.NoError(t, m.Clear(ctx, "sid-1"))

	n, _ := m.UniqueSessionCount(ctx)
	assert.Equal(t, 0, n)
}

func TestMemoryOnlineStatsTodayUnsupported(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpdateOnlineStats(ctx, 5))

	_, ok, err := m.OnlineStatsToday(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
