// Package metastore implements the MetaStore capability (spec §4.3): the
// per-identity session/room-join metadata record, unique-session counting,
// and daily online statistics, behind a single interface with two
// implementations — an in-memory map and an external Redis hash backend —
// following the trait-object storage boundary pattern from the teacher's
// bus.Service (Redis-backed, circuit-breaker-wrapped) generalized beyond a
// single pub/sub concern.
package metastore

import "context"

// Record is the metadata the gateway keeps per connection identity.
type Record struct {
	Identity      string           `json:"identity"`
	SessionID     string           `json:"sessionId"`
	ConnectedAtMs int64            `json:"connectedAtMs"`
	UpdatedAtMs   int64            `json:"updatedAtMs"`
	RoomJoinedAt  map[string]int64 `json:"roomJoinedAt"`
}

// OnlineStats is the persisted daily max/total pair (spec §4.3.1).
type OnlineStats struct {
	Max   int
	Total int
}

// Store is the MetaStore capability: every operation may suspend (I/O to a
// remote backend) and none propagate backend failures to callers beyond
// upsert/set, which must appear consistent (spec §7).
type Store interface {
	// UpsertIdentity creates or updates the record for sid: sets session_id
	// and updated_at, preserving connected_at if the record already exists.
	UpsertIdentity(ctx context.Context, sid, sessionID string, nowMs int64) error

	// SetSessionID updates session_id and updated_at for an existing sid; a
	// no-op if sid is unknown.
	SetSessionID(ctx context.Context, sid, sessionID string, nowMs int64) error

	// JoinRoom records room_joined_at[room] = nowMs for an existing sid; a
	// no-op if sid is unknown.
	JoinRoom(ctx context.Context, sid, room string, nowMs int64) error

	// LeaveRoom removes room from sid's room_joined_at; a no-op if sid is
	// unknown.
	LeaveRoom(ctx context.Context, sid, room string, nowMs int64) error

	// Clear removes sid's record entirely.
	Clear(ctx context.Context, sid string) error

	// UniqueSessionCount returns the cardinality of distinct session_ids
	// across all records.
	UniqueSessionCount(ctx context.Context) (int, error)

	// TouchBySession bumps updated_at on every record whose session_id
	// matches sessionID.
	TouchBySession(ctx context.Context, sessionID string, nowMs int64) error

	// RoomPresence returns every record with room in its room_joined_at set.
	RoomPresence(ctx context.Context, room string) ([]Record, error)

	// FindBySession returns any one record matching sessionID, or ok=false
	// if none exists.
	FindBySession(ctx context.Context, sessionID string) (rec Record, ok bool, err error)

	// UpdateOnlineStats folds an online-count observation into today's
	// max/total. A no-op for backends that don't persist stats.
	UpdateOnlineStats(ctx context.Context, online int) error

	// OnlineStatsToday returns today's persisted max/total, or ok=false if
	// the backend doesn't support stats.
	OnlineStatsToday(ctx context.Context) (stats OnlineStats, ok bool, err error)
}
