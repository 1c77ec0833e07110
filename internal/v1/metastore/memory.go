package metastore

import (
	"context"
	"sync"
)

// Memory is the local-map MetaStore backend (spec §4.3.2): a concurrent
// hash of identity to Record. unique_session_count materializes the
// session_id set on demand; online stats are not persisted here since a
// single-process deployment can always fall back to the live count.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty in-memory MetaStore.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func cloneRoomJoinedAt(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (m *Memory) UpsertIdentity(_ context.Context, sid, sessionID string, nowMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, exists := m.records[sid]
	if !exists {
		rec = Record{
			Identity:      sid,
			ConnectedAtMs: nowMs,
			RoomJoinedAt:  make(map[string]int64),
		}
	}
	rec.SessionID = sessionID
	rec.UpdatedAtMs = nowMs
	m.records[sid] = rec
	return nil
}

func (m *Memory) SetSessionID(_ context.Context, sid, sessionID string, nowMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sid]
	if !ok {
		return nil
	}
	rec.SessionID = sessionID
	rec.UpdatedAtMs = nowMs
	m.records[sid] = rec
	return nil
}

func (m *Memory) JoinRoom(_ context.Context, sid, room string, nowMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sid]
	if !ok {
		return nil
	}
	if rec.RoomJoinedAt == nil {
		rec.RoomJoinedAt = make(map[string]int64)
	}
	rec.RoomJoinedAt[room] = nowMs
	rec.UpdatedAtMs = nowMs
	m.records[sid] = rec
	return nil
}

func (m *Memory) LeaveRoom(_ context.Context, sid, room string, nowMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sid]
	if !ok {
		return nil
	}
	delete(rec.RoomJoinedAt, room)
	rec.UpdatedAtMs = nowMs
	m.records[sid] = rec
	return nil
}

func (m *Memory) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sid)
	return nil
}

func (m *Memory) UniqueSessionCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{}, len(m.records))
	for _, rec := range m.records {
		seen[rec.SessionID] = struct{}{}
	}
	return len(seen), nil
}

func (m *Memory) TouchBySession(_ context.Context, sessionID string, nowMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid, rec := range m.records {
		if rec.SessionID == sessionID {
			rec.UpdatedAtMs = nowMs
			m.records[sid] = rec
		}
	}
	return nil
}

func (m *Memory) RoomPresence(_ context.Context, room string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if _, ok := rec.RoomJoinedAt[room]; ok {
			out = append(out, Record{
				Identity:      rec.Identity,
				SessionID:     rec.SessionID,
				ConnectedAtMs: rec.ConnectedAtMs,
				UpdatedAtMs:   rec.UpdatedAtMs,
				RoomJoinedAt:  cloneRoomJoinedAt(rec.RoomJoinedAt),
			})
		}
	}
	return out, nil
}

func (m *Memory) FindBySession(_ context.Context, sessionID string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// UpdateOnlineStats is a no-op: the memory backend doesn't persist daily
// stats, per spec §4.3.2.
func (m *Memory) UpdateOnlineStats(_ context.Context, _ int) error {
	return nil
}

// OnlineStatsToday reports unsupported; callers fall back to the live
// online count.
func (m *Memory) OnlineStatsToday(_ context.Context) (OnlineStats, bool, error) {
	return OnlineStats{}, false, nil
}
