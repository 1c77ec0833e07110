package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metrics"
)

const (
	socketHashKey      = "socket"
	onlineMaxHashKey   = "max_online_count"
	onlineTotalHashKey = "max_online_count:total"
	dayLayout          = "2006-01-02"
)

// Redis is the external-hash MetaStore backend (spec §4.3.2): identity
// records live as JSON-encoded values in a single Redis hash, daily online
// stats live in two date-keyed hashes. Every round trip goes through a
// circuit breaker so a degraded Redis never blocks or crashes a healthy
// WebSocket session, generalizing the resilience pattern the teacher uses
// in its room-event bus (internal/v1/bus/redis.go's gobreaker-wrapped
// Service).
type Redis struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	clock  func() time.Time
}

// NewRedis wraps client in a circuit breaker tuned the way the teacher
// tunes its bus breaker: trip after a run of consecutive failures, probe
// again after a short cooldown. OnStateChange mirrors the breaker's state
// into CircuitBreakerState exactly as the teacher's bus.NewService does.
func NewRedis(client *redis.Client) *Redis {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metastore-redis",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	})
	return &Redis{client: client, cb: cb, clock: time.Now}
}

// recordOp folds an operation's outcome into the MetaStore latency/outcome
// instruments and bumps CircuitBreakerFailures when the breaker itself
// rejected the call, matching the teacher's bus/redis.go call sites.
func (r *Redis) recordOp(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		}
	}
	metrics.MetastoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.MetastoreOperationsTotal.WithLabelValues(op, status).Inc()
}

func (r *Redis) today() string {
	return r.clock().Format(dayLayout)
}

func (r *Redis) readRecord(ctx context.Context, sid string) (Record, bool, error) {
	raw, err := r.client.HGet(ctx, socketHashKey, sid).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *Redis) writeRecord(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, socketHashKey, rec.Identity, raw).Err()
}

// UpsertIdentity must appear consistent to the caller (spec §7): a circuit
// trip or write failure is returned, not swallowed.
func (r *Redis) UpsertIdentity(ctx context.Context, sid, sessionID string, nowMs int64) error {
	start := time.Now()
	_, err := r.cb.Execute(func() (any, error) {
		rec, exists, err := r.readRecord(ctx, sid)
		if err != nil {
			return nil, err
		}
		if !exists {
			rec = Record{Identity: sid, ConnectedAtMs: nowMs, RoomJoinedAt: make(map[string]int64)}
		}
		if rec.RoomJoinedAt == nil {
			rec.RoomJoinedAt = make(map[string]int64)
		}
		rec.SessionID = sessionID
		rec.UpdatedAtMs = nowMs
		return nil, r.writeRecord(ctx, rec)
	})
	r.recordOp("upsert_identity", start, err)
	return err
}

// SetSessionID must also appear consistent to the caller (spec §7).
func (r *Redis) SetSessionID(ctx context.Context, sid, sessionID string, nowMs int64) error {
	start := time.Now()
	_, err := r.cb.Execute(func() (any, error) {
		rec, exists, err := r.readRecord(ctx, sid)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		rec.SessionID = sessionID
		rec.UpdatedAtMs = nowMs
		return nil, r.writeRecord(ctx, rec)
	})
	r.recordOp("set_session_id", start, err)
	return err
}

// swallow executes fn through the breaker and discards any failure: these
// operations are best-effort per spec §7, and a degraded backend must never
// propagate into session teardown or the client-visible path.
func (r *Redis) swallow(ctx context.Context, op string, fn func() error) {
	start := time.Now()
	_, err := r.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	r.recordOp(op, start, err)
	if err != nil {
		logging.Warn(ctx, "metastore redis op degraded", zap.String("op", op), zap.Error(err))
	}
}

func (r *Redis) JoinRoom(ctx context.Context, sid, room string, nowMs int64) error {
	r.swallow(ctx, "join_room", func() error {
		rec, exists, err := r.readRecord(ctx, sid)
		if err != nil || !exists {
			return err
		}
		if rec.RoomJoinedAt == nil {
			rec.RoomJoinedAt = make(map[string]int64)
		}
		rec.RoomJoinedAt[room] = nowMs
		rec.UpdatedAtMs = nowMs
		return r.writeRecord(ctx, rec)
	})
	return nil
}

func (r *Redis) LeaveRoom(ctx context.Context, sid, room string, nowMs int64) error {
	r.swallow(ctx, "leave_room", func() error {
		rec, exists, err := r.readRecord(ctx, sid)
		if err != nil || !exists {
			return err
		}
		delete(rec.RoomJoinedAt, room)
		rec.UpdatedAtMs = nowMs
		return r.writeRecord(ctx, rec)
	})
	return nil
}

func (r *Redis) Clear(ctx context.Context, sid string) error {
	r.swallow(ctx, "clear", func() error {
		return r.client.HDel(ctx, socketHashKey, sid).Err()
	})
	return nil
}

func (r *Redis) allRecords(ctx context.Context) ([]Record, error) {
	raw, err := r.client.HGetAll(ctx, socketHashKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, v := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) UniqueSessionCount(ctx context.Context) (int, error) {
	var n int
	r.swallow(ctx, "unique_session_count", func() error {
		recs, err := r.allRecords(ctx)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(recs))
		for _, rec := range recs {
			seen[rec.SessionID] = struct{}{}
		}
		n = len(seen)
		return nil
	})
	return n, nil
}

func (r *Redis) TouchBySession(ctx context.Context, sessionID string, nowMs int64) error {
	r.swallow(ctx, "touch_by_session", func() error {
		recs, err := r.allRecords(ctx)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.SessionID == sessionID {
				rec.UpdatedAtMs = nowMs
				if err := r.writeRecord(ctx, rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return nil
}

func (r *Redis) RoomPresence(ctx context.Context, room string) ([]Record, error) {
	var out []Record
	r.swallow(ctx, "room_presence", func() error {
		recs, err := r.allRecords(ctx)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if _, ok := rec.RoomJoinedAt[room]; ok {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, nil
}

func (r *Redis) FindBySession(ctx context.Context, sessionID string) (Record, bool, error) {
	var found Record
	var ok bool
	r.swallow(ctx, "find_by_session", func() error {
		recs, err := r.allRecords(ctx)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.SessionID == sessionID {
				found, ok = rec, true
				return nil
			}
		}
		return nil
	})
	return found, ok, nil
}

// UpdateOnlineStats folds an online observation into today's max/total
// hashes (spec §4.3.1): max_online_count[today] = max(existing, online);
// max_online_count:total[today] incremented by one per flush call.
func (r *Redis) UpdateOnlineStats(ctx context.Context, online int) error {
	r.swallow(ctx, "update_online_stats", func() error {
		day := r.today()
		existing, err := r.client.HGet(ctx, onlineMaxHashKey, day).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if online > existing {
			if err := r.client.HSet(ctx, onlineMaxHashKey, day, online).Err(); err != nil {
				return err
			}
		}
		return r.client.HIncrBy(ctx, onlineTotalHashKey, day, 1).Err()
	})
	return nil
}

// OnlineStatsToday returns today's persisted max/total.
func (r *Redis) OnlineStatsToday(ctx context.Context) (OnlineStats, bool, error) {
	var stats OnlineStats
	var ok bool
	r.swallow(ctx, "online_stats_today", func() error {
		day := r.today()
		max, err := r.client.HGet(ctx, onlineMaxHashKey, day).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		total, err := r.client.HGet(ctx, onlineTotalHashKey, day).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		stats = OnlineStats{Max: max, Total: total}
		ok = true
		return nil
	})
	return stats, ok, nil
}
