// Package gateway wires the presence/metastore/session collaborators
// together and runs the background reaper and online-stats flusher (spec
// §4.8), generalizing the teacher's Hub (internal/v1/transport/hub.go) from
// a video-room switchboard into a presence tracker.
package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/clock"
	"github.com/Akuma-real/ActiveNow/internal/v1/idgen"
	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metastore"
	"github.com/Akuma-real/ActiveNow/internal/v1/metrics"
	"github.com/Akuma-real/ActiveNow/internal/v1/originpolicy"
	"github.com/Akuma-real/ActiveNow/internal/v1/presence"
	"github.com/Akuma-real/ActiveNow/internal/v1/session"
)

const backgroundTick = time.Second

// Hub owns every long-lived collaborator the gateway needs: the room
// registry, the metadata store, the origin policy, the global online latch
// and visitor-event bus, and the two background tasks that keep them
// converged.
type Hub struct {
	Rooms     *presence.Registry
	Meta      metastore.Store
	Origins   *originpolicy.Policy
	GlobalBus *presence.Bus
	Online    *presence.Latch

	ttl   time.Duration
	clock clock.Clock

	sessionDeps *session.Deps

	lastFlushed int
}

// New builds a Hub. meta is the selected MetaStore backend (in-memory or
// Redis); origins is the configured whitelist (possibly empty/unconfigured).
func New(ttl, pingInterval time.Duration, meta metastore.Store, origins *originpolicy.Policy) *Hub {
	clk := clock.New()
	h := &Hub{
		Rooms:     presence.NewRegistry(ttl, clk),
		Meta:      meta,
		Origins:   origins,
		GlobalBus: presence.NewBus(),
		Online:    presence.NewLatch(0),
		ttl:       ttl,
		clock:     clk,
	}
	h.sessionDeps = &session.Deps{
		Clock:        clk,
		IDGen:        idgen.New(),
		Meta:         meta,
		Rooms:        h.Rooms,
		GlobalBus:    h.GlobalBus,
		OnlineLatch:  h.Online,
		TTL:          ttl,
		PingInterval: pingInterval,
	}
	return h
}

// Sessions exposes the wired session.Deps for the HTTP upgrade handlers.
func (h *Hub) Sessions() *session.Deps {
	return h.sessionDeps
}

// Run starts the background reaper and online-stats flusher, blocking
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	reaper := time.NewTicker(backgroundTick)
	flusher := time.NewTicker(backgroundTick)
	defer reaper.Stop()
	defer flusher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reaper.C:
			h.Rooms.CleanupAll()
			metrics.ActiveRooms.Set(float64(len(h.Rooms.SnapshotCounts())))
		case <-flusher.C:
			h.flushOnlineStats(ctx)
		}
	}
}

// flushOnlineStats implements the 1-second debounced flush (spec §4.8,
// §4.3.1): only call update_online_stats when the value actually moved
// since the last tick.
func (h *Hub) flushOnlineStats(ctx context.Context) {
	current := h.Online.Value()
	if current == h.lastFlushed {
		return
	}
	h.lastFlushed = current
	if err := h.Meta.UpdateOnlineStats(ctx, current); err != nil {
		logging.Warn(ctx, "online stats flush failed", zap.Error(err))
	}
}
