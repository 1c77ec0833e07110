// Package session implements the WebSocket connection lifecycle (spec
// §4.6, §4.7): admission has already happened by the time Run* is called,
// so this package owns Admitted → Running → Closing. The running phase is
// a single cooperative multiplexing loop, the idiomatic Go shape of the
// original gateway's tokio::select! loop (original_source/src/gateway.rs
// handle_ws/handle_ws_web), generalized from the teacher's dual
// readPump/writePump goroutines (internal/v1/transport/client.go) into a
// read goroutine feeding one loop that does all the writing, since every
// outbound source here is already a channel.
package session

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/clock"
	"github.com/Akuma-real/ActiveNow/internal/v1/events"
	"github.com/Akuma-real/ActiveNow/internal/v1/idgen"
	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metastore"
	"github.com/Akuma-real/ActiveNow/internal/v1/metrics"
	"github.com/Akuma-real/ActiveNow/internal/v1/presence"
)

// Conn is the subset of *gorilla/websocket.Conn a session needs, narrowed
// for testability the way the teacher's transport.wsConnection interface
// narrows *websocket.Conn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Frame types mirror gorilla/websocket's constants without importing the
// package here, keeping this file's surface dependency-free for tests that
// fake Conn.
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

// Deps are the shared, process-wide collaborators every session needs.
type Deps struct {
	Clock        clock.Clock
	IDGen        idgen.Generator
	Meta         metastore.Store
	Rooms        *presence.Registry
	GlobalBus    *presence.Bus
	OnlineLatch  *presence.Latch
	TTL          time.Duration
	PingInterval time.Duration
}

func (d *Deps) recomputeGlobalCount(ctx context.Context) {
	n, err := d.Meta.UniqueSessionCount(ctx)
	if err != nil {
		logging.Warn(ctx, "unique session count failed", zap.Error(err))
		return
	}
	d.OnlineLatch.Set(n)
	metrics.OnlineVisitors.Set(float64(n))
}

// inboundMsg is one frame read off the wire, or the terminal read error.
type inboundMsg struct {
	kind      events.InboundKind
	sessionID string
	err       error
}

// readLoop continuously reads text frames from conn, parses the ones this
// protocol recognizes, and pushes them onto out. It exits (closing out) on
// any read error, close frame, or end-of-stream, per spec §4.6.
func readLoop(conn Conn, out chan<- inboundMsg) {
	defer close(out)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			out <- inboundMsg{err: err}
			return
		}
		if mt != TextMessage {
			continue // binary frames and pongs are ignored
		}
		var frame events.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			metrics.WebsocketEvents.WithLabelValues("malformed", "error").Inc()
			continue // malformed frame: ignored, connection continues
		}
		switch frame.Type {
		case events.InboundHeartbeat:
			metrics.WebsocketEvents.WithLabelValues("hb", "received").Inc()
			out <- inboundMsg{kind: events.InboundHeartbeat}
		case events.InboundUpdateSid:
			metrics.WebsocketEvents.WithLabelValues("updateSid", "received").Inc()
			out <- inboundMsg{kind: events.InboundUpdateSid, sessionID: frame.SessionID}
		default:
			metrics.WebsocketEvents.WithLabelValues("unknown", "ignored").Inc()
		}
	}
}

// pingTicker returns a channel that fires every interval, or nil (which
// blocks forever in a select) if interval is 0, matching "PING_INTERVAL; 0
// disables" (spec §6).
func pingTicker(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// writeWait bounds how long a control frame write (ping) may take before
// it's considered failed.
const writeWait = 10 * time.Second

// marshalFrame JSON-encodes a session-protocol frame (hello/sync), which
// unlike business events is not wrapped in the events.Envelope.
func marshalFrame(v any) ([]byte, error) {
	return json.Marshal(v)
}
