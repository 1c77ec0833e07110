package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akuma-real/ActiveNow/internal/v1/events"
	"github.com/Akuma-real/ActiveNow/internal/v1/metastore"
	"github.com/Akuma-real/ActiveNow/internal/v1/presence"
)

// fakeClock lets tests control wall-clock and monotonic time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1000, 0)} }
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
func (c *fakeClock) NowMillis() int64 { return c.Now().UnixMilli() }

// sequentialIDs mints predictable identities for assertions.
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) NewSid() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "sid-" + string(rune('0'+g.n))
}

// fakeConn is a scripted Conn: reads come from an inbound queue (closed by
// sending a read error), writes are captured for assertions.
type fakeConn struct {
	mu      sync.Mutex
	reads   chan []byte
	readErr chan error
	writes  [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 16), readErr: make(chan error, 1)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.reads:
		return TextMessage, data, nil
	case err := <-c.readErr:
		return 0, nil, err
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), data...)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) Close() error                              { c.closed = true; return nil }

func (c *fakeConn) sendInbound(t *testing.T, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	c.reads <- raw
}

func (c *fakeConn) disconnect(err error) {
	c.readErr <- err
}

func (c *fakeConn) writtenFrames() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.writes))
	for _, w := range c.writes {
		var m map[string]any
		if json.Unmarshal(w, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

type closedErr struct{}

func (closedErr) Error() string { return "connection closed" }

func newTestDeps(clk *fakeClock) (*Deps, *metastore.Memory) {
	meta := metastore.NewMemory()
	return &Deps{
		Clock:        clk,
		IDGen:        &sequentialIDs{},
		Meta:         meta,
		Rooms:        presence.NewRegistry(30*time.Second, clk),
		GlobalBus:    presence.NewBus(),
		OnlineLatch:  presence.NewLatch(0),
		TTL:          30 * time.Second,
		PingInterval: 0,
	}, meta
}

func TestRunRoomSendsHelloThenCleansUpOnDisconnect(t *testing.T) {
	clk := newFakeClock()
	deps, meta := newTestDeps(clk)
	conn := newFakeConn()

	done := make(chan struct{})
	go func() {
		deps.RunRoom(context.Background(), conn, "alpha", "")
		close(done)
	}()

	conn.disconnect(closedErr{})
	<-done

	frames := conn.writtenFrames()
	require.NotEmpty(t, frames)
	assert.Equal(t, "hello", frames[0]["type"])
	assert.EqualValues(t, 1, frames[0]["count"])
	assert.EqualValues(t, 30, frames[0]["ttl"])

	room, ok := deps.Rooms.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, 0, room.EffectiveCount(), "leaving must remove the member")

	n, _ := meta.UniqueSessionCount(context.Background())
	assert.Equal(t, 0, n, "clear must remove the metadata record")
}

func TestRunRoomHeartbeatDoesNotDisconnect(t *testing.T) {
	clk := newFakeClock()
	deps, _ := newTestDeps(clk)
	conn := newFakeConn()

	done := make(chan struct{})
	go func() {
		deps.RunRoom(context.Background(), conn, "alpha", "")
		close(done)
	}()

	conn.sendInbound(t, events.InboundFrame{Type: events.InboundHeartbeat})
	time.Sleep(20 * time.Millisecond)
	conn.disconnect(closedErr{})
	<-done
}

func TestRunWebSendsGatewayConnectGreeting(t *testing.T) {
	clk := newFakeClock()
	deps, _ := newTestDeps(clk)
	conn := newFakeConn()

	done := make(chan struct{})
	go func() {
		deps.RunWeb(context.Background(), conn, "")
		close(done)
	}()

	conn.disconnect(closedErr{})
	<-done

	frames := conn.writtenFrames()
	require.NotEmpty(t, frames)
	assert.Equal(t, string(events.GatewayConnect), frames[0]["type"])
	assert.Equal(t, gatewayGreeting, frames[0]["data"])
}

func TestRunWebPublishesVisitorOfflineOnClose(t *testing.T) {
	clk := newFakeClock()
	deps, _ := newTestDeps(clk)
	conn := newFakeConn()

	watcherCh, unsubscribe := deps.GlobalBus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		deps.RunWeb(context.Background(), conn, "visitor-1")
		close(done)
	}()

	conn.disconnect(closedErr{})
	<-done

	select {
	case evt := <-watcherCh:
		var envelope map[string]any
		require.NoError(t, json.Unmarshal([]byte(evt), &envelope))
		assert.Equal(t, string(events.VisitorOffline), envelope["type"])
	case <-time.After(time.Second):
		t.Fatal("expected a VISITOR_OFFLINE event on close")
	}
}
