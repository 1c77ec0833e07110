package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/events"
	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metrics"
	"github.com/Akuma-real/ActiveNow/internal/v1/presence"
)

// RunRoom drives one room-variant connection end to end: Admitted, Running,
// Closing (spec §4.6). It blocks until the connection closes for any
// reason. roomName has already passed room-name validation and origin
// admission by the caller (the HTTP upgrade handler).
func (d *Deps) RunRoom(ctx context.Context, conn Conn, roomName, sessionIDHint string) {
	sid := d.IDGen.NewSid()
	nowMs := d.Clock.NowMillis()
	sessionID := sessionIDHint
	if sessionID == "" {
		sessionID = sid
	}

	ctx = context.WithValue(ctx, logging.RoomIDKey, roomName)
	ctx = context.WithValue(ctx, logging.UserIDKey, sid)

	room := d.Rooms.GetOrCreate(roomName)

	if err := d.Meta.UpsertIdentity(ctx, sid, sessionID, nowMs); err != nil {
		logging.Error(ctx, "upsert identity failed, aborting session", zap.Error(err))
		return
	}
	metrics.IncConnection("room")
	defer metrics.DecConnection("room")

	if err := d.Meta.JoinRoom(ctx, sid, roomName, nowMs); err != nil {
		logging.Warn(ctx, "join_room metadata update failed", zap.Error(err))
	}

	roomCount := room.Join(sid)
	room.Publish(events.Format(events.ActivityJoinPresence, events.JoinPresencePayload{
		Identity: sid,
		RoomName: roomName,
		JoinedAt: nowMs,
	}))
	d.recomputeGlobalCount(ctx)

	hello, err := marshalFrame(events.NewHelloFrame(sid, int64(d.TTL.Seconds()), roomCount))
	if err != nil || conn.WriteMessage(TextMessage, hello) != nil {
		d.closeRoom(ctx, room, roomName, sid)
		return
	}

	inbound := make(chan inboundMsg, 8)
	go readLoop(conn, inbound)

	eventCh, unsubscribe := room.SubscribeEvents()
	defer unsubscribe()

	pingCh, stopPing := pingTicker(d.PingInterval)
	defer stopPing()

	_, changed := room.CountWatch() // current count already sent in hello above

runLoop:
	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				break runLoop
			}
			if msg.err != nil {
				break runLoop
			}
			switch msg.kind {
			case events.InboundHeartbeat:
				room.Heartbeat(sid)
			case events.InboundUpdateSid:
				if err := d.Meta.SetSessionID(ctx, sid, msg.sessionID, d.Clock.NowMillis()); err != nil {
					logging.Warn(ctx, "set_session_id failed", zap.Error(err))
				}
				d.recomputeGlobalCount(ctx)
			}

		case <-changed:
			n, next := room.CountWatch()
			changed = next
			frame, err := marshalFrame(events.NewSyncFrame(n))
			if err != nil || conn.WriteMessage(TextMessage, frame) != nil {
				break runLoop
			}

		case evt, ok := <-eventCh:
			if !ok {
				break runLoop
			}
			if conn.WriteMessage(TextMessage, []byte(evt)) != nil {
				break runLoop
			}

		case <-pingCh:
			if conn.WriteControl(PingMessage, nil, d.Clock.Now().Add(writeWait)) != nil {
				break runLoop
			}
		}
	}

	d.closeRoom(ctx, room, roomName, sid)
}

func (d *Deps) closeRoom(ctx context.Context, room *presence.Room, roomName, sid string) {
	room.Leave(sid)
	room.Publish(events.Format(events.ActivityLeavePresence, events.LeavePresencePayload{
		Identity: sid,
		RoomName: roomName,
	}))
	nowMs := d.Clock.NowMillis()
	if err := d.Meta.LeaveRoom(ctx, sid, roomName, nowMs); err != nil {
		logging.Warn(ctx, "leave_room metadata update failed", zap.Error(err))
	}
	if err := d.Meta.Clear(ctx, sid); err != nil {
		logging.Warn(ctx, "clear metadata failed", zap.Error(err))
	}
	d.recomputeGlobalCount(ctx)
}
