package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/events"
	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metrics"
)

// gatewayGreeting is the fixed human-readable GATEWAY_CONNECT payload,
// matching original_source's constant-greeting pattern rather than a
// structured object (spec §4.7, §6).
const gatewayGreeting = "Connected to the visitor gateway"

// RunWeb drives one web-variant connection end to end: no room membership,
// just the global visitor feed (spec §4.7). It blocks until the connection
// closes for any reason.
func (d *Deps) RunWeb(ctx context.Context, conn Conn, sessionIDHint string) {
	sid := d.IDGen.NewSid()
	nowMs := d.Clock.NowMillis()
	sessionID := sessionIDHint
	if sessionID == "" {
		sessionID = sid
	}

	ctx = context.WithValue(ctx, logging.UserIDKey, sid)

	if err := d.Meta.UpsertIdentity(ctx, sid, sessionID, nowMs); err != nil {
		logging.Error(ctx, "upsert identity failed, aborting session", zap.Error(err))
		return
	}
	metrics.IncConnection("web")
	defer metrics.DecConnection("web")
	d.recomputeGlobalCount(ctx)

	greeting := events.Format(events.GatewayConnect, gatewayGreeting)
	if conn.WriteMessage(TextMessage, []byte(greeting)) != nil {
		d.closeWeb(ctx, sid, sessionID)
		return
	}

	inbound := make(chan inboundMsg, 8)
	go readLoop(conn, inbound)

	eventCh, unsubscribe := d.GlobalBus.Subscribe()
	defer unsubscribe()

	pingCh, stopPing := pingTicker(d.PingInterval)
	defer stopPing()

	_, changed := d.OnlineLatch.Watch()

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
			if msg.kind == events.InboundUpdateSid {
				if err := d.Meta.SetSessionID(ctx, sid, msg.sessionID, d.Clock.NowMillis()); err != nil {
					logging.Warn(ctx, "set_session_id failed", zap.Error(err))
				} else {
					sessionID = msg.sessionID
				}
				d.recomputeGlobalCount(ctx)
			}
			// hb and anything else: ignored on the web variant.

		case <-changed:
			n, next := d.OnlineLatch.Watch()
			changed = next
			frame := events.Format(events.VisitorOnline, events.VisitorOnlinePayload{
				Online:    n,
				Timestamp: d.Clock.NowMillis(),
			})
			if conn.WriteMessage(TextMessage, []byte(frame)) != nil {
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

	d.closeWeb(ctx, sid, sessionID)
}

func (d *Deps) closeWeb(ctx context.Context, sid, sessionID string) {
	if err := d.Meta.Clear(ctx, sid); err != nil {
		logging.Warn(ctx, "clear metadata failed", zap.Error(err))
	}
	d.recomputeGlobalCount(ctx)

	online := d.OnlineLatch.Value()
	d.GlobalBus.Publish(events.Format(events.VisitorOffline, events.VisitorOfflinePayload{
		Online:    online,
		Timestamp: d.Clock.NowMillis(),
		SessionID: sessionID,
	}))
}
