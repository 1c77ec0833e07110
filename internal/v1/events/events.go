// Package events defines the JSON envelope business events travel in and
// the payload shapes for each event kind (spec §4.5, §6).
package events

import "encoding/json"

// Kind enumerates the business event types carried in the envelope's "type"
// field. Distinct from the lowercase "hello"/"sync"/"hb"/"updateSid" frame
// types, which are part of the session protocol rather than business events.
type Kind string

const (
	GatewayConnect          Kind = "GATEWAY_CONNECT"
	VisitorOnline           Kind = "VISITOR_ONLINE"
	VisitorOffline          Kind = "VISITOR_OFFLINE"
	ActivityJoinPresence    Kind = "ACTIVITY_JOIN_PRESENCE"
	ActivityUpdatePresence  Kind = "ACTIVITY_UPDATE_PRESENCE"
	ActivityLeavePresence   Kind = "ACTIVITY_LEAVE_PRESENCE"
)

// Envelope is the fixed wire shape for every outbound business event.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
	Code *int            `json:"code,omitempty"`
}

// Format marshals data into the envelope for kind and returns the final
// wire string. A marshal failure collapses to an empty object rather than
// propagating, matching the "never block the producer" design of the event
// bus this feeds.
func Format(kind Kind, data any) string {
	inner, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	out, err := json.Marshal(Envelope{Type: kind, Data: inner})
	if err != nil {
		return "{}"
	}
	return string(out)
}

// VisitorOnlinePayload is the data shape for VISITOR_ONLINE.
type VisitorOnlinePayload struct {
	Online    int   `json:"online"`
	Timestamp int64 `json:"timestamp"`
}

// VisitorOfflinePayload is the data shape for VISITOR_OFFLINE.
type VisitorOfflinePayload struct {
	Online    int    `json:"online"`
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"sessionId"`
}

// JoinPresencePayload is the data shape for ACTIVITY_JOIN_PRESENCE.
type JoinPresencePayload struct {
	Identity string `json:"identity"`
	RoomName string `json:"roomName"`
	JoinedAt int64  `json:"joinedAt"`
}

// UpdatePresencePayload is the data shape for ACTIVITY_UPDATE_PRESENCE.
type UpdatePresencePayload struct {
	Identity    string  `json:"identity"`
	RoomName    string  `json:"roomName"`
	UpdatedAt   int64   `json:"updatedAt"`
	DisplayName *string `json:"displayName,omitempty"`
	Position    *int    `json:"position,omitempty"`
}

// LeavePresencePayload is the data shape for ACTIVITY_LEAVE_PRESENCE.
type LeavePresencePayload struct {
	Identity string `json:"identity"`
	RoomName string `json:"roomName"`
}

// HelloFrame is the first frame sent to a room-variant session. It is a
// session-protocol frame, not a business event, so it does not go through
// Format/Envelope.
type HelloFrame struct {
	Type  string `json:"type"`
	Sid   string `json:"sid"`
	TTL   int64  `json:"ttl"`
	Count int    `json:"count"`
}

// SyncFrame reports a room's effective count after a count_watch change.
type SyncFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// NewHelloFrame builds the hello frame for a freshly admitted room session.
func NewHelloFrame(sid string, ttlSeconds int64, count int) HelloFrame {
	return HelloFrame{Type: "hello", Sid: sid, TTL: ttlSeconds, Count: count}
}

// NewSyncFrame builds the sync frame sent on a count_watch change.
func NewSyncFrame(count int) SyncFrame {
	return SyncFrame{Type: "sync", Count: count}
}

// InboundKind enumerates the client->server frame discriminators the
// session loop recognizes.
type InboundKind string

const (
	InboundHeartbeat InboundKind = "hb"
	InboundUpdateSid InboundKind = "updateSid"
)

// InboundFrame is the minimal shape every inbound text frame is parsed
// into before dispatch; unrecognized types and malformed frames are
// ignored per spec §7.
type InboundFrame struct {
	Type      InboundKind `json:"type"`
	SessionID string      `json:"sessionId"`
}
