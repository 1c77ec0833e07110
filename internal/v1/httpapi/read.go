package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/events"
	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
)

const (
	defaultActiveRoomsLimit = 10
	maxActiveRoomsLimit     = 100
)

// handleActiveRooms answers /v1/rooms/active?limit=N with the busiest rooms,
// sorted by count descending then name ascending (spec §6). path and title
// default to the room name, per the original gateway's behavior.
func (a *API) handleActiveRooms(c *gin.Context) {
	limit := defaultActiveRoomsLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxActiveRoomsLimit {
		limit = maxActiveRoomsLimit
	}

	all := a.hub.Rooms.SnapshotCounts()
	if limit < len(all) {
		all = all[:limit]
	}

	rooms := make([]gin.H, 0, len(all))
	for _, rc := range all {
		rooms = append(rooms, gin.H{
			"room":  rc.Name,
			"count": rc.Count,
			"path":  rc.Name,
			"title": rc.Name,
		})
	}
	c.JSON(http.StatusOK, rooms)
}

// handleActivityRooms answers /v1/activity/rooms with every currently
// non-empty room, both as a flat name list and a name->count map.
func (a *API) handleActivityRooms(c *gin.Context) {
	all := a.hub.Rooms.SnapshotCounts()
	names := make([]string, 0, len(all))
	counts := make(map[string]int, len(all))
	for _, rc := range all {
		names = append(names, rc.Name)
		counts[rc.Name] = rc.Count
	}
	c.JSON(http.StatusOK, gin.H{"rooms": names, "room_count": counts})
}

// handleActivityPresence answers /v1/activity/presence?room_name=R with
// every metastore record currently joined to that room.
func (a *API) handleActivityPresence(c *gin.Context) {
	room := c.Query("room_name")
	if room == "" || !roomNamePattern.MatchString(room) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing room_name"})
		return
	}

	records, err := a.hub.Meta.RoomPresence(c.Request.Context(), room)
	if err != nil {
		logging.Warn(c.Request.Context(), "room presence lookup failed", zap.Error(err))
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		entry := gin.H{"identity": rec.Identity, "updated_at": rec.UpdatedAtMs}
		if joinedAt, ok := rec.RoomJoinedAt[room]; ok {
			entry["joined_at"] = joinedAt
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

// presenceUpdateBody is the request shape for POST /v1/activity/presence/update.
type presenceUpdateBody struct {
	RoomName    string  `json:"room_name"`
	DisplayName *string `json:"display_name"`
	Position    *int    `json:"position"`
}

// handlePresenceUpdate relays a display-name/position update to every
// listener of a room, keyed by the caller's x-socket-session-id. A room
// with zero live members is a silent no-op (no event to relay to).
func (a *API) handlePresenceUpdate(c *gin.Context) {
	var body presenceUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil || body.RoomName == "" || !roomNamePattern.MatchString(body.RoomName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID := c.GetHeader(headerSessionID)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing x-socket-session-id header"})
		return
	}

	room, ok := a.hub.Rooms.Get(body.RoomName)
	if !ok || room.EffectiveCount() == 0 {
		c.String(http.StatusOK, "ok")
		return
	}

	ctx := c.Request.Context()
	rec, found, err := a.hub.Meta.FindBySession(ctx, sessionID)
	if err != nil {
		logging.Warn(ctx, "presence update session lookup failed", zap.Error(err))
	}
	if !found {
		c.String(http.StatusOK, "ok")
		return
	}

	room.Publish(events.Format(events.ActivityUpdatePresence, events.UpdatePresencePayload{
		Identity:    rec.Identity,
		RoomName:    body.RoomName,
		UpdatedAt:   time.Now().UnixMilli(),
		DisplayName: body.DisplayName,
		Position:    body.Position,
	}))
	c.String(http.StatusOK, "ok")
}

// onlineTodayResponse is the shape of /v1/metrics/online/today.
type onlineTodayResponse struct {
	Date    string `json:"date"`
	Max     int    `json:"max"`
	Total   int    `json:"total"`
	Backend string `json:"backend"`
}

// handleOnlineToday answers /v1/metrics/online/today. When the metastore
// backend doesn't persist daily stats (the in-memory backend), it reports
// the current online count as the max and zero total (spec §4.3.2).
func (a *API) handleOnlineToday(c *gin.Context) {
	ctx := c.Request.Context()
	stats, ok, err := a.hub.Meta.OnlineStatsToday(ctx)
	if err != nil {
		logging.Warn(ctx, "online stats lookup failed", zap.Error(err))
	}

	resp := onlineTodayResponse{Date: time.Now().Format("2006-01-02")}
	if ok {
		resp.Backend = "redis"
		resp.Max = stats.Max
		resp.Total = stats.Total
	} else {
		resp.Backend = "memory"
		resp.Max = a.hub.Online.Value()
	}
	c.JSON(http.StatusOK, resp)
}

// handleOnline answers /v1/metrics/online with the current global online
// visitor count.
func (a *API) handleOnline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": a.hub.Online.Value()})
}
