// Package httpapi registers the gateway's HTTP surface: the WebSocket
// upgrade routes and the JSON read endpoints (spec §6), following the
// teacher's gin route-group registration style
// (cmd/v1/session/main.go).
package httpapi

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Akuma-real/ActiveNow/internal/v1/gateway"
	"github.com/Akuma-real/ActiveNow/internal/v1/ratelimit"
)

// roomNamePattern is the room-name grammar from spec §3.
var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_./:@-]{1,256}$`)

// API holds the router's dependencies.
type API struct {
	hub      *gateway.Hub
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader
}

// New builds the HTTP API. limiter may be nil to disable rate limiting.
func New(hub *gateway.Hub, limiter *ratelimit.Limiter) *API {
	a := &API{hub: hub, limiter: limiter}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return hub.Origins.Allow(r.Header.Get(headerOrigin))
		},
	}
	return a
}

// header/query constants for the session-id and origin extraction (spec §4.6/§6).
const (
	headerSessionID = "x-socket-session-id"
	headerOrigin    = "Origin"
	querySessionID  = "socket_session_id"
)

// Register mounts every route this package owns onto r.
func (a *API) Register(r gin.IRouter) {
	r.GET("/v1/ws", a.rateLimited(a.handleRoomUpgrade))
	r.GET("/v1/ws/web", a.rateLimited(a.handleWebUpgrade))
	r.GET("/web", a.rateLimited(a.handleWebUpgrade))
	r.GET("/ws", a.rateLimited(a.handleWebUpgrade))

	r.GET("/v1/rooms/active", a.handleActiveRooms)
	r.GET("/v1/activity/rooms", a.handleActivityRooms)
	r.GET("/v1/activity/presence", a.handleActivityPresence)
	r.POST("/v1/activity/presence/update", a.presenceUpdateMiddleware(), a.handlePresenceUpdate)
	r.GET("/v1/metrics/online/today", a.handleOnlineToday)
	r.GET("/v1/metrics/online", a.handleOnline)
}

func (a *API) rateLimited(h gin.HandlerFunc) gin.HandlerFunc {
	if a.limiter == nil {
		return h
	}
	return func(c *gin.Context) {
		if !a.limiter.AllowUpgrade(c) {
			return
		}
		h(c)
	}
}

func (a *API) presenceUpdateMiddleware() gin.HandlerFunc {
	if a.limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return a.limiter.PresenceUpdateMiddleware()
}

// sessionIDFrom resolves the effective session id hint: header wins,
// then query, then empty (caller falls back to the freshly minted
// identity), per spec §4.6.
func sessionIDFrom(c *gin.Context) string {
	if v := c.GetHeader(headerSessionID); v != "" {
		return v
	}
	return c.Query(querySessionID)
}
