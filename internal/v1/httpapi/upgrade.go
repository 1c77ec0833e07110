package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
)

// handleRoomUpgrade upgrades /v1/ws into a room-variant session. room is
// required and must match roomNamePattern (spec §3, §4.6).
func (a *API) handleRoomUpgrade(c *gin.Context) {
	roomName := c.Query("room")
	if roomName == "" || !roomNamePattern.MatchString(roomName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing room"})
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	a.hub.Sessions().RunRoom(c.Request.Context(), conn, roomName, sessionIDFrom(c))
}

// handleWebUpgrade upgrades /v1/ws/web, /web, and /ws into a web-variant
// (global-only) session.
func (a *API) handleWebUpgrade(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	a.hub.Sessions().RunWeb(c.Request.Context(), conn, sessionIDFrom(c))
}
