// Package health exposes liveness/readiness probes, following the
// teacher's handler shape (internal/v1/health/handler.go) with the SFU
// gRPC check dropped (no SFU in this system) and the Redis check
// generalized to whatever client backs the metastore, if any.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
)

// Handler serves liveness and readiness probes.
type Handler struct {
	redisClient *redis.Client // nil when running with the in-memory metastore
}

// NewHandler creates a health handler. redisClient may be nil when the
// gateway is running with the in-memory MetaStore backend.
func NewHandler(redisClient *redis.Client) *Handler {
	return &Handler{redisClient: redisClient}
}

// LivenessResponse is the liveness probe body.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe body.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness reports 200 as long as the process is running; no dependency
// checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports 200 only if every configured dependency is healthy,
// 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"redis": h.checkRedis(ctx)}
	status, code := "ready", http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status, code = "unavailable", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkRedis(ctx context.Context) string {
	if h.redisClient == nil {
		return "healthy" // in-memory metastore has no external dependency
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		logging.Error(ctx, "redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
