// Package ratelimit throttles WebSocket upgrades and the presence-update
// endpoint, following the teacher's ulule/limiter/v3 wiring
// (internal/v1/ratelimit/limiter.go) but keyed purely by client IP: this
// spec has no authentication, so there is no user subject to key by (spec
// §1 Non-goals).
package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metrics"
)

// Limiter holds the per-IP rate limiter instances guarding WebSocket
// upgrades and the presence-update HTTP endpoint.
type Limiter struct {
	wsUpgrade *limiter.Limiter
	update    *limiter.Limiter
}

// New builds a Limiter. If redisClient is non-nil, limits are shared across
// instances via a Redis store; otherwise they're process-local.
func New(wsUpgradeRate, updateRate string, redisClient *redis.Client) (*Limiter, error) {
	upgradeR, err := limiter.NewRateFromFormatted(wsUpgradeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid ws upgrade rate: %w", err)
	}
	updateR, err := limiter.NewRateFromFormatted(updateRate)
	if err != nil {
		return nil, fmt.Errorf("invalid presence update rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit:v1:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using in-memory store")
	}

	return &Limiter{
		wsUpgrade: limiter.New(store, upgradeR),
		update:    limiter.New(store, updateR),
	}, nil
}

// AllowUpgrade reports whether a WebSocket upgrade from ip should proceed;
// on rejection it has already written the 429 response.
func (l *Limiter) AllowUpgrade(c *gin.Context) bool {
	return l.allow(c, l.wsUpgrade, c.ClientIP(), "websocket_upgrade")
}

// PresenceUpdateMiddleware throttles the presence-update POST endpoint by
// client IP.
func (l *Limiter) PresenceUpdateMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c, l.update, c.ClientIP(), "presence_update") {
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(c *gin.Context, lim *limiter.Limiter, key, endpoint string) bool {
	ctx := c.Request.Context()
	// Both limiters share one store, so the endpoint is part of the key to
	// give each endpoint its own per-IP bucket.
	result, err := lim.Get(ctx, endpoint+":"+key)
	if err != nil {
		// Fail open: a degraded rate limit store must not take down a
		// healthy gateway.
		logging.Error(ctx, "rate limiter store failed", zap.Error(err))
		return true
	}

	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(endpoint).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many requests",
			"retry_after": result.Reset,
		})
		return false
	}
	return true
}
