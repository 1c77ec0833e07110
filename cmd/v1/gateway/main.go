package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	otelginmiddleware "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/config"
	"github.com/Akuma-real/ActiveNow/internal/v1/gateway"
	"github.com/Akuma-real/ActiveNow/internal/v1/health"
	"github.com/Akuma-real/ActiveNow/internal/v1/httpapi"
	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/metastore"
	"github.com/Akuma-real/ActiveNow/internal/v1/middleware"
	"github.com/Akuma-real/ActiveNow/internal/v1/originpolicy"
	"github.com/Akuma-real/ActiveNow/internal/v1/ratelimit"
	"github.com/Akuma-real/ActiveNow/internal/v1/tracing"
)

func main() {
	_ = godotenv.Load() // optional in production; missing .env is not an error

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		panic(err)
	}
	ctx := context.Background()

	tracingEnabled := false
	if cfg.OtelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "presence-gateway", cfg.OtelCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to initialize exporter", zap.Error(err))
		} else {
			tracingEnabled = true
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logging.Warn(ctx, "tracer shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	var redisClient *redis.Client
	var meta metastore.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logging.Fatal(ctx, "invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		meta = metastore.NewRedis(redisClient)
		logging.Info(ctx, "metastore backend selected", zap.String("backend", "redis"))
	} else {
		meta = metastore.NewMemory()
		logging.Info(ctx, "metastore backend selected", zap.String("backend", "memory"))
	}

	hub := gateway.New(cfg.PresenceTTL, cfg.PingInterval, meta, originpolicy.New(cfg.AllowedOrigins))

	runCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(runCtx)

	limiter, err := ratelimit.New(cfg.RateLimitWsIP, cfg.RateLimitUpdateIP, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if tracingEnabled {
		router.Use(otelginmiddleware.Middleware("presence-gateway"))
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "x-socket-session-id")
	router.Use(cors.New(corsConfig))

	healthHandler := health.NewHandler(redisClient)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpapi.New(hub, limiter).Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "gateway server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "gateway server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down gateway server")

	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "gateway server forced to shut down", zap.Error(err))
	}
	logging.Info(ctx, "gateway server exited")
}
