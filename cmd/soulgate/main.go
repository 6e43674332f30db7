package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/soulforge-labs/soulgate/adapters/events"
	"github.com/soulforge-labs/soulgate/adapters/ratelimit"
	"github.com/soulforge-labs/soulgate/adapters/store"
	"github.com/soulforge-labs/soulgate/internal/config"
	"github.com/soulforge-labs/soulgate/internal/logger"
	"github.com/soulforge-labs/soulgate/ports"
	"github.com/soulforge-labs/soulgate/service"
	transport "github.com/soulforge-labs/soulgate/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogger, err := logger.New(&cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	if cfg.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		challenges ports.ChallengeStore
		sessions   ports.SessionStore
		limiter    ports.RateLimiter
		publisher  message.Publisher
	)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slogger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			slogger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		challenges = store.NewRedisChallengeStore(client)
		sessions = store.NewRedisSessionStore(client)
		limiter = ratelimit.NewRedisRateLimiter(client)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NewSlogLogger(slogger),
		)
		if err != nil {
			slogger.Error("failed to create redis publisher", "error", err)
			os.Exit(1)
		}

		slogger.Info("using redis backend")
	} else {
		challenges = store.NewMemoryChallengeStore()
		sessions = store.NewMemorySessionStore()
		limiter = ratelimit.NewMemoryRateLimiter()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(slogger))

		slogger.Info("using in-memory backend, sessions are lost on restart")
	}

	authService := service.NewAuthService(
		challenges,
		sessions,
		events.NewWatermillPublisher(publisher),
		slogger,
		service.Config{
			ChallengeTTL: cfg.Auth.ChallengeTTL,
			AccessTTL:    cfg.Auth.AccessTTL,
			RefreshTTL:   cfg.Auth.RefreshTTL,
		},
	)

	quotas := transport.DefaultQuotas()
	if cfg.RateLimit.AuthPerMinute > 0 {
		quotas.Auth.MaxRequests = cfg.RateLimit.AuthPerMinute
	}
	if cfg.RateLimit.StatusPerMinute > 0 {
		quotas.Status.MaxRequests = cfg.RateLimit.StatusPerMinute
	}
	if cfg.RateLimit.APIAuthPerHour > 0 {
		quotas.APIAuth.MaxRequests = cfg.RateLimit.APIAuthPerHour
	}
	if cfg.RateLimit.APIAnonPerHour > 0 {
		quotas.APIAnon.MaxRequests = cfg.RateLimit.APIAnonPerHour
	}

	go authService.RunSweeper(ctx, cfg.Auth.SweepInterval)
	go runLimiterSweeper(ctx, limiter, cfg.Auth.SweepInterval, slogger)

	router := transport.SetupRouter(authService, limiter, quotas, slogger)

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		slogger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("shutdown failed", "error", err)
	}
}

func runLimiterSweeper(ctx context.Context, limiter ports.RateLimiter, interval time.Duration, logger *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := limiter.SweepExpired(ctx); err != nil {
				logger.Warn("rate limiter sweep failed", "error", err)
			}
		}
	}
}
