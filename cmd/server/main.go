package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"msgrelay/config"
	"msgrelay/internal/center"
	"msgrelay/internal/queue"
	"msgrelay/internal/route"
	"msgrelay/internal/server"
	"msgrelay/internal/wsadapter"
	"msgrelay/pkg/jwt"
	"msgrelay/pkg/log"
	"msgrelay/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		return
	}

	logger := log.Init(log.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	ctx := context.Background()
	logger.Info(ctx, "Starting msgrelay...")

	redisClient, err := redis.NewClient(redis.Config{
		Host:            cfg.Redis.Host,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		UseTLS:          cfg.Redis.UseTLS,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		PoolSize:        cfg.Redis.PoolSize,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		ConnMaxIdleTime: cfg.Redis.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Redis.ConnMaxLifetime,
	})
	if err != nil {
		logger.Errorf(ctx, "Failed to connect to Redis: %v", err)
		return
	}
	defer redisClient.Close()
	logger.Infof(ctx, "Redis connected successfully to %s", cfg.Redis.Host)

	dialListener := func() (*goredis.Client, error) {
		opts := &goredis.Options{
			Addr:     cfg.Redis.Host,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: 1,
		}
		if cfg.Redis.UseTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := goredis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("dial listener connection: %w", err)
		}
		return client, nil
	}

	chain := buildRouteChain(ctx, cfg, redisClient, logger)

	queueOpts := queue.Options{
		BlockTimeout:  cfg.Relay.BlockTimeout,
		CloseSentinel: cfg.Relay.CloseSentinel,
	}

	var q queue.Queue
	mode := "best-effort"
	if cfg.Relay.Reliable {
		mode = "reliable"
		q = queue.NewReliableQueue(redisClient.Client, dialListener, queueOpts, logger)
	} else {
		q = queue.NewBestEffortQueue(redisClient.Client, dialListener, queueOpts, logger)
	}
	logger.Infof(ctx, "Queue running in %s mode", mode)

	msgCenter := center.New(q, chain, logger, cfg.Relay.PostProcessLimit)

	var jwtValidator *jwt.Validator
	if cfg.JWT.SecretKey != "" {
		jwtValidator = jwt.NewValidator(jwt.Config{SecretKey: cfg.JWT.SecretKey})
	}

	wsHandler := wsadapter.NewHandler(
		msgCenter,
		jwtValidator,
		logger,
		wsadapter.Config{
			PongWait:        cfg.WebSocket.PongWait,
			PingPeriod:      cfg.WebSocket.PingPeriod,
			WriteWait:       cfg.WebSocket.WriteWait,
			MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			MaxConnections:  cfg.WebSocket.MaxConnections,
		},
		wsadapter.Origins{
			Allowed:        cfg.CORS.AllowedOrigins,
			AllowLocalhost: cfg.CORS.AllowLocalhost,
			PrivateSubnets: cfg.CORS.PrivateSubnets,
		},
		cfg.Relay.ChannelQueryParam,
	)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	wsHandler.SetupRoutes(router, "/ws")

	srv := server.New(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Router:      router,
		Logger:      logger,
		RedisClient: redisClient,
		Stats:       wsHandler,
		Mode:        mode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Errorf(ctx, "Server error: %v", err)
		}
	}()
	logger.Infof(ctx, "msgrelay listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(ctx, "Error shutting down server: %v", err)
	}

	logger.Info(ctx, "Server shutdown complete")
}

// buildRouteChain installs the built-in routes, ordered either by an
// optional routes.toml manifest or by the default order (direct only)
// when none is configured (spec SPEC_FULL §2 domain stack wiring).
func buildRouteChain(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger log.Logger) *route.Chain {
	chain := route.NewChain(logger)

	names := []string{"direct"}
	if cfg.Relay.RoutesManifest != "" {
		manifest, err := route.LoadManifest(cfg.Relay.RoutesManifest)
		if err != nil {
			logger.Warnf(ctx, "routes manifest: %v, falling back to default chain", err)
		} else if len(manifest.Names()) > 0 {
			names = manifest.Names()
		}
	}

	for _, name := range names {
		switch name {
		case "direct":
			chain.Add(route.NewDirectRoute())
		case "blocklist":
			blocklist := route.NewRedisBlocklist(redisClient.Client, "msgrelay:blocklist")
			chain.Add(route.NewBlocklistRoute(blocklist, cfg.Relay.BlocklistTTL))
		default:
			logger.Warnf(ctx, "routes manifest: unknown route %q, skipping", name)
		}
	}

	return chain
}
