package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/config"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/engine"
	"github.com/blanchy21/TipsterNew-sub000/internal/handlers"
	"github.com/blanchy21/TipsterNew-sub000/internal/middleware"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/stats"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/blanchy21/TipsterNew-sub000/internal/websocket"
	"github.com/redis/go-redis/v9"
)

// app is a fully wired engine ready to serve.
type app struct {
	handler http.Handler
	store   database.Store
	hub     *websocket.Hub
	system  *actor.ActorSystem
	closers []func(ctx context.Context) error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.Log.WithError(err).Fatal("Failed to load configuration")
	}
	utils.InitLogger("tipster-engine", cfg.Log.Level, cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		utils.Log.WithError(err).Fatal("Failed to start engine")
	}

	hubDone := make(chan struct{})
	go a.hub.Run(hubDone)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Log.WithField("addr", serverAddr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	utils.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Log.WithError(err).Warn("HTTP shutdown did not complete")
	}
	close(hubDone)
	a.close(shutdownCtx)
}

// buildApp wires the store, stats cache, actor engine and HTTP routes from cfg.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, closers: []func(context.Context) error{store.Close}}

	metrics := utils.NewMetricsCollector()

	cache, err := openStatsCache(ctx, cfg.Redis)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if cache != nil {
		a.closers = append(a.closers, func(context.Context) error { return cache.Close() })
	}

	a.hub = websocket.NewHub()
	a.system = actor.NewActorSystem()
	eng := engine.NewEngine(a.system, engine.Dependencies{
		Store:      store,
		Aggregator: stats.NewAggregator(store, cache, metrics),
		Rules:      models.NewSportRules(cfg.Feed.PlacingSports),
		PageSize:   cfg.Feed.PageSize,
		Listener:   a.hub,
		Metrics:    metrics,
	})

	server := handlers.NewServer(
		a.system,
		eng,
		store,
		metrics,
		a.hub,
		middleware.NewAuth(cfg.JWTSecret),
		middleware.DefaultCORSConfig(cfg.AllowedOrigins),
		cfg.Server.RequestTimeout,
	)
	server.MetricsEnabled = cfg.Server.MetricsEnabled
	a.hub.OnSessionClosed = server.EndSocketSession
	a.handler = server.Routes()

	utils.Log.WithField("store", cfg.Database.Type).Info("Engine ready")
	return a, nil
}

func openStore(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	switch cfg.Type {
	case "memory":
		utils.Log.Warn("Using in-memory store; data is lost on restart")
		return database.NewMemoryStore(), nil
	case "mongodb":
		return database.NewMongoDB(ctx, cfg.URI, cfg.Name, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Type)
	}
}

// openStatsCache returns nil when no Redis address is configured.
func openStatsCache(ctx context.Context, cfg *config.RedisConfig) (*stats.Cache, error) {
	if cfg.Addr == "" {
		utils.Log.Info("REDIS_ADDR not set, leaderboard cache disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	utils.Log.WithField("addr", cfg.Addr).Info("Leaderboard cache connected")
	return stats.NewCache(client, cfg.LeaderboardTTL), nil
}

func (a *app) close(ctx context.Context) {
	if a.system != nil {
		a.system.Shutdown()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			utils.Log.WithError(err).Warn("Shutdown step failed")
		}
	}
}
