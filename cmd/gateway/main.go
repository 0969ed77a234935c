package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/ingest"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/session"
	"github.com/shubham-shewale/market-analytics/pkg/config"
)

func main() {
	// 1. Initialize Zap Logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	// 2. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// 3. Switch to the configured logger
	configured, err := config.NewLogger(cfg.Logger)
	if err != nil {
		logger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	logger = configured
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	store := repository.NewRedisStore(rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tickers := protocol.NewTickerSet(cfg.Gateway.ValidTickers)
	wsHub := hub.NewHub(store, logger, tickers)
	go wsHub.Run(ctx)

	mux := http.NewServeMux()
	ingest.NewHandler(logger, store, tickers).Register(mux)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}
		session.New(conn, wsHub, logger, session.DefaultOptions()).Start()
	})

	srv := &http.Server{Addr: cfg.Gateway.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Gateway Started", zap.String("port", cfg.Gateway.Port), zap.Int("tickers", len(tickers)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
