package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	docs "github.com/shaurya35/exness/docs"
	appmarketdata "github.com/shaurya35/exness/internal/application/service/marketdata"
	"github.com/shaurya35/exness/internal/config"
	"github.com/shaurya35/exness/internal/infrastructure/logging"
	inframarketdata "github.com/shaurya35/exness/internal/infrastructure/marketdata"
	infrahttp "github.com/shaurya35/exness/internal/interfaces/http"

	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Host = cfg.HTTP.Addr()

	repo, err := inframarketdata.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init marketdata store: %v", err)
	}
	marketdataService := appmarketdata.NewService(repo)
	defer marketdataService.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	handler := infrahttp.NewHandler(marketdataService, redisClient, cfg.Cache.TTL(), logger)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")
}
