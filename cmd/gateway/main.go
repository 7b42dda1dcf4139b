package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/blob"
	"github.com/aiasylum/sanctuary/pkg/gateway"
	"github.com/aiasylum/sanctuary/pkg/kv"
	"github.com/aiasylum/sanctuary/pkg/logging"
)

func setupLogger() *logging.ColoredLogger {
	logger, err := logging.NewColoredLogger(logging.ComponentGeneral, true)
	if err != nil {
		panic(err)
	}
	return logger
}

// buildStore connects to redis when configured, otherwise falls back to the
// in-memory store. The fallback keeps local development working but loses
// all records on restart.
func buildStore(logger *logging.ColoredLogger, redisURL string) kv.Store {
	if redisURL == "" {
		logger.ComponentWarn(logging.ComponentKV, "REDIS_URL not set, using in-memory store (records will not survive restarts)")
		return kv.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := kv.NewRedisStore(ctx, redisURL, logger)
	if err != nil {
		logger.ComponentWarn(logging.ComponentKV, "redis unavailable, falling back to in-memory store", zap.Error(err))
		return kv.NewMemoryStore()
	}
	return store
}

func main() {
	logger := setupLogger()
	cfg := parseConfig(logger)

	store := buildStore(logger, cfg.RedisURL)

	blobs, err := blob.NewClient(blob.Config{
		BaseURL:     cfg.BlobBaseURL,
		Token:       cfg.BlobToken,
		TokenSecret: cfg.BlobTokenSecret,
	})
	if err != nil {
		logger.ComponentError(logging.ComponentBlob, "failed to initialize blob client", zap.Error(err))
		os.Exit(1)
	}

	g := gateway.New(logger, &cfg.Gateway, store, blobs)

	server := &http.Server{
		Addr:    cfg.Gateway.ListenAddr,
		Handler: g.Routes(),
	}

	go func() {
		logger.ComponentInfo(logging.ComponentGateway, "Sanctuary gateway starting",
			zap.String("addr", cfg.Gateway.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ComponentError(logging.ComponentGateway, "HTTP server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.ComponentInfo(logging.ComponentGateway, "Shutting down gateway HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.ComponentError(logging.ComponentGateway, "HTTP server shutdown error", zap.Error(err))
	}
	logger.ComponentInfo(logging.ComponentGateway, "Gateway shutdown complete")
}
