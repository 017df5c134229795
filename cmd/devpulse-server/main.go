// devpulse-server is the ingestion endpoint: it accepts metric records
// over HTTP, persists them in SQLite, and streams accepted records to
// dashboard clients over websockets.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/devpulse/internal/config"
	"github.com/devpulse/internal/logging"
	"github.com/devpulse/internal/server"
	"github.com/devpulse/internal/store"
)

func main() {
	cfgPath := flag.String("config", "server.yaml", "path to server configuration file")
	flag.Parse()

	cfg, err := config.LoadServer(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Server, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger.Named("store"),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	hub := server.NewHub(logger.Named("hub"))
	go hub.Run()

	registry := prometheus.NewRegistry()
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(st, hub, logger.Named("http"), registry).Handler(),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("ingestion server started", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
