package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agenthands/nutrigraph/internal/app"
	"github.com/agenthands/nutrigraph/internal/config"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/agenthands/nutrigraph/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func loadConfig() (*config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	// The server is the backend; it never proxies to another REST backend.
	if cfg.Source == "rest" {
		cfg.Source = "fixture"
	}
	return cfg, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	if cfg.Log.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to initialize", "error", err)
	}
	defer a.Close(ctx)

	srv := server.NewServer(a.Source, server.Options{
		Logger:      lg,
		CORSOrigins: cfg.Server.CORSOrigins,
		Gatherer:    a.Registry,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Starting server", "addr", cfg.Server.Addr, "source", cfg.Source)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Error("Graceful shutdown failed", "error", err)
	}
}
