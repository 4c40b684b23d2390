package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kptv-catalog/work/catalog"
	"kptv-catalog/work/client"
	"kptv-catalog/work/config"
	"kptv-catalog/work/database"
	"kptv-catalog/work/handlers"
	"kptv-catalog/work/logger"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// Set up logging
	logger.SetLevel(cfg.LogLevel)
	logger.Info("kptv-catalog %s starting", Version)

	// Initialize HTTP client
	httpClient := client.NewHeaderSettingClient()

	// Open persistence when configured
	var db *database.DB
	if cfg.DatabasePath != "" {
		var err error
		db, err = database.Open(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open database: %v", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	// Create the aggregator
	agg, err := catalog.New(cfg, httpClient, db)
	if err != nil {
		logger.Error("failed to create aggregator: %v", err)
		os.Exit(1)
	}
	defer agg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial ingest, then warm the guide cache
	agg.IngestAll(ctx)
	agg.EPG().FetchBatch(ctx, agg.LiveChannelIDs())

	// Background refresh loops
	agg.StartRefresh(ctx)
	agg.EPG().StartAutoRefresh(ctx, cfg.EpgCacheTTL, agg.LiveChannelIDs)

	// Setup HTTP routes
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handlers.New(agg).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error: %v", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete: %v", err)
	}
}
