package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"interlink/api/internal/app"
	"interlink/api/internal/catalog"
	"interlink/api/internal/config"
	"interlink/api/internal/revlog"
	"interlink/api/internal/search"
	"interlink/api/internal/store"
	"interlink/api/internal/verify"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	catalogReader, err := catalog.New(dataStore, cfg.RedisURL, cfg.CatalogCacheTTL)
	if err != nil {
		log.Fatalf("catalog cache setup failed: %v", err)
	}
	defer catalogReader.Close()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis catalog cache (ttl %s)", cfg.CatalogCacheTTL)
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var revisions *revlog.Service
	if strings.TrimSpace(cfg.RevlogDir) != "" {
		if err := os.MkdirAll(cfg.RevlogDir, 0o755); err != nil {
			log.Fatalf("failed to create revlog dir: %v", err)
		}
		revisions = revlog.New(cfg.RevlogDir)
	}

	checker := verify.NewChecker(cfg.SiteBaseURL, cfg.VerifyTimeout)
	var verifier *verify.Checker
	if checker.Available() {
		verifier = checker
	} else {
		log.Printf("WARNING: chromium not found, page verification disabled")
	}

	service := app.New(cfg, dataStore, catalogReader, verifier, revisions, searchService)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.APIKeyHash)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Interlink API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
