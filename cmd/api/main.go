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

	"folio/api/internal/app"
	"folio/api/internal/capability"
	"folio/api/internal/config"
	"folio/api/internal/email"
	"folio/api/internal/export"
	"folio/api/internal/gitrepo"
	"folio/api/internal/media"
	"folio/api/internal/search"
	"folio/api/internal/session"
	"folio/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// The database is optional: without DATABASE_URL the API serves the
	// public site in degraded mode (empty reads, 503 mutations).
	var dataStore *store.PostgresStore
	var searchService *search.Service
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}

		dataStore = store.NewPostgresStore(db)

		pgfts := search.NewPgFTS(db)
		var meiliClient *search.Meili
		if strings.TrimSpace(cfg.MeiliURL) != "" {
			meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
			defer meiliClient.Close()
		}
		searchService = search.NewService(meiliClient, pgfts)
		if meiliClient != nil {
			if err := searchService.ReindexAll(ctx); err != nil {
				log.Printf("WARNING: search reindex failed: %v", err)
			}
		}
	} else {
		log.Printf("DATABASE_URL not set, starting in degraded mode")
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}
	gitService := gitrepo.New(cfg.ReposDir)

	secrets := map[string]string{
		capability.Edit:    cfg.EditSecret,
		capability.Publish: cfg.EffectivePublishSecret(),
	}
	var capStore capability.RecordStore = capability.NewMemoryStore()
	var redisSessions *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for capability records and refresh tokens")
		capRedis, err := capability.NewRedisStore(cfg.RedisURL, cfg.CapabilityTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer capRedis.Close()
		capStore = capRedis

		redisSessions, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisSessions.Close()
	}
	capService := capability.NewService(capStore, secrets, cfg.CapabilityTTL)

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	var mediaStorage media.Storage
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioClient, err := media.NewMinIOClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		mediaStorage = minioClient
	}

	var sessions app.SessionStore
	if redisSessions != nil {
		sessions = redisSessions
	}
	service := app.New(cfg, dataStore, capService, sessions, searchService, gitService, emailService, mediaStorage)
	exportService := export.NewService(service)

	httpServer := app.NewHTTPServer(service, exportService, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Folio API listening on %s", cfg.Addr)
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
