package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/corpwatch/corpwatch/internal/config"
	"github.com/corpwatch/corpwatch/internal/db"
	"github.com/corpwatch/corpwatch/internal/diff"
	"github.com/corpwatch/corpwatch/internal/export"
	"github.com/corpwatch/corpwatch/internal/ingestion"
	"github.com/corpwatch/corpwatch/internal/middleware"
	"github.com/corpwatch/corpwatch/internal/pipeline"
	"github.com/corpwatch/corpwatch/internal/query"
	"github.com/corpwatch/corpwatch/internal/repository"
	"github.com/corpwatch/corpwatch/internal/search"
	"github.com/corpwatch/corpwatch/internal/snapshotstore"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, conn.Pool, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	changeLogRepo := repository.NewChangeLogRepository(conn.Pool)
	snapshotMetaRepo := repository.NewSnapshotMetaRepository(conn.Pool)

	// Create snapshot storage and the in-memory index
	store := snapshotstore.NewStore()
	archive, err := snapshotstore.NewArchive(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open snapshot archive: %v", err)
	}
	index := search.NewIndex(cfg.DiffWorkers)
	engine := diff.NewEngine(cfg.DiffWorkers)

	// Wire the snapshot pipeline and replay archived snapshots
	runner := pipeline.NewRunner(store, archive, engine, changeLogRepo, snapshotMetaRepo, index)
	restored, err := runner.WarmStart(ctx)
	if err != nil {
		log.Fatalf("Failed to restore archived snapshots: %v", err)
	}
	if restored > 0 {
		log.Printf("Restored %d archived snapshots", restored)
	}

	// Create services
	facade := query.NewFacade(index, changeLogRepo, snapshotMetaRepo, cfg.StatsWindow)
	ingestService := ingestion.NewService(runner)
	exportService := export.NewService(changeLogRepo)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	query.NewHTTPHandler(facade).Register(mux)
	mux.Handle("POST /api/snapshots", ingestion.NewHTTPHandler(ingestService))
	mux.Handle("GET /api/changes/export", export.NewHTTPHandler(exportService))

	handler := corsHandler.Handler(middleware.LoggingMiddleware(mux))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.ServerAddr)
		log.Printf("Snapshot upload endpoint available at POST %s/api/snapshots", cfg.ServerAddr)
		log.Printf("Search endpoint available at GET %s/api/search", cfg.ServerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
