package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sentinelhq/sentinel-backend/internal/analysis"
	"github.com/sentinelhq/sentinel-backend/internal/api/middleware"
	"github.com/sentinelhq/sentinel-backend/internal/api/rest"
	"github.com/sentinelhq/sentinel-backend/internal/api/websocket"
	"github.com/sentinelhq/sentinel-backend/internal/config"
	"github.com/sentinelhq/sentinel-backend/internal/detection"
	"github.com/sentinelhq/sentinel-backend/internal/pkg/logger"
	"github.com/sentinelhq/sentinel-backend/internal/repository"
	"github.com/sentinelhq/sentinel-backend/internal/service"
	"github.com/sentinelhq/sentinel-backend/migrations"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	slogger.Info("sentinel backend starting", "port", cfg.Port, "driver", cfg.DatabaseDriver)

	// Database
	repo, err := openStore(cfg)
	if err != nil {
		slogger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// WebSocket fan-out
	hub := websocket.NewHub(ctx, slogger)
	go hub.Run()

	// Core services
	engine := detection.NewEngine(slogger)
	ingestService := service.NewIngestService(repo, engine, hub, slogger)

	analyzer := analysis.NewAnalyzer(cfg.AIEnabled, cfg.GeminiAPIKey, cfg.GeminiModel, slogger)
	scheduler := analysis.NewScheduler(repo, analyzer, hub,
		cfg.AIIntervalMinutes, cfg.AICooldownMinutes, cfg.AIBatchSize, slogger)
	anomalyService := service.NewAnomalyService(repo, scheduler, slogger)

	if analyzer.Enabled() {
		scheduler.Start(ctx)
		slogger.Info("AI analysis scheduler started")
	} else {
		slogger.Info("AI analysis disabled; scheduler idle, manual trigger uses mock classifier")
	}

	// HTTP router
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"sentinel-backend"}`))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(ingestService, anomalyService, scheduler, slogger)
	rest.SetupRoutes(apiRouter, handler)

	wsHandler := websocket.NewHandler(ctx, hub, slogger)
	router.HandleFunc("/ws/anomalies", wsHandler.ServeWS).Methods("GET")

	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(slogger))
	router.Use(middleware.Recovery(slogger))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogger.Info("shutting down")

	if analyzer.Enabled() {
		scheduler.Stop()
	}
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slogger.Warn("server forced to shutdown", "error", err)
	}

	slogger.Info("server exited gracefully")
}

// openStore connects to the configured database and applies the schema.
func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		repo, err := repository.NewPostgresRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(repository.PostgresSchema); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repo, nil
	default:
		repo, err := repository.NewSQLiteRepository(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		schema, err := migrations.Schema()
		if err != nil {
			return nil, fmt.Errorf("failed to load migrations: %w", err)
		}
		if err := repo.RunMigrations(schema); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repo, nil
	}
}
