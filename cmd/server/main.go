package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/assetdesk/assetdesk/internal/config"
	"github.com/assetdesk/assetdesk/internal/db"
	"github.com/assetdesk/assetdesk/internal/export"
	"github.com/assetdesk/assetdesk/internal/importer"
	"github.com/assetdesk/assetdesk/internal/middleware"
	"github.com/assetdesk/assetdesk/internal/repository"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.DB); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	assetRepo := repository.NewAssetRepository(conn.Pool)
	lookupRepo := repository.NewLookupRepository(conn.Pool)
	importLogRepo := repository.NewImportLogRepository(conn.Pool)

	importService := importer.NewService(
		assetRepo, lookupRepo, importLogRepo,
		importer.WithChunkSize(cfg.Import.ChunkSize),
		importer.WithLogger(log),
	)
	exportService := export.NewService(
		assetRepo,
		export.WithRowLimit(cfg.Export.RowLimit),
		export.WithLogger(log),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	logged := middleware.LoggingMiddleware(log)

	importHandler := importer.NewHTTPHandler(importService, importer.Options{MonthFirst: cfg.Import.MonthFirst})
	exportHandler := export.NewHTTPHandler(exportService)

	mux := http.NewServeMux()
	mux.Handle("/api/imports", importHandler)
	mux.Handle("/api/imports/", importHandler)
	mux.Handle("/api/exports/", exportHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler.Handler(logged(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
