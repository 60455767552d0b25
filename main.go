package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"docchat/features/chat"
	ingestapi "docchat/features/ingest"
	"docchat/features/search"
	"docchat/features/stats"
	"docchat/internal/adapter/docparse"
	"docchat/internal/adapter/embedding"
	"docchat/internal/adapter/gemini"
	"docchat/internal/adapter/ocr"
	"docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/extract"
	"docchat/internal/ingest"
	"docchat/internal/logger"
	"docchat/internal/middleware"
	"docchat/internal/retrieval"
	"docchat/internal/store"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := app.Bootstrap(cfg)
	if err != nil {
		slog.Error("failed to bootstrap", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	// Shared process-wide resources: embedder, parser clients and the
	// Gemini client live for the process lifetime, no teardown.
	embedder := embedding.NewClient(embedding.Config{
		BaseURL: cfg.EmbeddingURL,
		Model:   cfg.EmbeddingModel,
		Dim:     cfg.EmbeddingDim,
	})
	vecStore := store.NewPostgres(db, embedder)

	parser := docparse.NewClient(docparse.Config{BaseURL: cfg.DocparseURL})
	tesseract, err := ocr.NewTesseract(cfg.TesseractBin)
	if err != nil {
		slog.Error("ocr engine unavailable", "error", err)
		os.Exit(1)
	}
	extractor := extract.New(parser, parser, tesseract, cfg.MinTextChars)

	controller := ingest.NewController(extractor, vecStore, cfg.ChunkMaxChars, cfg.ChunkOverlap)

	// Startup ingestion. Failures here are a warning banner, not a
	// crash: the server still answers from whatever is in the store.
	if cfg.DataFolder == "" {
		slog.Warn("no data folder configured, set DATA_FOLDER to ingest documents")
	} else if info, err := os.Stat(cfg.DataFolder); err != nil || !info.IsDir() {
		slog.Warn("data folder not found", "path", cfg.DataFolder)
	} else if report, err := controller.Run(ctx, cfg.DataFolder); err != nil {
		slog.Warn("ingestion failed", "error", err)
	} else {
		slog.Info("ingestion complete", "ingested", report.Ingested, "skipped", report.Skipped, "failed", report.Failed)
	}

	generator, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(vecStore, generator, queryLogger, cfg.SearchTopK, cfg.DistanceThreshold)

	chatHandler := chat.NewHandler(retrievalService)
	searchHandler := search.NewHandler(retrievalService)
	ingestHandler := ingestapi.NewHandler(controller, vecStore, cfg.DataFolder)
	statsHandler := stats.NewHandler(vecStore)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	http.Handle("POST /chat", middleware.CorrelationID(enableCORS(chatHandler.Ask)))
	http.Handle("GET /search", middleware.CorrelationID(enableCORS(searchHandler.Query)))
	http.Handle("POST /ingest", middleware.CorrelationID(enableCORS(ingestHandler.Run)))
	http.Handle("DELETE /chunks", middleware.CorrelationID(enableCORS(ingestHandler.Clear)))
	http.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.ServerPort), nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
