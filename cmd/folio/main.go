package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folioworks/folio/extract"
	"github.com/folioworks/folio/ingest"
	"github.com/folioworks/folio/ocr"
	"github.com/folioworks/folio/queue"
	"github.com/folioworks/folio/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	cfgPath := "folio.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := ingest.LoadConfig(cfgPath)
	if err != nil {
		// A missing config file is fine; everything has a default.
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = ingest.DefaultConfig()
	}

	// Logging.
	var lvl slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		slog.Error("create upload dir", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// OCR fallback (optional).
	var ocrClient extract.OCRClient
	if cfg.OCR.Enabled {
		gc, err := ocr.NewGeminiClient(ctx, ocr.Config{
			APIKey:      cfg.OCR.APIKey,
			Model:       cfg.OCR.Model,
			MaxImageDim: cfg.OCR.MaxImageDim,
			Timeout:     cfg.OCR.Timeout,
			Concurrency: cfg.OCR.Concurrency,
			MaxAttempts: cfg.OCR.MaxAttempts,
			Logger:      logger,
		})
		if err != nil {
			slog.Error("ocr client", "error", err)
			os.Exit(1)
		}
		defer gc.Close()
		ocrClient = gc
	}

	orch := ingest.NewOrchestrator(st, cfg, ocrClient, logger)

	// Job queue shares the main DB.
	q := queue.New(st.DB, queue.Options{
		Visibility:   cfg.Queue.Visibility,
		PollInterval: cfg.Queue.PollInterval,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Logger:       logger,
	})
	if err := q.EnsureTable(ctx); err != nil {
		slog.Error("queue init", "error", err)
		os.Exit(1)
	}

	// Startup dedup pass: picks up anything a crashed run left unmarked.
	if err := orch.Dedup(ctx); err != nil {
		slog.Warn("startup dedup", "error", err)
	}

	go q.Run(ctx,
		func(ctx context.Context, job *queue.Job) error {
			return orch.Run(ctx, job.BookID)
		},
		func(ctx context.Context, job *queue.Job) error {
			return st.MarkFailed(ctx, job.BookID, "ingestion exceeded max attempts")
		})

	svc := ingest.NewService(st, q, cfg, logger)

	// MCP over stdio replaces the HTTP surface when requested.
	if os.Getenv("MCP_TRANSPORT") == "stdio" {
		if err := svc.NewMCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil {
			slog.Error("mcp server", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("folio listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
