package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pagecast/pagecast/internal/ai"
	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/home"
	"github.com/pagecast/pagecast/internal/jobs"
	"github.com/pagecast/pagecast/internal/jobstore"
	"github.com/pagecast/pagecast/internal/ocr"
	"github.com/pagecast/pagecast/internal/ocr/tesseract"
	"github.com/pagecast/pagecast/internal/pdf"
	"github.com/pagecast/pagecast/internal/pipeline"
)

// runtime holds everything a conversion command needs.
type runtime struct {
	home         *home.Dir
	configMgr    *config.Manager
	store        jobstore.Store
	pool         *jobs.Pool
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

// buildRuntime wires the job store, OCR, AI service, worker pool and
// orchestrator from configuration.
func buildRuntime() (*runtime, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	cfgPath := cfgFile
	if cfgPath == "" && h.ConfigExists() {
		cfgPath = h.ConfigPath()
	}
	cfgMgr, err := config.NewManager(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg := cfgMgr.Get()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	store, err := jobstore.OpenSQLite(h.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	var recognizer *ocr.Recognizer
	if cfg.OCR.Enabled {
		recognizer = ocr.NewRecognizer(tesseract.New(), ocr.Options{
			Language:          cfg.OCR.Language,
			RequestsPerMinute: cfg.OCR.RateLimit,
			Timeout:           time.Duration(cfg.OCR.TimeoutSeconds) * time.Second,
			Attempts:          uint(cfg.OCR.MaxRetries),
		}, logger)
	}

	aiService := ai.New(ai.Config{
		APIKey:            cfg.ResolvedAPIKey(),
		Model:             cfg.AI.Model,
		BaseURL:           cfg.AI.BaseURL,
		RequestsPerMinute: cfg.AI.RateLimit,
		MaxRetries:        cfg.AI.MaxRetries,
		Timeout:           time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	}, logger)
	if aiService == nil {
		logger.Info("ai enhancement disabled, no api key configured")
	}

	pool := jobs.NewPool(jobs.PoolConfig{
		Name:        "convert",
		Logger:      logger,
		WorkerCount: cfg.Pipeline.Workers,
		QueueSize:   cfg.Pipeline.QueueSize,
	})

	orchestrator := pipeline.New(pipeline.Config{
		Store:      store,
		Opener:     &pdf.FileOpener{},
		Recognizer: recognizer,
		AIService:  aiService,
		Pool:       pool,
		WorkDir:    h.WorkDir(),
		OutDir:     h.EpubsDir(),
		Logger:     logger,
	})

	return &runtime{
		home:         h,
		configMgr:    cfgMgr,
		store:        store,
		pool:         pool,
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
