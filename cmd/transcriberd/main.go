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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/async"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/config"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/media"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/metrics"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/pipeline"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/server"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/store"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/transcription"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploads, err := store.NewUploadStore(cfg.Storage.UploadDir, cfg.Storage.UploadTTL(), logger)
	if err != nil {
		logger.Error("failed to init upload store", "error", err, "dir", cfg.Storage.UploadDir)
		os.Exit(1)
	}
	uploads.StartSweeper(ctx, cfg.Storage.SweepInterval())

	jobs := store.NewJobStore()

	// A missing API key must not kill the process: the HTTP surface stays
	// up and job creation reports the configuration error instead.
	var client transcription.Client
	oai, err := transcription.NewOpenAI(transcription.Config{
		APIKey:  cfg.Transcription.APIKey,
		Model:   cfg.Transcription.Model,
		Timeout: cfg.Transcription.CallTimeout(),
	}, logger)
	if err != nil {
		logger.Warn("transcription client not configured; job creation will fail until OPENAI_API_KEY is set", "error", err)
	} else {
		client = oai
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	queue := async.NewQueue(logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
	)

	ffmpeg := media.NewFFmpeg(media.Config{
		FFmpegBin:  getenv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin: getenv("FFPROBE_BIN", "ffprobe"),
	}, media.NewExecRunner(logger), logger)

	svc := pipeline.NewService(pipeline.Config{
		WorkDir:     cfg.Storage.WorkDir,
		MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		BaseDelay:   cfg.Pipeline.RetryBaseDelay(),
	}, uploads, jobs, ffmpeg, client, queue, m, logger)

	h := server.NewHandler(uploads, svc, m, logger)
	srv := server.New(cfg.Server, h, reg, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	queue.Shutdown(shutdownCtx)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
