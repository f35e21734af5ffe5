package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/async"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/media"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/metrics"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/pipeline"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/store"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/transcription"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The transcript goes to stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "transcribe",
		Usage: "transcribe a local media file to text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Usage:    "path to the media file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "write the transcript to this file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "transcription model",
				Value: transcription.DefaultModel,
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to an env file",
				Value: ".env",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "overall timeout in minutes",
				Value: 30,
			},
		},
		Action: runAction,
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	_ = godotenv.Load(cmd.String("env"))

	input := cmd.String("input")
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	logger := slog.Default()

	client, err := transcription.NewOpenAI(transcription.Config{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  cmd.String("model"),
	}, logger)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "transcribe-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmp)
	}()

	uploads, err := store.NewUploadStore(filepath.Join(tmp, "uploads"), time.Hour, logger)
	if err != nil {
		return err
	}
	jobs := store.NewJobStore()

	queue := async.NewQueue(logger, async.WithWorkers(1))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	}()

	ffmpeg := media.NewFFmpeg(media.Config{
		FFmpegBin:  os.Getenv("FFMPEG_BIN"),
		FFprobeBin: os.Getenv("FFPROBE_BIN"),
	}, media.NewExecRunner(logger), logger)

	svc := pipeline.NewService(
		pipeline.Config{WorkDir: filepath.Join(tmp, "work")},
		uploads, jobs, ffmpeg, client, queue,
		metrics.NewMetrics(prometheus.NewRegistry()), logger,
	)

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	up, err := uploads.Put(f, filepath.Base(input))
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close input: %w", cerr)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Int("timeout"))*time.Minute)
	defer cancel()

	start := time.Now()
	jobID, err := svc.CreateJob(ctx, up.ID)
	if err != nil {
		return err
	}
	logger.Info("transcription started", "job_id", jobID, "input", input)

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	lastPct := -1
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transcription interrupted: %w", ctx.Err())
		case <-tick.C:
		}

		job, err := jobs.Get(jobID)
		if err != nil {
			return err
		}
		if job.Progress.Pct != lastPct {
			logger.Info("progress", "pct", job.Progress.Pct, "message", job.Progress.Message)
			lastPct = job.Progress.Pct
		}
		if !job.Terminal() {
			continue
		}

		dur := time.Since(start)
		if job.Status == constants.JobStatusError {
			logger.Error("transcription failed",
				"job_id", jobID, "error", job.Error, "duration_ms", dur.Milliseconds())
			return fmt.Errorf("transcription failed: %s", job.Error)
		}
		logger.Info("transcription OK",
			"job_id", jobID, "bytes", len(job.ResultText), "duration_ms", dur.Milliseconds())

		if out := cmd.String("out"); out != "" {
			if err := os.WriteFile(out, []byte(job.ResultText+"\n"), 0o644); err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
			logger.Info("transcript written", "path", out)
			return nil
		}
		fmt.Println(job.ResultText)
		return nil
	}
}
