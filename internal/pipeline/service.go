package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/async"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/entity"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/media"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/metrics"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/retry"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/store"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/transcription"
)

// Chunking policy. Audio longer than the threshold is cut into fixed
// segments; anything past the cap (two hours of audio) is dropped and the
// transcript carries a truncation notice instead.
const (
	chunkThresholdSeconds = 600
	segmentSeconds        = 300
	maxChunks             = 24
)

const truncationNotice = "[transcript truncated: audio exceeds the two-hour processing limit]"

// Config holds the pipeline knobs wired from the service configuration.
type Config struct {
	WorkDir     string
	MaxAttempts int
	BaseDelay   time.Duration
}

// Service creates jobs and drives each one through the pipeline in the
// background: extract audio, probe duration, chunk if long, transcribe,
// stitch. Each job's record is written only by its own pipeline task.
type Service struct {
	cfg     Config
	uploads *store.UploadStore
	jobs    *store.JobStore
	ffmpeg  *media.FFmpeg
	client  transcription.Client
	queue   *async.Queue
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService wires the pipeline. client may be nil when the transcription
// credential is absent; job creation then fails with a configuration error
// while the rest of the service keeps running.
func NewService(cfg Config, uploads *store.UploadStore, jobs *store.JobStore, ffmpeg *media.FFmpeg, client transcription.Client, queue *async.Queue, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "./data/work"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		uploads: uploads,
		jobs:    jobs,
		ffmpeg:  ffmpeg,
		client:  client,
		queue:   queue,
		metrics: m,
		logger:  logger,
	}
}

// CreateJob validates the upload, allocates a queued job and schedules the
// pipeline without blocking. The job captures the upload's path and name at
// creation time, so upload expiry never touches an in-flight job.
func (s *Service) CreateJob(ctx context.Context, uploadID uuid.UUID) (uuid.UUID, error) {
	up, err := s.uploads.Resolve(uploadID)
	if err != nil {
		return uuid.Nil, err
	}
	if s.client == nil {
		return uuid.Nil, common.NewAppError("TRANSCRIPTION_NOT_CONFIGURED", "transcription client is not configured", common.ErrNotConfigured)
	}

	job := s.jobs.Create()
	s.metrics.JobsCreated.Inc()

	task := async.Task{
		ID: job.ID.String(),
		Run: func(ctx context.Context) {
			s.run(ctx, job.ID, up)
		},
		Fail: func(detail string) {
			s.jobs.Fail(job.ID, detail)
		},
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.jobs.Fail(job.ID, "could not schedule pipeline")
		return uuid.Nil, err
	}

	s.logger.Info("job.created", "job_id", job.ID, "upload_id", uploadID, "original_name", up.OriginalName)
	return job.ID, nil
}

// Job returns a snapshot of the job record.
func (s *Service) Job(id uuid.UUID) (entity.Job, error) {
	return s.jobs.Get(id)
}

// run executes the pipeline once and records the terminal outcome. Cleanup
// happens before the terminal write: a client that observes done or error
// must not find intermediate files on disk.
func (s *Service) run(ctx context.Context, jobID uuid.UUID, up entity.Upload) {
	start := time.Now()
	workDir := filepath.Join(s.cfg.WorkDir, jobID.String())

	cleaned := false
	cleanup := func() {
		if cleaned {
			return
		}
		cleaned = true
		s.cleanup(jobID, up.Path, workDir)
	}
	defer cleanup() // panic path; the queue's recover records the failure after this

	text, err := s.process(ctx, jobID, up, workDir)
	cleanup()

	elapsed := time.Since(start)
	if err != nil {
		s.jobs.Fail(jobID, err.Error())
		s.metrics.JobsFinished.WithLabelValues(string(constants.JobStatusError)).Inc()
		s.logger.Error("pipeline.failed", "job_id", jobID, "error", err, "duration_ms", elapsed.Milliseconds())
	} else {
		s.jobs.Complete(jobID, text)
		s.metrics.JobsFinished.WithLabelValues(string(constants.JobStatusDone)).Inc()
		s.logger.Info("pipeline.ok", "job_id", jobID, "chars", len(text), "duration_ms", elapsed.Milliseconds())
	}
	s.metrics.JobDuration.Observe(elapsed.Seconds())
}

func (s *Service) process(ctx context.Context, jobID uuid.UUID, up entity.Upload, workDir string) (string, error) {
	s.jobs.MarkProcessing(jobID, 10, "extracting audio")
	s.logger.Info("pipeline.start", "job_id", jobID, "input", up.OriginalName)

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", common.WrapError(err, "create work dir")
	}

	audioPath := filepath.Join(workDir, "audio.mp3")
	if err := s.ffmpeg.ExtractAudio(ctx, up.Path, audioPath); err != nil {
		return "", err
	}

	duration, err := s.ffmpeg.ProbeDuration(ctx, audioPath)
	if err != nil {
		// Unknown duration is not fatal: take the single-file path.
		s.logger.Warn("pipeline.probe.unknown_duration", "job_id", jobID, "error", err)
		duration = 0
	}

	if duration <= chunkThresholdSeconds {
		return s.transcribeSingle(ctx, jobID, audioPath)
	}
	return s.transcribeChunked(ctx, jobID, audioPath, filepath.Join(workDir, "chunks"), duration)
}

func (s *Service) transcribeSingle(ctx context.Context, jobID uuid.UUID, audioPath string) (string, error) {
	s.jobs.SetProgress(jobID, 55, "transcribing audio")
	return s.transcribe(ctx, audioPath)
}

func (s *Service) transcribeChunked(ctx context.Context, jobID uuid.UUID, audioPath, chunkDir string, duration float64) (string, error) {
	s.jobs.SetProgress(jobID, 35, "splitting audio into chunks")
	s.logger.Info("pipeline.chunking", "job_id", jobID, "duration_s", duration)

	chunks, err := s.ffmpeg.SplitAudio(ctx, audioPath, chunkDir, segmentSeconds)
	if err != nil {
		return "", err
	}

	truncated := false
	if len(chunks) > maxChunks {
		s.logger.Warn("pipeline.chunks.truncated", "job_id", jobID, "chunks", len(chunks), "cap", maxChunks)
		chunks = chunks[:maxChunks]
		truncated = true
	}

	// Chunks are transcribed strictly in order, one at a time: bounded
	// resource usage and the stitched text matches the original timeline.
	total := len(chunks)
	parts := make([]string, 0, total)
	for i, chunk := range chunks {
		s.jobs.SetProgress(jobID, 55+(40*i)/total, fmt.Sprintf("transcribing chunk %d/%d", i+1, total))
		text, err := s.transcribe(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, total, err)
		}
		parts = append(parts, text)
		s.metrics.ChunksProcessed.Inc()
	}
	s.jobs.SetProgress(jobID, 95, "assembling transcript")

	result := strings.Join(parts, "\n\n")
	if truncated {
		result += "\n\n" + truncationNotice
	}
	return result, nil
}

// transcribe submits one audio file through the retry policy.
func (s *Service) transcribe(ctx context.Context, path string) (string, error) {
	policy := retry.Policy{MaxAttempts: s.cfg.MaxAttempts, BaseDelay: s.cfg.BaseDelay}

	attempts := 0
	text, err := retry.Do(ctx, s.logger, policy, "transcribe", func() (string, error) {
		attempts++
		s.metrics.TranscriptionRequests.Inc()
		return s.client.Transcribe(ctx, path)
	})
	if attempts > 1 {
		s.metrics.TranscriptionRetries.Add(float64(attempts - 1))
	}
	if err != nil {
		s.metrics.TranscriptionFailures.Inc()
		return "", err
	}
	return text, nil
}

// cleanup removes everything the job touched on disk: the original upload,
// the converted artifact and any chunks. Best-effort; a failed removal is
// logged and never alters the job's outcome.
func (s *Service) cleanup(jobID uuid.UUID, uploadPath, workDir string) {
	if err := os.Remove(uploadPath); err != nil && !os.IsNotExist(err) {
		s.logger.Debug("pipeline.cleanup.upload_failed", "job_id", jobID, "path", uploadPath, "error", err)
	}
	if err := os.RemoveAll(workDir); err != nil {
		s.logger.Debug("pipeline.cleanup.workdir_failed", "job_id", jobID, "path", workDir, "error", err)
	}
}
