package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
)

const (
	DefaultModel   = "whisper-1"
	DefaultTimeout = 180 * time.Second
)

// Config holds the OpenAI transcription settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAI implements Client against the OpenAI audio transcription endpoint.
type OpenAI struct {
	client openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewOpenAI builds the production client. A missing API key is a
// configuration error the caller surfaces at job creation, never a crash.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("TRANSCRIPTION_NOT_CONFIGURED", "OPENAI_API_KEY is not set", common.ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0), // attempt accounting belongs to the retry policy
	)
	return &OpenAI{client: client, cfg: cfg, logger: logger}, nil
}

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", common.WrapError(err, "open audio file")
	}
	defer f.Close()

	name := filepath.Base(audioPath)
	start := time.Now()

	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(o.cfg.Model),
		File:  openai.File(f, name, constants.AudioMIMEType),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	o.logger.Info("transcription.ok",
		"file", name,
		"model", o.cfg.Model,
		"chars", len(resp.Text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.Text, nil
}

var _ Client = (*OpenAI)(nil)
