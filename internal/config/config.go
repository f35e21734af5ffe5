package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BodyLimit string `yaml:"body_limit"`
}

// StorageConfig holds upload and working directory configuration
type StorageConfig struct {
	UploadDir            string `yaml:"upload_dir"`
	WorkDir              string `yaml:"work_dir"`
	UploadTTLMinutes     int    `yaml:"upload_ttl_minutes"`
	SweepIntervalMinutes int    `yaml:"sweep_interval_minutes"`
}

// PipelineConfig holds worker pool and retry configuration
type PipelineConfig struct {
	Workers          int `yaml:"workers"`
	QueueSize        int `yaml:"queue_size"`
	RetryMaxAttempts int `yaml:"retry_max_attempts"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
}

// TranscriptionConfig holds transcription API configuration
type TranscriptionConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			BodyLimit: "300M",
		},
		Storage: StorageConfig{
			UploadDir:            "./data/uploads",
			WorkDir:              "./data/work",
			UploadTTLMinutes:     120,
			SweepIntervalMinutes: 10,
		},
		Pipeline: PipelineConfig{
			Workers:          4,
			QueueSize:        64,
			RetryMaxAttempts: 3,
			RetryBaseDelayMS: 1000,
		},
		Transcription: TranscriptionConfig{
			Model:          "whisper-1",
			TimeoutSeconds: 180,
		},
	}
}

// Load builds the configuration from defaults, then an optional YAML file,
// then environment variable overrides, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, common.WrapError(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, common.WrapError(err, "parse config file")
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Server.BodyLimit = getEnv("BODY_LIMIT", c.Server.BodyLimit)

	c.Storage.UploadDir = getEnv("UPLOAD_DIR", c.Storage.UploadDir)
	c.Storage.WorkDir = getEnv("WORK_DIR", c.Storage.WorkDir)
	c.Storage.UploadTTLMinutes = getEnvAsInt("UPLOAD_TTL_MINUTES", c.Storage.UploadTTLMinutes)
	c.Storage.SweepIntervalMinutes = getEnvAsInt("SWEEP_INTERVAL_MINUTES", c.Storage.SweepIntervalMinutes)

	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.QueueSize = getEnvAsInt("PIPELINE_QUEUE_SIZE", c.Pipeline.QueueSize)
	c.Pipeline.RetryMaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", c.Pipeline.RetryMaxAttempts)
	c.Pipeline.RetryBaseDelayMS = getEnvAsInt("RETRY_BASE_DELAY_MS", c.Pipeline.RetryBaseDelayMS)

	c.Transcription.APIKey = getEnv("OPENAI_API_KEY", c.Transcription.APIKey)
	c.Transcription.Model = getEnv("OPENAI_MODEL", c.Transcription.Model)
	c.Transcription.TimeoutSeconds = getEnvAsInt("OPENAI_TIMEOUT_SECONDS", c.Transcription.TimeoutSeconds)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// UploadTTL returns the upload retention window.
func (s StorageConfig) UploadTTL() time.Duration {
	return time.Duration(s.UploadTTLMinutes) * time.Minute
}

// SweepInterval returns how often expired uploads are purged.
func (s StorageConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

// RetryBaseDelay returns the base delay unit for retry backoff.
func (p PipelineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(p.RetryBaseDelayMS) * time.Millisecond
}

// CallTimeout returns the per-call transcription timeout.
func (t TranscriptionConfig) CallTimeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Validate validates the loaded configuration. The transcription API key is
// deliberately not required here: its absence is reported when a job is
// created, not at startup.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	return c.Transcription.validate()
}

func (s ServerConfig) validate() error {
	if s.Addr == "" {
		return common.NewAppError("CONFIG_ERROR", "server addr is required", common.ErrInvalidInput)
	}
	if s.BodyLimit == "" {
		return common.NewAppError("CONFIG_ERROR", "server body_limit is required", common.ErrInvalidInput)
	}
	return nil
}

func (s StorageConfig) validate() error {
	if s.UploadDir == "" {
		return common.NewAppError("CONFIG_ERROR", "storage upload_dir is required", common.ErrInvalidInput)
	}
	if s.WorkDir == "" {
		return common.NewAppError("CONFIG_ERROR", "storage work_dir is required", common.ErrInvalidInput)
	}
	if s.UploadTTLMinutes <= 0 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("upload_ttl_minutes must be positive, got %d", s.UploadTTLMinutes), common.ErrInvalidInput)
	}
	if s.SweepIntervalMinutes <= 0 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("sweep_interval_minutes must be positive, got %d", s.SweepIntervalMinutes), common.ErrInvalidInput)
	}
	return nil
}

func (p PipelineConfig) validate() error {
	if p.Workers <= 0 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("pipeline workers must be positive, got %d", p.Workers), common.ErrInvalidInput)
	}
	if p.QueueSize <= 0 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("pipeline queue_size must be positive, got %d", p.QueueSize), common.ErrInvalidInput)
	}
	if p.RetryMaxAttempts < 1 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("retry_max_attempts must be at least 1, got %d", p.RetryMaxAttempts), common.ErrInvalidInput)
	}
	if p.RetryBaseDelayMS <= 0 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("retry_base_delay_ms must be positive, got %d", p.RetryBaseDelayMS), common.ErrInvalidInput)
	}
	return nil
}

func (t TranscriptionConfig) validate() error {
	if t.Model == "" {
		return common.NewAppError("CONFIG_ERROR", "transcription model is required", common.ErrInvalidInput)
	}
	if t.TimeoutSeconds <= 0 {
		return common.NewAppError("CONFIG_ERROR", fmt.Sprintf("transcription timeout_seconds must be positive, got %d", t.TimeoutSeconds), common.ErrInvalidInput)
	}
	return nil
}
