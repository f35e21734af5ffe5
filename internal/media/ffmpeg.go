package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
)

// ChunkPrefix and ChunkExt shape the segment file names. Zero-padded
// sequence numbers make lexicographic order match temporal order.
const (
	ChunkPrefix = "chunk_"
	ChunkExt    = ".mp3"
)

// Config holds the external tool names. Override to pin absolute paths.
type Config struct {
	FFmpegBin  string
	FFprobeBin string
}

// FFmpeg converts, probes and splits media through the ffmpeg tool family.
type FFmpeg struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewFFmpeg(cfg Config, runner Runner, logger *slog.Logger) *FFmpeg {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.FFprobeBin == "" {
		cfg.FFprobeBin = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &FFmpeg{cfg: cfg, runner: runner, logger: logger}
}

// ExtractAudio converts any input media into mono 16kHz 32kbps MP3. A
// nonzero exit is fatal to the caller's job.
func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outPath string) error {
	// ffmpeg -i <in> -vn -ac 1 -ar 16000 -c:a libmp3lame -b:a 32k <out>
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "32k",
		outPath,
	}

	_, errb, err := f.runner.Run(ctx, f.cfg.FFmpegBin, args...)
	if err != nil {
		return common.NewAppError("CONVERSION_FAILED", fmt.Sprintf("ffmpeg: %s", stderrDetail(errb)), err)
	}

	f.logger.Debug("media.extract.ok", "input", inputPath, "output", outPath)
	return nil
}

// ProbeDuration returns the duration of a media file in seconds. Callers
// treat any error as unknown duration rather than a failure.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 <file>
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	out, errb, err := f.runner.Run(ctx, f.cfg.FFprobeBin, args...)
	if err != nil {
		return 0, common.NewAppError("PROBE_FAILED", fmt.Sprintf("ffprobe: %s", stderrDetail(errb)), err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, common.WrapError(err, "parse ffprobe duration")
	}
	return seconds, nil
}

// SplitAudio cuts the input into fixed-length segments under chunkDir and
// returns their paths sorted lexicographically, which is temporal order
// given the zero-padded naming.
func (f *FFmpeg) SplitAudio(ctx context.Context, inputPath, chunkDir string, segmentSeconds int) ([]string, error) {
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return nil, common.WrapError(err, "create chunk dir")
	}

	// ffmpeg -i <in> -f segment -segment_time <sec> -c copy chunk_%03d.mp3
	pattern := filepath.Join(chunkDir, ChunkPrefix+"%03d"+ChunkExt)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-c", "copy",
		pattern,
	}

	_, errb, err := f.runner.Run(ctx, f.cfg.FFmpegBin, args...)
	if err != nil {
		return nil, common.NewAppError("SPLIT_FAILED", fmt.Sprintf("ffmpeg segment: %s", stderrDetail(errb)), err)
	}

	entries, err := os.ReadDir(chunkDir)
	if err != nil {
		return nil, common.WrapError(err, "list chunk dir")
	}
	var chunks []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ChunkPrefix) || !strings.HasSuffix(name, ChunkExt) {
			continue
		}
		chunks = append(chunks, filepath.Join(chunkDir, name))
	}
	sort.Strings(chunks)

	if len(chunks) == 0 {
		return nil, common.NewAppError("SPLIT_FAILED", "ffmpeg segment produced no chunks", common.ErrInternal)
	}

	f.logger.Debug("media.split.ok", "input", inputPath, "chunks", len(chunks))
	return chunks, nil
}

// stderrDetail keeps the tail of the tool's stderr, where ffmpeg writes the
// actual cause.
func stderrDetail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "no stderr output"
	}
	const max = 400
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
