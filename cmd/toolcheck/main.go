package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/media"
)

// toolcheck verifies the externals transcriberd needs at runtime: the
// ffmpeg and ffprobe binaries and the OpenAI credential.
func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// toolcheck prints its own report, so the runner logs are discarded.
	runner := media.NewExecRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))

	failed := false

	for _, tool := range []struct {
		name   string
		envVar string
	}{
		{"ffmpeg", "FFMPEG_BIN"},
		{"ffprobe", "FFPROBE_BIN"},
	} {
		bin := tool.name
		if v := os.Getenv(tool.envVar); v != "" {
			bin = v
		}
		out, _, err := runner.Run(ctx, bin, "-version")
		if err != nil {
			log.Printf("%s: FAIL (%v)", tool.name, err)
			log.Printf("  install it or point %s at the binary", tool.envVar)
			failed = true
			continue
		}
		log.Printf("%s: OK (%s)", tool.name, firstLine(out))
	}

	if os.Getenv("OPENAI_API_KEY") == "" {
		log.Println("OPENAI_API_KEY: MISSING")
		log.Println("  uploads will be accepted but job creation will fail until it is set")
		failed = true
	} else {
		log.Println("OPENAI_API_KEY: OK")
	}

	if failed {
		os.Exit(1)
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
