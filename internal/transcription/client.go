package transcription

import "context"

// Client turns a prepared audio file into text. Implementations may fail
// transiently; callers decide the retry discipline.
type Client interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
