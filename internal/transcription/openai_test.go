package transcription

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
)

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI(Config{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotConfigured))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewOpenAI_Defaults(t *testing.T) {
	c, err := NewOpenAI(Config{APIKey: "sk-test"}, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, c.cfg.Model)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
}

func TestNewOpenAI_ExplicitSettingsKept(t *testing.T) {
	c, err := NewOpenAI(Config{APIKey: "sk-test", Model: "whisper-large", Timeout: 30 * time.Second}, nil)
	require.NoError(t, err)

	assert.Equal(t, "whisper-large", c.cfg.Model)
	assert.Equal(t, 30*time.Second, c.cfg.Timeout)
}
