package media

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short\n", 1<<10))

	long := strings.Repeat("b", 100) + strings.Repeat("e", 4<<10)
	got := tail(long, 4<<10)
	assert.True(t, strings.HasPrefix(got, "...(truncated)"))
	assert.True(t, strings.HasSuffix(got, "eeee"))
	assert.Len(t, got, len("...(truncated)")+(4<<10))
}

func TestExitCode_ProcessNeverRan(t *testing.T) {
	assert.Equal(t, -1, exitCode(errors.New("executable file not found in $PATH")))
}
