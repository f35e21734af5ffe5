package constants

import (
	"path/filepath"
	"strings"
)

// AudioMIMEType is the content type declared when submitting converted audio
// for transcription. The converter always emits MP3.
const AudioMIMEType = "audio/mpeg"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtOf returns the normalized extension of a filename, empty when there is none.
func ExtOf(name string) string {
	return NormalizeExt(filepath.Ext(name))
}
