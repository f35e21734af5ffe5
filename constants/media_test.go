package constants

import "testing"

func TestNormalizeExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{".MP4", "mp4"},
		{".mp3", "mp3"},
		{"mov", "mov"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeExt(tt.in); got != tt.want {
			t.Errorf("NormalizeExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Holiday Video.MP4", "mp4"},
		{"audio.mp3", "mp3"},
		{"archive.tar.gz", "gz"},
		{"noextension", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtOf(tt.in); got != tt.want {
			t.Errorf("ExtOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
