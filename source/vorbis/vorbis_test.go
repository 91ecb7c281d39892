package vorbis

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{0.5, 16383},
		{-0.5, -16383},
		{1, 32767},
		{1.5, 32767},
		{-1, -32768},
		{-2, -32768},
	}
	for _, tt := range tests {
		if got := floatToInt16(tt.in); got != tt.want {
			t.Errorf("floatToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewSourceRejectsGarbage(t *testing.T) {
	if _, err := NewSource(bytes.NewReader([]byte("OggS but not really a stream"))); err == nil {
		t.Error("expected decoder error")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.ogg")); err == nil {
		t.Error("expected error for missing file")
	}
}
