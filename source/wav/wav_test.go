package wav

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeFixture(t *testing.T, rate, bitDepth, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func readAll(t *testing.T, s *Source) []int16 {
	t.Helper()
	var out []int16
	buf := make([]byte, 6)
	for {
		n, err := s.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			out = append(out, int16(binary.NativeEndian.Uint16(buf[i:])))
		}
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
}

func TestOpen16Bit(t *testing.T) {
	samples := []int{100, -100, 2000, -2000, 32767, -32768}
	s, err := Open(writeFixture(t, 22050, 16, 2, samples))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.SampleRate() != 22050 || s.Channels() != 2 {
		t.Errorf("unexpected format %d Hz %d ch", s.SampleRate(), s.Channels())
	}
	got := readAll(t, s)
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i, v := range samples {
		if int(got[i]) != v {
			t.Errorf("sample %d: expected %d, got %d", i, v, got[i])
		}
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		v, bitDepth int
		want        int16
	}{
		{128, 8, 0},
		{255, 8, 127 << 8},
		{0, 8, -32768},
		{1 << 16, 24, 256},
		{-(1 << 23), 24, -32768},
		{1 << 30, 32, 1 << 14},
		{1234, 16, 1234},
	}
	for _, tt := range tests {
		if got := toInt16(tt.v, tt.bitDepth); got != tt.want {
			t.Errorf("toInt16(%d, %d) = %d, want %d", tt.v, tt.bitDepth, got, tt.want)
		}
	}
}

func TestOpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("expected ErrInvalidFile, got %v", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}
