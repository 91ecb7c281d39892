package audio

import (
	"errors"
	"testing"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		requested []Format
		want      Format
		wantErr   bool
	}{
		{"native s16", []Format{FormatS16Sys}, FormatS16Sys, false},
		{"first supported wins", []Format{FormatF32LSB, FormatU8, FormatS16Sys}, FormatS16Sys, false},
		{"none supported", []Format{FormatF32LSB, FormatU8, FormatS32LSB}, 0, true},
		{"empty", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.requested)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCalculateSpec(t *testing.T) {
	spec := AudioSpec{Format: FormatS16Sys, SampleRate: 48000, Channels: 2, Frames: 1024}
	CalculateSpec(&spec)

	if spec.FrameSize != 4 {
		t.Errorf("expected frame size 4, got %d", spec.FrameSize)
	}
	if spec.BufferBytes != 4096 {
		t.Errorf("expected 4096 buffer bytes, got %d", spec.BufferBytes)
	}
	if spec.Silence != 0 {
		t.Errorf("expected silence 0, got %d", spec.Silence)
	}
	if ms := spec.DurationMs(); ms < 21.33 || ms > 21.34 {
		t.Errorf("expected ~21.33ms per buffer, got %v", ms)
	}
	if ms := (AudioSpec{Frames: 1024}).DurationMs(); ms != 0 {
		t.Errorf("zero sample rate should give 0, got %v", ms)
	}

	mono := AudioSpec{Format: FormatU8, SampleRate: 22050, Channels: 1, Frames: 512}
	CalculateSpec(&mono)
	if mono.BufferBytes != 512 || mono.Silence != 0x80 {
		t.Errorf("unexpected u8 spec: %+v", mono)
	}
}

func TestFallbackFormats(t *testing.T) {
	for f := range fallbackTable {
		list := FallbackFormats(f)
		if list[0] != f {
			t.Errorf("%v: list starts with %v", f, list[0])
		}
		if _, err := Negotiate(list); err != nil {
			t.Errorf("%v: fallback list has no supported format", f)
		}
	}

	if got := FallbackFormats(Format(0x1234)); got != nil {
		t.Errorf("expected nil for unknown format, got %v", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Format
	}{
		{"default", "", FormatS16Sys},
		{"s16", "s16", FormatS16Sys},
		{"float", "f32", FormatF32LSB},
		{"big endian", "s16be", FormatS16MSB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := ParseFormat("mulaw"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
