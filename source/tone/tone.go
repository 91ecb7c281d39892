// Package tone 正弦波测试信号
package tone

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

type Config struct {
	SampleRate int
	Channels   int
	Frequency  float64
	// Amplitude 0..1
	Amplitude float64
	// Frames 总帧数，0 表示无限
	Frames int
}

type Source struct {
	config Config
	pos    int
	phase  float64
	step   float64
}

func New(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, errors.New("tone: sample rate and channels must be positive")
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 440
	}
	if cfg.Amplitude <= 0 || cfg.Amplitude > 1 {
		cfg.Amplitude = 0.5
	}
	return &Source{
		config: cfg,
		step:   2 * math.Pi * cfg.Frequency / float64(cfg.SampleRate),
	}, nil
}

func (s *Source) SampleRate() int { return s.config.SampleRate }
func (s *Source) Channels() int   { return s.config.Channels }
func (s *Source) Close() error    { return nil }

// Read 按整帧输出本机字节序S16
func (s *Source) Read(p []byte) (int, error) {
	frameSize := 2 * s.config.Channels
	frames := len(p) / frameSize
	if s.config.Frames > 0 {
		frames = min(frames, s.config.Frames-s.pos)
		if frames <= 0 {
			return 0, io.EOF
		}
	}

	for f := 0; f < frames; f++ {
		v := int16(math.Sin(s.phase) * s.config.Amplitude * 32767)
		for c := 0; c < s.config.Channels; c++ {
			binary.NativeEndian.PutUint16(p[f*frameSize+c*2:], uint16(v))
		}
		s.phase += s.step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	s.pos += frames
	return frames * frameSize, nil
}
