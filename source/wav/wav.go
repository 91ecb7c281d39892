// Package wav 用 go-audio 读取PCM WAV文件
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidFile = errors.New("invalid wav file")

type Source struct {
	file     *os.File
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	bitDepth int
}

// Open 打开WAV文件，支持 8/16/24/32 位整数PCM
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit samples", ErrInvalidFile, dec.BitDepth)
	}

	return &Source{
		file: f,
		dec:  dec,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: int(dec.NumChans),
				SampleRate:  int(dec.SampleRate),
			},
			SourceBitDepth: int(dec.BitDepth),
		},
		bitDepth: int(dec.BitDepth),
	}, nil
}

func (s *Source) SampleRate() int { return int(s.dec.SampleRate) }
func (s *Source) Channels() int   { return int(s.dec.NumChans) }

func (s *Source) Read(p []byte) (int, error) {
	samples := len(p) / 2
	if samples == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < samples {
		s.buf.Data = make([]int, samples)
	}
	s.buf.Data = s.buf.Data[:samples]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("wav decode failed: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range s.buf.Data[:n] {
		binary.NativeEndian.PutUint16(p[i*2:], uint16(toInt16(v, s.bitDepth)))
	}
	return n * 2, nil
}

func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

func (s *Source) Close() error {
	return s.file.Close()
}
