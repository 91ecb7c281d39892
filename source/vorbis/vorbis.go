// Package vorbis 解码 Ogg Vorbis
package vorbis

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

type Source struct {
	file *os.File
	dec  *oggvorbis.Reader
	buf  []float32
}

func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ogg file: %w", err)
	}
	s, err := NewSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.file = f
	return s, nil
}

// NewSource 从任意 reader 解码，Close 不关闭 reader
func NewSource(r io.Reader) (*Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}
	return &Source{dec: dec}, nil
}

func (s *Source) SampleRate() int { return s.dec.SampleRate() }
func (s *Source) Channels() int   { return s.dec.Channels() }

func (s *Source) Read(p []byte) (int, error) {
	ch := s.dec.Channels()
	samples := len(p) / 2
	samples -= samples % ch
	if samples == 0 {
		return 0, nil
	}
	if cap(s.buf) < samples {
		s.buf = make([]float32, samples)
	}

	n, err := s.dec.Read(s.buf[:samples])
	for i, v := range s.buf[:n] {
		binary.NativeEndian.PutUint16(p[i*2:], uint16(floatToInt16(v)))
	}
	return n * 2, err
}

func floatToInt16(v float32) int16 {
	if v >= 1 {
		return 32767
	}
	if v <= -1 {
		return -32768
	}
	return int16(v * 32767)
}

func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
