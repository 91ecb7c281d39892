// Package mp3 用 go-mp3 解码，输出固定为立体声S16
package mp3

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

type Source struct {
	file *os.File
	dec  *gomp3.Decoder
}

func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 file: %w", err)
	}
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	return &Source{file: f, dec: dec}, nil
}

func (s *Source) SampleRate() int { return s.dec.SampleRate() }
func (s *Source) Channels() int   { return 2 }

// Read go-mp3 输出小端，转换成本机字节序
func (s *Source) Read(p []byte) (int, error) {
	n, err := s.dec.Read(p[:len(p)&^1])
	for i := 0; i+1 < n; i += 2 {
		binary.NativeEndian.PutUint16(p[i:], binary.LittleEndian.Uint16(p[i:]))
	}
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (s *Source) Close() error {
	return s.file.Close()
}
