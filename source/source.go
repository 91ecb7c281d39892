// source/source.go
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lisuiheng/pcmout/source/mp3"
	"github.com/lisuiheng/pcmout/source/stream"
	"github.com/lisuiheng/pcmout/source/tone"
	"github.com/lisuiheng/pcmout/source/vorbis"
	"github.com/lisuiheng/pcmout/source/wav"
)

var ErrUnknownSource = errors.New("unknown source type")

// Source 产出本机字节序、交错的S16 PCM
type Source interface {
	io.ReadCloser
	SampleRate() int
	Channels() int
}

var (
	_ Source = (*tone.Source)(nil)
	_ Source = (*wav.Source)(nil)
	_ Source = (*mp3.Source)(nil)
	_ Source = (*vorbis.Source)(nil)
	_ Source = (*stream.Source)(nil)
)

type Config struct {
	Type string `mapstructure:"type"` // tone/wav/mp3/vorbis/stream
	Path string `mapstructure:"path"`

	Tone struct {
		Frequency float64 `mapstructure:"frequency"`
		Amplitude float64 `mapstructure:"amplitude"`
		Seconds   float64 `mapstructure:"seconds"`
	} `mapstructure:"tone"`

	Stream struct {
		URL           string `mapstructure:"url"`
		AccessToken   string `mapstructure:"access_token"`
		FrameDuration int    `mapstructure:"frame_duration"`
		MaxRetries    int    `mapstructure:"max_retries"`
	} `mapstructure:"stream"`
}

// Open 按类型创建音源，sampleRate/channels 只用于 tone 和 stream
func Open(ctx context.Context, cfg Config, sampleRate, channels int, deviceID string, logger *slog.Logger) (Source, error) {
	switch cfg.Type {
	case "tone":
		return wrap(tone.New(tone.Config{
			SampleRate: sampleRate,
			Channels:   channels,
			Frequency:  cfg.Tone.Frequency,
			Amplitude:  cfg.Tone.Amplitude,
			Frames:     int(cfg.Tone.Seconds * float64(sampleRate)),
		}))
	case "wav":
		return wrap(wav.Open(cfg.Path))
	case "mp3":
		return wrap(mp3.Open(cfg.Path))
	case "vorbis", "ogg":
		return wrap(vorbis.Open(cfg.Path))
	case "stream":
		return wrap(stream.Open(ctx, stream.Config{
			URL:           cfg.Stream.URL,
			AccessToken:   cfg.Stream.AccessToken,
			DeviceID:      deviceID,
			SampleRate:    sampleRate,
			Channels:      channels,
			FrameDuration: cfg.Stream.FrameDuration,
			MaxRetries:    cfg.Stream.MaxRetries,
		}, logger))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Type)
}

// wrap 避免把类型化的 nil 指针装进接口
func wrap[T Source](s T, err error) (Source, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
