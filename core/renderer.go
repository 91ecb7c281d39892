package core

import (
	"fmt"
	"log/slog"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/renderer/malgo"
	"github.com/lisuiheng/pcmout/renderer/oto"
	"github.com/lisuiheng/pcmout/renderer/portaudio"
	"github.com/lisuiheng/pcmout/renderer/sim"
)

// NewRenderer 按配置选择渲染器后端
func NewRenderer(config Config, log *slog.Logger) (interfaces.Renderer, error) {
	switch config.Audio.Backend {
	case "", "malgo":
		return malgo.New(log), nil
	case "portaudio":
		return portaudio.New(log), nil
	case "oto":
		return oto.New(log), nil
	case "sim":
		var opts []sim.Option
		if config.Audio.RealTime {
			opts = append(opts, sim.WithRealTime())
		}
		return sim.New(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, config.Audio.Backend)
	}
}

// rendererConfig 输出采样率以外沿用默认值
func rendererConfig(config Config) interfaces.RendererConfig {
	cfg := interfaces.DefaultRendererConfig()
	if config.Audio.OutputRate > 0 {
		cfg.OutputRate = config.Audio.OutputRate
	}
	return cfg
}
