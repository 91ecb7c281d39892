// Package portaudio PortAudio回调流实现的渲染器后端
package portaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/renderer/mixer"
)

var _ interfaces.Renderer = (*Renderer)(nil)

type Renderer struct {
	mu     sync.Mutex
	cfg    interfaces.RendererConfig
	logger *slog.Logger
	stream *portaudio.Stream
	mixer  *mixer.Mixer
	tick   time.Duration
	inited bool
}

func New(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

func (r *Renderer) Initialize(cfg interfaces.RendererConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 初始化PortAudio
	if err := portaudio.Initialize(); err != nil {
		return &interfaces.ResultError{Op: "portaudio.Initialize", Err: err}
	}
	r.inited = true
	r.cfg = cfg
	r.tick = time.Duration(cfg.FrameTick()) * time.Second / time.Duration(cfg.OutputRate)
	return nil
}

func (r *Renderer) CreateDriver(cfg interfaces.RendererConfig, numFinalMixChannels int) (interfaces.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inited {
		return nil, &interfaces.ResultError{Op: "CreateDriver", Err: fmt.Errorf("portaudio not initialized")}
	}
	r.mixer = mixer.New(cfg, numFinalMixChannels)
	return r.mixer, nil
}

func (r *Renderer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mixer == nil {
		return &interfaces.ResultError{Op: "Start", Err: fmt.Errorf("driver not created")}
	}

	m := r.mixer
	// 打开音频流，每次回调一个硬件帧
	stream, err := portaudio.OpenDefaultStream(
		0,                // 输入通道数(0表示不录音)
		m.SinkChannels(), // 输出通道数
		float64(r.cfg.OutputRate),
		r.cfg.FrameTick(),
		func(out []int16) {
			m.Render(out)
		},
	)
	if err != nil {
		return &interfaces.ResultError{Op: "portaudio.OpenDefaultStream", Err: err}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return &interfaces.ResultError{Op: "portaudio.Stream.Start", Err: err}
	}
	r.stream = stream

	r.logger.Info("Audio renderer started",
		"backend", "portaudio",
		"sample_rate", r.cfg.OutputRate,
		"channels", m.SinkChannels())
	return nil
}

func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return nil
	}
	// 停止并关闭音频流
	if err := r.stream.Stop(); err != nil {
		r.logger.Error("failed to stop audio stream", "error", err)
	}
	err := r.stream.Close()
	r.stream = nil
	return err
}

func (r *Renderer) WaitFrame() error {
	r.mu.Lock()
	m, tick := r.mixer, r.tick
	r.mu.Unlock()

	if m == nil {
		return fmt.Errorf("driver not created")
	}
	m.WaitTick(2 * tick)
	return nil
}

func (r *Renderer) FlushCache([]byte) {}

func (r *Renderer) Exit() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inited {
		// 终止PortAudio
		if err := portaudio.Terminate(); err != nil {
			r.logger.Warn("failed to terminate portaudio", "error", err)
		}
		r.inited = false
	}
	r.mixer = nil
}
