// Package oto 基于 ebitengine/oto 的渲染器后端。
// oto 每个进程只允许一个 context，Stop 之后只挂起不销毁。
package oto

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/renderer/mixer"
)

var _ interfaces.Renderer = (*Renderer)(nil)

var (
	sharedMu  sync.Mutex
	sharedCtx *oto.Context
	sharedCfg interfaces.RendererConfig
	sharedCh  int
)

type Renderer struct {
	mu     sync.Mutex
	cfg    interfaces.RendererConfig
	logger *slog.Logger
	player *oto.Player
	mixer  *mixer.Mixer
	tick   time.Duration
}

func New(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

func (r *Renderer) Initialize(cfg interfaces.RendererConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg
	r.tick = time.Duration(cfg.FrameTick()) * time.Second / time.Duration(cfg.OutputRate)
	return nil
}

func (r *Renderer) CreateDriver(cfg interfaces.RendererConfig, numFinalMixChannels int) (interfaces.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mixer = mixer.New(cfg, numFinalMixChannels)
	return r.mixer, nil
}

func sharedContext(cfg interfaces.RendererConfig, channels int, bufferSize time.Duration) (*oto.Context, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedCtx != nil {
		if sharedCfg.OutputRate != cfg.OutputRate || sharedCh != channels {
			return nil, fmt.Errorf("oto context already running at %d Hz, %d channels", sharedCfg.OutputRate, sharedCh)
		}
		if err := sharedCtx.Resume(); err != nil {
			return nil, err
		}
		return sharedCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.OutputRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	sharedCtx = ctx
	sharedCfg = cfg
	sharedCh = channels
	return ctx, nil
}

func (r *Renderer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mixer == nil {
		return &interfaces.ResultError{Op: "Start", Err: fmt.Errorf("driver not created")}
	}

	ctx, err := sharedContext(r.cfg, r.mixer.SinkChannels(), 2*r.tick)
	if err != nil {
		return &interfaces.ResultError{Op: "oto.NewContext", Err: err}
	}

	// 持续播放的player，从 mixer 拉数据
	r.player = ctx.NewPlayer(&pull{mixer: r.mixer})
	r.player.Play()

	r.logger.Info("Audio renderer started",
		"backend", "oto",
		"sample_rate", r.cfg.OutputRate,
		"channels", r.mixer.SinkChannels())
	return nil
}

// pull 是 player 的数据源，只在 oto 的播放线程里使用
type pull struct {
	mixer *mixer.Mixer
	buf   []int16
}

func (p *pull) Read(b []byte) (int, error) {
	ch := p.mixer.SinkChannels()
	n := len(b) / 2
	n -= n % ch
	if cap(p.buf) < n {
		p.buf = make([]int16, n)
	}
	samples := p.buf[:n]
	p.mixer.Render(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return n * 2, nil
}

func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.player == nil {
		return nil
	}
	err := r.player.Close()
	r.player = nil

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedCtx != nil {
		if serr := sharedCtx.Suspend(); serr != nil && err == nil {
			err = serr
		}
	}
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
	r.mixer = nil
}
