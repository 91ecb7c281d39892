package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lisuiheng/pcmout/audio"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/source"
)

// PlayerState 播放会话状态
type PlayerState string

const (
	PlayerStateIdle     PlayerState = "idle"
	PlayerStateOpening  PlayerState = "opening"
	PlayerStatePlaying  PlayerState = "playing"
	PlayerStateDraining PlayerState = "draining"
	PlayerStateStopped  PlayerState = "stopped"
)

// Status 包含播放器状态信息
type Status struct {
	State    PlayerState
	DeviceID string
	Chunks   int
	Spec     audio.AudioSpec
}

// Player 把音源按块喂给输出设备
type Player struct {
	config     Config
	renderer   interfaces.Renderer
	logger     *slog.Logger
	state      PlayerState
	stateMutex sync.RWMutex
	closeChan  chan struct{}
	closeOnce  sync.Once
	running    bool

	// 以下字段由 Run 所在的 goroutine 写入
	deviceID string
	spec     audio.AudioSpec
	chunks   int

	openSource func(ctx context.Context) (source.Source, error)
}

// NewPlayer 创建播放器，renderer 为 nil 时按配置创建后端
func NewPlayer(cfg Config, r interfaces.Renderer, log *slog.Logger) (*Player, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if r == nil {
		var err error
		r, err = NewRenderer(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	p := &Player{
		config:    cfg,
		renderer:  r,
		logger:    log,
		state:     PlayerStateIdle,
		closeChan: make(chan struct{}),
	}
	p.openSource = func(ctx context.Context) (source.Source, error) {
		return source.Open(ctx, cfg.Source, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.System.DeviceID, log)
	}
	return p, nil
}

func (p *Player) requestedFormats() ([]audio.Format, error) {
	formats := make([]audio.Format, 0, len(p.config.Audio.Formats))
	for _, name := range p.config.Audio.Formats {
		f, err := audio.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// Run 打开音源和设备，播放到音源结束、ctx 取消或 Close
func (p *Player) Run(ctx context.Context) error {
	p.stateMutex.Lock()
	if p.running {
		p.stateMutex.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.stateMutex.Unlock()

	select {
	case <-p.closeChan:
		return ErrPlayerClosed
	default:
	}

	p.logger.Info("Starting player")
	defer p.logger.Info("Player stopped")
	defer p.setState(PlayerStateStopped)

	p.setState(PlayerStateOpening)
	formats, err := p.requestedFormats()
	if err != nil {
		return err
	}

	src, err := p.openSource(ctx)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			p.logger.Error("Failed to close source", "error", err)
		}
	}()

	dev, err := audio.Open(p.renderer, audio.OpenSpec{
		Formats:    formats,
		Format:     audio.FormatS16Sys,
		SampleRate: src.SampleRate(),
		Channels:   src.Channels(),
		Frames:     p.config.Audio.Frames,
		Buffers:    p.config.Audio.Buffers,
		Renderer:   rendererConfig(p.config),
	}, p.logger)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer dev.Close()

	p.stateMutex.Lock()
	p.deviceID = dev.ID()
	p.spec = dev.Spec()
	p.stateMutex.Unlock()

	p.setState(PlayerStatePlaying)
	if err := p.pump(ctx, src, dev); err != nil {
		return err
	}

	p.setState(PlayerStateDraining)
	p.drain(dev)
	return nil
}

// pump 主循环：读满暂存区，不足一块时补静音
func (p *Player) pump(ctx context.Context, src source.Source, dev *audio.Device) error {
	spec := dev.Spec()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Context cancelled, stopping playback")
			return nil
		case <-p.closeChan:
			p.logger.Info("Close signal received, stopping playback")
			return nil
		default:
		}

		scratch := dev.ScratchBuffer()
		n, err := io.ReadFull(src, scratch)
		if n > 0 {
			fillSilence(scratch[n:], spec.Silence)
			dev.SubmitAndWait()
			p.stateMutex.Lock()
			p.chunks++
			p.stateMutex.Unlock()
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			p.logger.Info("Source exhausted", "chunks", p.GetStatus().Chunks)
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return fmt.Errorf("source read failed: %w", err)
		}
	}
}

// drain 再提交一轮静音，保证最后一块真实数据已经播完
func (p *Player) drain(dev *audio.Device) {
	spec := dev.Spec()
	for i := 0; i < len(dev.States()); i++ {
		fillSilence(dev.ScratchBuffer(), spec.Silence)
		dev.SubmitAndWait()
	}
}

func fillSilence(b []byte, silence byte) {
	for i := range b {
		b[i] = silence
	}
}

// GetStatus 获取当前播放状态
func (p *Player) GetStatus() Status {
	p.stateMutex.RLock()
	defer p.stateMutex.RUnlock()
	return Status{
		State:    p.state,
		DeviceID: p.deviceID,
		Chunks:   p.chunks,
		Spec:     p.spec,
	}
}

// GetState 获取当前状态
func (p *Player) GetState() PlayerState {
	p.stateMutex.RLock()
	defer p.stateMutex.RUnlock()
	return p.state
}

func (p *Player) setState(newState PlayerState) {
	p.stateMutex.Lock()
	defer p.stateMutex.Unlock()

	oldState := p.state
	if oldState != newState {
		p.state = newState
		p.logger.Info("State changed",
			"from", oldState,
			"to", newState)
	}
}

// Close 让 Run 在下一块之前退出
func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		close(p.closeChan)
	})
	return nil
}
