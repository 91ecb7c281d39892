// Package malgo 基于 miniaudio 的渲染器后端
package malgo

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/renderer/mixer"
)

var _ interfaces.Renderer = (*Renderer)(nil)

type Renderer struct {
	mu       sync.Mutex
	cfg      interfaces.RendererConfig
	logger   *slog.Logger
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	mixer    *mixer.Mixer
	buf      []int16
	tick     time.Duration
}

func New(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

func (r *Renderer) Initialize(cfg interfaces.RendererConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		r.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return &interfaces.ResultError{Op: "malgo.InitContext", Err: err}
	}
	r.malgoCtx = ctx
	r.cfg = cfg
	r.tick = time.Duration(cfg.FrameTick()) * time.Second / time.Duration(cfg.OutputRate)
	return nil
}

func (r *Renderer) CreateDriver(cfg interfaces.RendererConfig, numFinalMixChannels int) (interfaces.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.malgoCtx == nil {
		return nil, &interfaces.ResultError{Op: "CreateDriver", Err: fmt.Errorf("context not initialized")}
	}
	r.mixer = mixer.New(cfg, numFinalMixChannels)
	return r.mixer, nil
}

// Start 打开播放设备，每个周期一个硬件帧
func (r *Renderer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mixer == nil {
		return &interfaces.ResultError{Op: "Start", Err: fmt.Errorf("driver not created")}
	}

	m := r.mixer
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(r.mixer.SinkChannels())
	deviceConfig.SampleRate = uint32(r.cfg.OutputRate)
	deviceConfig.PeriodSizeInFrames = uint32(r.cfg.FrameTick())
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(r.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			r.render(m, pOutput, frameCount)
		},
	})
	if err != nil {
		return &interfaces.ResultError{Op: "malgo.InitDevice", Err: err}
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return &interfaces.ResultError{Op: "malgo.Device.Start", Err: err}
	}
	r.device = device

	r.logger.Info("Audio renderer started",
		"backend", "malgo",
		"sample_rate", r.cfg.OutputRate,
		"channels", r.mixer.SinkChannels(),
		"period_frames", r.cfg.FrameTick())
	return nil
}

// render 运行在 miniaudio 的音频线程
func (r *Renderer) render(m *mixer.Mixer, out []byte, frameCount uint32) {
	n := int(frameCount) * m.SinkChannels()
	if cap(r.buf) < n {
		r.buf = make([]int16, n)
	}
	samples := r.buf[:n]
	m.Render(samples)
	for i, s := range samples {
		binary.NativeEndian.PutUint16(out[i*2:], uint16(s))
	}
}

func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device == nil {
		return nil
	}
	err := r.device.Stop()
	r.device.Uninit()
	r.device = nil
	return err
}

// WaitFrame 等设备回调完成一个周期，设备卡住时最多等两个周期
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

// FlushCache 主机内存与回调线程共享，mixer 的锁已经保证可见性
func (r *Renderer) FlushCache([]byte) {}

func (r *Renderer) Exit() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.malgoCtx != nil {
		if err := r.malgoCtx.Uninit(); err != nil {
			r.logger.Warn("malgo context uninit error", "error", err)
		}
		r.malgoCtx.Free()
		r.malgoCtx = nil
	}
	r.mixer = nil
}
