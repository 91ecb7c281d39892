package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

// DefaultBuffers 双缓冲
const DefaultBuffers = 2

// DeviceState 设备生命周期
type DeviceState string

const (
	DeviceStateClosed  DeviceState = "closed"
	DeviceStateOpening DeviceState = "opening"
	DeviceStateOpen    DeviceState = "open"
	DeviceStateClosing DeviceState = "closing"
)

// OpenSpec 打开设备时请求的参数
type OpenSpec struct {
	// Formats 按优先级排列的候选格式，为空时使用 Format 的回退列表
	Formats    []Format
	Format     Format
	SampleRate int
	Channels   int
	Frames     int
	// Buffers 硬件buffer数量，默认2
	Buffers  int
	Renderer interfaces.RendererConfig
}

// Device 一个打开的输出设备，只由 Open 成功时返回
type Device struct {
	id       string
	spec     AudioSpec
	renderer interfaces.Renderer
	driver   interfaces.Driver
	pool     *bufferPool
	voice    Voice
	logger   *slog.Logger

	state      DeviceState
	stateMutex sync.RWMutex

	rendererInit    bool
	rendererStarted bool
	voiceInit       bool
	voiceStarted    bool
}

// Open 依次初始化渲染器、驱动、格式、内存池和voice。
// 任何一步失败都会按相反顺序释放已获取的资源。
func Open(r interfaces.Renderer, req OpenSpec, log *slog.Logger) (*Device, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if r == nil {
		return nil, errors.New("renderer cannot be nil")
	}
	if err := validate(&req); err != nil {
		return nil, err
	}

	d := &Device{
		id:       uuid.NewString(),
		renderer: r,
		state:    DeviceStateClosed,
	}
	d.logger = log.With("device", d.id)
	d.setState(DeviceStateOpening)

	if err := d.open(req); err != nil {
		d.logger.Error("Failed to open audio device", "error", err)
		d.teardown()
		d.setState(DeviceStateClosed)
		return nil, err
	}

	d.setState(DeviceStateOpen)
	d.logger.Info("Audio device opened",
		"format", d.spec.Format,
		"sample_rate", d.spec.SampleRate,
		"channels", d.spec.Channels,
		"frames", d.spec.Frames,
		"buffer_bytes", d.spec.BufferBytes,
		"buffer_ms", d.spec.DurationMs(),
		"buffers", len(d.pool.bufs))
	return d, nil
}

func validate(req *OpenSpec) error {
	if req.Buffers == 0 {
		req.Buffers = DefaultBuffers
	}
	if req.Renderer == (interfaces.RendererConfig{}) {
		req.Renderer = interfaces.DefaultRendererConfig()
	}

	switch {
	case req.Buffers < 2:
		return fmt.Errorf("%w: need at least 2 buffers, got %d", ErrInvalidSpec, req.Buffers)
	case req.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidSpec, req.SampleRate)
	case req.Frames <= 0:
		return fmt.Errorf("%w: frames %d", ErrInvalidSpec, req.Frames)
	case req.Channels != 1 && req.Channels != 2:
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, req.Channels)
	}
	return nil
}

func (d *Device) open(req OpenSpec) error {
	cfg := req.Renderer

	if err := d.renderer.Initialize(cfg); err != nil {
		return rendererError("Initialize", err)
	}
	d.rendererInit = true

	drv, err := d.renderer.CreateDriver(cfg, len(sinkChannels))
	if err != nil {
		return rendererError("CreateDriver", err)
	}
	d.driver = drv

	formats := req.Formats
	if len(formats) == 0 {
		formats = FallbackFormats(req.Format)
	}
	format, err := Negotiate(formats)
	if err != nil {
		return err
	}
	d.spec = AudioSpec{
		Format:     format,
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		Frames:     req.Frames,
	}
	CalculateSpec(&d.spec)

	pool, err := allocatePool(d.spec, req.Buffers)
	if err != nil {
		return err
	}
	d.pool = pool
	if err := pool.register(drv); err != nil {
		return err
	}

	if err := d.renderer.Start(); err != nil {
		return rendererError("Start", err)
	}
	d.rendererStarted = true

	if err := drv.VoiceInit(voiceID, d.spec.Channels, pcmFormat(d.spec.Format), d.spec.SampleRate); err != nil {
		return rendererError("VoiceInit", err)
	}
	d.voiceInit = true

	d.voice = NewVoice(d.spec.Channels)
	d.voice.apply(drv, voiceID)

	drv.VoiceStart(voiceID)
	d.voiceStarted = true
	return nil
}

// teardown 按获取的相反顺序释放，跳过没获取到的步骤
func (d *Device) teardown() {
	if d.voiceStarted {
		d.driver.VoiceStop(voiceID)
		d.voiceStarted = false
	}
	if d.voiceInit {
		d.driver.VoiceDrop(voiceID)
		d.voiceInit = false
	}
	if d.rendererStarted {
		if err := d.renderer.Stop(); err != nil {
			d.logger.Warn("Failed to stop renderer", "error", err)
		}
		d.rendererStarted = false
	}
	if d.pool != nil {
		if err := d.pool.release(); err != nil {
			d.logger.Warn("Failed to release buffer pool", "error", err)
		}
	}
	if d.driver != nil {
		d.driver.Close()
		d.driver = nil
	}
	if d.rendererInit {
		d.renderer.Exit()
		d.rendererInit = false
	}
}

// Close 关闭设备，可重复调用，nil 也安全
func (d *Device) Close() {
	if d == nil {
		return
	}
	if d.State() != DeviceStateOpen {
		return
	}

	d.setState(DeviceStateClosing)
	d.teardown()
	d.setState(DeviceStateClosed)
	d.logger.Info("Audio device closed")
}

// Spec 协商后的输出参数
func (d *Device) Spec() AudioSpec {
	return d.spec
}

func (d *Device) ID() string {
	return d.id
}

// Voice 打开时确定的声道路由
func (d *Device) Voice() Voice {
	return d.voice
}

// State 获取当前设备状态
func (d *Device) State() DeviceState {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.state
}

func (d *Device) setState(newState DeviceState) {
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	oldState := d.state
	if oldState != newState {
		d.state = newState
		d.logger.Debug("Device state changed", "from", oldState, "to", newState)
	}
}
