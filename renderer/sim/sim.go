// Package sim 纯软件渲染器。WaitFrame 推进一个虚拟硬件帧，
// 可选按真实时间节拍；记录调用顺序并支持按操作注入失败。
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/renderer/mixer"
)

var (
	_ interfaces.Renderer = (*Renderer)(nil)
	_ interfaces.Driver   = (*driver)(nil)
)

type Option func(*Renderer)

// WithRealTime 每帧真实等待 5ms
func WithRealTime() Option {
	return func(r *Renderer) { r.realTime = true }
}

// WithFailure 让名为 op 的调用返回带状态码的失败
func WithFailure(op string, code uint32) Option {
	return func(r *Renderer) { r.failures[op] = code }
}

// WithUpdateHook 每次驱动 Update 之后回调
func WithUpdateHook(fn func()) Option {
	return func(r *Renderer) { r.onUpdate = fn }
}

// WithSink 接收每帧渲染出的采样
func WithSink(fn func([]int16)) Option {
	return func(r *Renderer) { r.sink = fn }
}

// 只保留最近的调用记录
const maxCalls = 4096

type Renderer struct {
	mu       sync.Mutex
	cfg      interfaces.RendererConfig
	mixer    *mixer.Mixer
	out      []int16
	calls    []string
	failures map[string]uint32
	realTime bool
	onUpdate func()
	sink     func([]int16)
	frames   uint64
	next     time.Time

	initialized bool
	started     bool
}

func New(opts ...Option) *Renderer {
	r := &Renderer{failures: make(map[string]uint32)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) record(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) >= maxCalls {
		r.calls = append(r.calls[:0], r.calls[maxCalls/2:]...)
	}
	r.calls = append(r.calls, op)
	if code, ok := r.failures[op]; ok {
		return &interfaces.ResultError{Op: op, Code: code}
	}
	return nil
}

// Calls 调用记录的副本
func (r *Renderer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Frames 已经推进的硬件帧数
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Driver 当前驱动上下文，没有创建时为 nil
func (r *Renderer) Driver() interfaces.Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mixer == nil {
		return nil
	}
	return &driver{Mixer: r.mixer, r: r}
}

func (r *Renderer) Initialize(cfg interfaces.RendererConfig) error {
	if err := r.record("Initialize"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return &interfaces.ResultError{Op: "Initialize", Code: 0x2a, Err: fmt.Errorf("already initialized")}
	}
	r.cfg = cfg
	r.initialized = true
	return nil
}

func (r *Renderer) CreateDriver(cfg interfaces.RendererConfig, numFinalMixChannels int) (interfaces.Driver, error) {
	if err := r.record("CreateDriver"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mixer = mixer.New(cfg, numFinalMixChannels)
	r.out = make([]int16, cfg.FrameTick()*numFinalMixChannels)
	return &driver{Mixer: r.mixer, r: r}, nil
}

func (r *Renderer) Start() error {
	if err := r.record("Start"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = true
	r.next = time.Now()
	return nil
}

func (r *Renderer) Stop() error {
	if err := r.record("Stop"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = false
	return nil
}

// WaitFrame 渲染一个硬件帧
func (r *Renderer) WaitFrame() error {
	r.mu.Lock()
	m, out, started := r.mixer, r.out, r.started
	r.mu.Unlock()

	if !started || m == nil {
		return fmt.Errorf("renderer not started")
	}
	m.Render(out)
	if r.sink != nil {
		r.sink(out)
	}

	r.mu.Lock()
	r.frames++
	var wait time.Duration
	if r.realTime {
		r.next = r.next.Add(5 * time.Millisecond)
		wait = time.Until(r.next)
	}
	r.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

func (r *Renderer) FlushCache(region []byte) {
	_ = r.record("FlushCache")
}

func (r *Renderer) Exit() {
	_ = r.record("Exit")
	r.mu.Lock()
	defer r.mu.Unlock()

	r.initialized = false
	r.mixer = nil
}

// driver 在 mixer 外面包一层，记录调用并注入失败
type driver struct {
	*mixer.Mixer
	r *Renderer
}

func (d *driver) MemPoolAdd(region []byte) (int, error) {
	if err := d.r.record("MemPoolAdd"); err != nil {
		return -1, err
	}
	return d.Mixer.MemPoolAdd(region)
}

func (d *driver) MemPoolAttach(id int) error {
	if err := d.r.record("MemPoolAttach"); err != nil {
		return err
	}
	return d.Mixer.MemPoolAttach(id)
}

func (d *driver) MemPoolDetach(id int) error {
	if err := d.r.record("MemPoolDetach"); err != nil {
		return err
	}
	return d.Mixer.MemPoolDetach(id)
}

func (d *driver) MemPoolRemove(id int) error {
	if err := d.r.record("MemPoolRemove"); err != nil {
		return err
	}
	return d.Mixer.MemPoolRemove(id)
}

func (d *driver) DeviceSinkAdd(name string, channels []uint8) (int, error) {
	if err := d.r.record("DeviceSinkAdd"); err != nil {
		return -1, err
	}
	return d.Mixer.DeviceSinkAdd(name, channels)
}

func (d *driver) VoiceInit(id, channels int, format interfaces.PcmFormat, sampleRate int) error {
	if err := d.r.record("VoiceInit"); err != nil {
		return err
	}
	return d.Mixer.VoiceInit(id, channels, format, sampleRate)
}

func (d *driver) VoiceStart(id int) {
	_ = d.r.record("VoiceStart")
	d.Mixer.VoiceStart(id)
}

func (d *driver) VoiceStop(id int) {
	_ = d.r.record("VoiceStop")
	d.Mixer.VoiceStop(id)
}

func (d *driver) VoiceDrop(id int) {
	_ = d.r.record("VoiceDrop")
	d.Mixer.VoiceDrop(id)
}

func (d *driver) VoiceAddWaveBuf(id int, wb *interfaces.WaveBuf) error {
	if err := d.r.record("VoiceAddWaveBuf"); err != nil {
		return err
	}
	return d.Mixer.VoiceAddWaveBuf(id, wb)
}

func (d *driver) Update() error {
	err := d.Mixer.Update()
	if d.r.onUpdate != nil {
		d.r.onUpdate()
	}
	return err
}

func (d *driver) Close() {
	_ = d.r.record("Close")
	d.Mixer.Close()
}
