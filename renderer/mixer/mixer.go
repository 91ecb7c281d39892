// Package mixer 渲染器侧的voice模型：wave buffer队列、状态推进和声道混音。
// 各个后端只负责按硬件节拍调用 Render。
package mixer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

var (
	ErrClosed       = errors.New("driver closed")
	ErrBadVoice     = errors.New("invalid voice id")
	ErrBadMemPool   = errors.New("invalid memory pool id")
	ErrNotAttached  = errors.New("wave buffer memory is not in an attached pool")
	ErrVoiceFormat  = errors.New("unsupported voice format")
	ErrVoiceNotInit = errors.New("voice not initialized")
)

var _ interfaces.Driver = (*Mixer)(nil)

type entry struct {
	wb    *interfaces.WaveBuf
	state interfaces.WaveBufState
}

type voice struct {
	initialized bool
	playing     bool
	channels    int
	rate        int
	mixID       int         // 只有送到 FinalMixID 的voice进入sink
	factors     [][]float32 // [src][dst]

	queue []*entry
	pos   int     // 当前buffer已消费的帧数
	frac  float64 // 采样率换算的小数部分
	step  float64
}

type memPool struct {
	region   []byte
	attached bool
}

// Mixer 实现 interfaces.Driver
type Mixer struct {
	mu           sync.Mutex
	outputRate   int
	sinkChannels int
	voices       []voice
	pools        map[int]*memPool
	nextPool     int
	sinks        map[int][]uint8
	nextSink     int
	acc          []float32
	ticks        uint64
	tick         chan struct{}
	closed       bool
}

// New 创建驱动上下文，finalMixChannels 为最终混音的声道数
func New(cfg interfaces.RendererConfig, finalMixChannels int) *Mixer {
	return &Mixer{
		outputRate:   cfg.OutputRate,
		sinkChannels: finalMixChannels,
		voices:       make([]voice, cfg.NumVoices),
		pools:        make(map[int]*memPool),
		sinks:        make(map[int][]uint8),
		acc:          make([]float32, finalMixChannels),
		tick:         make(chan struct{}, 1),
	}
}

func (m *Mixer) SinkChannels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinkChannels
}

func (m *Mixer) MemPoolAdd(region []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return -1, ErrClosed
	}
	if len(region) == 0 {
		return -1, fmt.Errorf("%w: empty region", ErrBadMemPool)
	}
	id := m.nextPool
	m.nextPool++
	m.pools[id] = &memPool{region: region}
	return id, nil
}

func (m *Mixer) MemPoolAttach(id int) error {
	return m.setAttached(id, true)
}

func (m *Mixer) MemPoolDetach(id int) error {
	return m.setAttached(id, false)
}

func (m *Mixer) setAttached(id int, attached bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadMemPool, id)
	}
	p.attached = attached
	return nil
}

func (m *Mixer) MemPoolRemove(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[id]; !ok {
		return fmt.Errorf("%w: %d", ErrBadMemPool, id)
	}
	delete(m.pools, id)
	return nil
}

func (m *Mixer) DeviceSinkAdd(name string, channels []uint8) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return -1, ErrClosed
	}
	for _, ch := range channels {
		if int(ch) >= m.sinkChannels {
			return -1, fmt.Errorf("sink %q: channel %d out of range", name, ch)
		}
	}
	id := m.nextSink
	m.nextSink++
	m.sinks[id] = append([]uint8(nil), channels...)
	return id, nil
}

func (m *Mixer) voice(id int) (*voice, error) {
	if id < 0 || id >= len(m.voices) {
		return nil, fmt.Errorf("%w: %d", ErrBadVoice, id)
	}
	return &m.voices[id], nil
}

func (m *Mixer) VoiceInit(id, channels int, format interfaces.PcmFormat, sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.voice(id)
	if err != nil {
		return err
	}
	if format != interfaces.PcmFormatInt16 {
		return fmt.Errorf("%w: %d", ErrVoiceFormat, format)
	}
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrVoiceFormat, channels, sampleRate)
	}

	factors := make([][]float32, channels)
	for i := range factors {
		factors[i] = make([]float32, m.sinkChannels)
	}
	*v = voice{
		initialized: true,
		channels:    channels,
		rate:        sampleRate,
		factors:     factors,
		step:        float64(sampleRate) / float64(m.outputRate),
	}
	return nil
}

func (m *Mixer) VoiceSetDestinationMix(id, mixID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, err := m.voice(id); err == nil {
		v.mixID = mixID
	}
}

func (m *Mixer) VoiceSetMixFactor(id int, factor float32, srcChannel, dstChannel int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.voice(id)
	if err != nil || !v.initialized {
		return
	}
	if srcChannel < 0 || srcChannel >= v.channels || dstChannel < 0 || dstChannel >= m.sinkChannels {
		return
	}
	v.factors[srcChannel][dstChannel] = factor
}

func (m *Mixer) VoiceStart(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, err := m.voice(id); err == nil && v.initialized {
		v.playing = true
	}
}

func (m *Mixer) VoiceStop(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, err := m.voice(id); err == nil {
		v.playing = false
	}
}

// VoiceDrop 丢弃队列，所有buffer回到 Free
func (m *Mixer) VoiceDrop(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.voice(id)
	if err != nil {
		return
	}
	for _, e := range v.queue {
		e.wb.SetState(interfaces.WaveBufFree)
	}
	*v = voice{}
}

func (m *Mixer) VoiceIsPlaying(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.voice(id)
	return err == nil && v.playing
}

// VoiceAddWaveBuf 入队，同步置为 Queued
func (m *Mixer) VoiceAddWaveBuf(id int, wb *interfaces.WaveBuf) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	v, err := m.voice(id)
	if err != nil {
		return err
	}
	if !v.initialized {
		return ErrVoiceNotInit
	}
	if !m.inAttachedPool(wb.Region) {
		return ErrNotAttached
	}
	frameBytes := v.channels * 2
	if wb.StartSampleOffset < 0 || wb.EndSampleOffset < wb.StartSampleOffset ||
		wb.EndSampleOffset*frameBytes > len(wb.Region) {
		return fmt.Errorf("wave buffer offsets %d..%d outside region", wb.StartSampleOffset, wb.EndSampleOffset)
	}

	wb.SetState(interfaces.WaveBufQueued)
	v.queue = append(v.queue, &entry{wb: wb, state: interfaces.WaveBufQueued})
	return nil
}

func (m *Mixer) inAttachedPool(region []byte) bool {
	if len(region) == 0 {
		return false
	}
	for _, p := range m.pools {
		if p.attached && &p.region[0] == &region[0] {
			return true
		}
	}
	return false
}

// Update 把渲染线程的进度同步到 wave buffer，移除已播完的项
func (m *Mixer) Update() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for i := range m.voices {
		v := &m.voices[i]
		kept := v.queue[:0]
		for _, e := range v.queue {
			if e.wb.State() != e.state {
				e.wb.SetState(e.state)
			}
			if e.state != interfaces.WaveBufDone {
				kept = append(kept, e)
			}
		}
		for j := len(kept); j < len(v.queue); j++ {
			v.queue[j] = nil
		}
		v.queue = kept
	}
	return nil
}

func (m *Mixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for i := range m.voices {
		m.voices[i] = voice{}
	}
	m.pools = make(map[int]*memPool)
}

// Render 由硬件节拍驱动，向 out 写入一个周期的交错int16采样
func (m *Mixer) Render(out []int16) {
	m.mu.Lock()

	clear(out)
	ch := m.sinkChannels
	frames := 0
	if ch > 0 {
		frames = len(out) / ch
	}

	acc := m.acc
	for i := range m.voices {
		v := &m.voices[i]
		if !v.playing || v.mixID != interfaces.FinalMixID {
			continue
		}
		for f := 0; f < frames; f++ {
			e := v.head()
			if e == nil {
				break
			}
			e.state = interfaces.WaveBufPlaying

			clear(acc)
			off := (e.wb.StartSampleOffset + v.pos) * v.channels * 2
			for src := 0; src < v.channels; src++ {
				s := float32(int16(binary.NativeEndian.Uint16(e.wb.Region[off+src*2:])))
				for dst := 0; dst < ch; dst++ {
					acc[dst] += s * v.factors[src][dst]
				}
			}
			for dst := 0; dst < ch; dst++ {
				out[f*ch+dst] = clamp(float32(out[f*ch+dst]) + acc[dst])
			}

			v.frac += v.step
			for v.frac >= 1 {
				v.frac--
				v.pos++
			}
			if v.pos >= e.wb.EndSampleOffset-e.wb.StartSampleOffset {
				e.state = interfaces.WaveBufDone
				v.pos = 0
				v.frac = 0
			}
		}
	}
	m.ticks++
	m.mu.Unlock()

	select {
	case m.tick <- struct{}{}:
	default:
	}
}

// head 队列里第一个还没播完的buffer
func (v *voice) head() *entry {
	for _, e := range v.queue {
		if e.state != interfaces.WaveBufDone {
			return e
		}
	}
	return nil
}

// Ticks 已渲染的周期数
func (m *Mixer) Ticks() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// WaitTick 等下一次 Render，超时返回 false
func (m *Mixer) WaitTick(timeout time.Duration) bool {
	select {
	case <-m.tick:
		return true
	case <-time.After(timeout):
		return false
	}
}

func clamp(v float32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
