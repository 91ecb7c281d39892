// pkg/interfaces/renderer.go
package interfaces

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrRendererInit 渲染器/平台调用失败
var ErrRendererInit = errors.New("renderer init failure")

// DefaultDeviceName 默认输出设备（不做设备枚举）
const DefaultDeviceName = "MainAudioOut"

// FinalMixID 最终混音的目标ID
const FinalMixID = 0

// ResultError 携带平台返回的原生状态码
type ResultError struct {
	Op   string
	Code uint32
	Err  error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (0x%x): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s failed (0x%x)", e.Op, e.Code)
}

func (e *ResultError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRendererInit, e.Err}
	}
	return []error{ErrRendererInit}
}

// RendererConfig 渲染器初始化参数
type RendererConfig struct {
	OutputRate    int
	NumVoices     int
	NumEffects    int
	NumSinks      int
	NumMixObjs    int
	NumMixBuffers int
}

// DefaultRendererConfig 48kHz输出，24个voice，一个sink
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		OutputRate:    48000,
		NumVoices:     24,
		NumEffects:    0,
		NumSinks:      1,
		NumMixObjs:    1,
		NumMixBuffers: 2,
	}
}

// FrameTick 每个硬件帧的采样数（5ms）
func (c RendererConfig) FrameTick() int {
	return c.OutputRate / 200
}

// PcmFormat 渲染器识别的采样格式
type PcmFormat int

const (
	PcmFormatInvalid PcmFormat = iota
	PcmFormatInt8
	PcmFormatInt16
	PcmFormatInt24
	PcmFormatInt32
	PcmFormatFloat
)

// WaveBufState wave buffer 的生命周期
type WaveBufState int32

const (
	WaveBufFree WaveBufState = iota
	WaveBufQueued
	WaveBufPlaying
	WaveBufDone
)

func (s WaveBufState) String() string {
	switch s {
	case WaveBufFree:
		return "free"
	case WaveBufQueued:
		return "queued"
	case WaveBufPlaying:
		return "playing"
	case WaveBufDone:
		return "done"
	default:
		return fmt.Sprintf("WaveBufState(%d)", int32(s))
	}
}

// WaveBuf 提交给渲染器的一段采样描述。
// Region 是整个内存池，Start/EndSampleOffset 以帧为单位。
// 状态由渲染器在自己的线程里推进，引擎只读。
type WaveBuf struct {
	Region            []byte
	Size              int
	StartSampleOffset int
	EndSampleOffset   int

	state atomic.Int32
}

func (w *WaveBuf) State() WaveBufState {
	return WaveBufState(w.state.Load())
}

func (w *WaveBuf) SetState(s WaveBufState) {
	w.state.Store(int32(s))
}

// Claimable Free 和 Done 都可以重新提交
func (w *WaveBuf) Claimable() bool {
	s := w.State()
	return s == WaveBufFree || s == WaveBufDone
}

// Renderer 平台音频渲染服务
type Renderer interface {
	Initialize(cfg RendererConfig) error
	CreateDriver(cfg RendererConfig, numFinalMixChannels int) (Driver, error)
	Start() error
	Stop() error
	// WaitFrame 阻塞到下一个硬件帧
	WaitFrame() error
	// FlushCache 提交前把CPU写入刷到硬件可见内存
	FlushCache(region []byte)
	Exit()
}

// Driver 渲染器驱动上下文
type Driver interface {
	MemPoolAdd(region []byte) (int, error)
	MemPoolAttach(id int) error
	MemPoolDetach(id int) error
	MemPoolRemove(id int) error
	DeviceSinkAdd(name string, channels []uint8) (int, error)

	VoiceInit(id, channels int, format PcmFormat, sampleRate int) error
	VoiceSetDestinationMix(id, mixID int)
	VoiceSetMixFactor(id int, factor float32, srcChannel, dstChannel int)
	VoiceStart(id int)
	VoiceStop(id int)
	VoiceDrop(id int)
	VoiceIsPlaying(id int) bool
	VoiceAddWaveBuf(id int, wb *WaveBuf) error

	// Update 同步驱动状态，推进 wave buffer 状态
	Update() error
	Close()
}
