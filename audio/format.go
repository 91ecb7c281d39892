package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

// Format 采样格式，低8位为位宽，高位为标志
type Format uint16

const (
	formatBitSize   Format = 0xFF
	formatFloatFlag Format = 1 << 8
	formatBigEndian Format = 1 << 12
	formatSigned    Format = 1 << 15
)

const (
	FormatU8     Format = 0x0008
	FormatS8     Format = 0x8008
	FormatU16LSB Format = 0x0010
	FormatS16LSB Format = 0x8010
	FormatU16MSB Format = 0x1010
	FormatS16MSB Format = 0x9010
	FormatS32LSB Format = 0x8020
	FormatS32MSB Format = 0x9020
	FormatF32LSB Format = 0x8120
	FormatF32MSB Format = 0x9120
)

// FormatS16Sys 本机字节序的16位有符号整数，也是引擎唯一支持的格式
var FormatS16Sys = nativeS16()

func nativeS16() Format {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return FormatS16LSB
	}
	return FormatS16MSB
}

func (f Format) BitSize() int      { return int(f & formatBitSize) }
func (f Format) IsFloat() bool     { return f&formatFloatFlag != 0 }
func (f Format) IsBigEndian() bool { return f&formatBigEndian != 0 }
func (f Format) IsSigned() bool    { return f&formatSigned != 0 }

func (f Format) String() string {
	switch f {
	case FormatU8:
		return "U8"
	case FormatS8:
		return "S8"
	case FormatU16LSB:
		return "U16LSB"
	case FormatS16LSB:
		return "S16LSB"
	case FormatU16MSB:
		return "U16MSB"
	case FormatS16MSB:
		return "S16MSB"
	case FormatS32LSB:
		return "S32LSB"
	case FormatS32MSB:
		return "S32MSB"
	case FormatF32LSB:
		return "F32LSB"
	case FormatF32MSB:
		return "F32MSB"
	default:
		return fmt.Sprintf("Format(0x%04x)", uint16(f))
	}
}

// ParseFormat 配置文件里的格式名
func ParseFormat(name string) (Format, error) {
	switch name {
	case "u8":
		return FormatU8, nil
	case "s8":
		return FormatS8, nil
	case "u16", "u16le":
		return FormatU16LSB, nil
	case "u16be":
		return FormatU16MSB, nil
	case "s16le":
		return FormatS16LSB, nil
	case "s16be":
		return FormatS16MSB, nil
	case "", "s16":
		return FormatS16Sys, nil
	case "s32", "s32le":
		return FormatS32LSB, nil
	case "s32be":
		return FormatS32MSB, nil
	case "f32", "f32le":
		return FormatF32LSB, nil
	case "f32be":
		return FormatF32MSB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

var fallbackTable = map[Format][]Format{
	FormatU8:     {FormatU8, FormatS8, FormatS16LSB, FormatS16MSB, FormatU16LSB, FormatU16MSB, FormatS32LSB, FormatS32MSB, FormatF32LSB, FormatF32MSB},
	FormatS8:     {FormatS8, FormatU8, FormatS16LSB, FormatS16MSB, FormatU16LSB, FormatU16MSB, FormatS32LSB, FormatS32MSB, FormatF32LSB, FormatF32MSB},
	FormatS16LSB: {FormatS16LSB, FormatS16MSB, FormatU16LSB, FormatU16MSB, FormatS32LSB, FormatS32MSB, FormatF32LSB, FormatF32MSB, FormatU8, FormatS8},
	FormatS16MSB: {FormatS16MSB, FormatS16LSB, FormatU16MSB, FormatU16LSB, FormatS32MSB, FormatS32LSB, FormatF32MSB, FormatF32LSB, FormatU8, FormatS8},
	FormatU16LSB: {FormatU16LSB, FormatU16MSB, FormatS16LSB, FormatS16MSB, FormatS32LSB, FormatS32MSB, FormatF32LSB, FormatF32MSB, FormatU8, FormatS8},
	FormatU16MSB: {FormatU16MSB, FormatU16LSB, FormatS16MSB, FormatS16LSB, FormatS32MSB, FormatS32LSB, FormatF32MSB, FormatF32LSB, FormatU8, FormatS8},
	FormatS32LSB: {FormatS32LSB, FormatS32MSB, FormatF32LSB, FormatF32MSB, FormatS16LSB, FormatS16MSB, FormatU16LSB, FormatU16MSB, FormatU8, FormatS8},
	FormatS32MSB: {FormatS32MSB, FormatS32LSB, FormatF32MSB, FormatF32LSB, FormatS16MSB, FormatS16LSB, FormatU16MSB, FormatU16LSB, FormatU8, FormatS8},
	FormatF32LSB: {FormatF32LSB, FormatF32MSB, FormatS32LSB, FormatS32MSB, FormatS16LSB, FormatS16MSB, FormatU16LSB, FormatU16MSB, FormatU8, FormatS8},
	FormatF32MSB: {FormatF32MSB, FormatF32LSB, FormatS32MSB, FormatS32LSB, FormatS16MSB, FormatS16LSB, FormatU16MSB, FormatU16LSB, FormatU8, FormatS8},
}

// FallbackFormats 以请求格式开头的候选顺序，未知格式返回空
func FallbackFormats(f Format) []Format {
	list, ok := fallbackTable[f]
	if !ok {
		return nil
	}
	return append([]Format(nil), list...)
}

// Negotiate 按请求顺序选出第一个驱动支持的格式
func Negotiate(requested []Format) (Format, error) {
	for _, f := range requested {
		if f == FormatS16Sys {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: none of %v", ErrUnsupportedFormat, requested)
}

// pcmFormat 协商结果对应的渲染器格式
func pcmFormat(f Format) interfaces.PcmFormat {
	switch {
	case f.IsFloat():
		return interfaces.PcmFormatFloat
	case f.BitSize() == 8:
		return interfaces.PcmFormatInt8
	case f.BitSize() == 16:
		return interfaces.PcmFormatInt16
	case f.BitSize() == 32:
		return interfaces.PcmFormatInt32
	}
	return interfaces.PcmFormatInvalid
}

// AudioSpec 打开后固定不变的输出参数
type AudioSpec struct {
	Format      Format
	SampleRate  int
	Channels    int
	Frames      int // 每个buffer的帧数
	FrameSize   int // 每帧字节数
	BufferBytes int
	Silence     byte
}

// CalculateSpec 根据格式重新计算派生字段
func CalculateSpec(spec *AudioSpec) {
	if spec.Format == FormatU8 {
		spec.Silence = 0x80
	} else {
		spec.Silence = 0x00
	}
	spec.FrameSize = spec.Format.BitSize() / 8 * spec.Channels
	spec.BufferBytes = spec.FrameSize * spec.Frames
}

// DurationMs 一个buffer对应的播放时长（毫秒）
func (s AudioSpec) DurationMs() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.Frames) * 1000 / float64(s.SampleRate)
}
