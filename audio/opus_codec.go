package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hraban/opus"
)

// OPUS单帧最多 120ms@48kHz
const maxOpusFrame = 5760

// OpusDecoder 把远端推来的OPUS帧解成设备格式的PCM
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
	pcm        []int16
	logger     *slog.Logger
}

// NewOpusDecoder 创建新的OPUS解码器
func NewOpusDecoder(sampleRate, channels int, logger *slog.Logger) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]int16, maxOpusFrame*channels),
		logger:     logger,
	}, nil
}

// Decode 解码一帧，返回本机字节序的交错S16数据
func (d *OpusDecoder) Decode(opusData []byte) ([]byte, error) {
	if d.decoder == nil {
		return nil, errors.New("decoder not initialized")
	}

	n, err := d.decoder.Decode(opusData, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	samples := d.pcm[:n*d.channels]
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.NativeEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

func (d *OpusDecoder) SampleRate() int { return d.sampleRate }
func (d *OpusDecoder) Channels() int   { return d.channels }

// Close 释放解码器资源
func (d *OpusDecoder) Close() {
	d.decoder = nil
}

// OpusEncoder 推流端使用的OPUS编码器
type OpusEncoder struct {
	encoder  *opus.Encoder
	channels int
}

// NewOpusEncoder 创建新的OPUS编码器
func NewOpusEncoder(sampleRate, channels, bitrate int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("failed to set bitrate: %w", err)
	}

	return &OpusEncoder{encoder: enc, channels: channels}, nil
}

// Encode 编码一帧交错PCM
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if e.encoder == nil {
		return nil, errors.New("encoder not initialized")
	}

	data := make([]byte, 4000) // OPUS最大包大小
	n, err := e.encoder.Encode(pcm, data)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}
	return data[:n], nil
}

// Close 释放编码器资源
func (e *OpusEncoder) Close() {
	e.encoder = nil
}
