// Package stream 通过websocket接收OPUS帧并解码成PCM。
// 服务端发送二进制OPUS帧，文本消息 {"type":"end"} 表示流结束。
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lisuiheng/pcmout/audio"
	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/protocols/websocket"
	"github.com/lisuiheng/pcmout/utils"
)

var ErrRetriesExhausted = errors.New("stream reconnect retries exhausted")

type Config struct {
	URL           string
	AccessToken   string
	DeviceID      string
	SampleRate    int
	Channels      int
	FrameDuration int // 毫秒
	MaxRetries    int
}

type Source struct {
	ctx       context.Context
	config    Config
	clientID  string
	transport interfaces.TransportProtocol
	decoder   *audio.OpusDecoder
	backoff   utils.ReconnectStrategy
	pending   []byte
	ended     bool
	err       error // 重连失败或 ctx 取消后一直返回
	logger    *slog.Logger
}

// Open 连接服务端并发送hello，ctx 同时控制后续重连
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	if cfg.FrameDuration == 0 {
		cfg.FrameDuration = 20
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}

	decoder, err := audio.NewOpusDecoder(cfg.SampleRate, cfg.Channels, logger)
	if err != nil {
		return nil, err
	}

	s := &Source{
		ctx:      ctx,
		config:   cfg,
		clientID: uuid.NewString(),
		decoder:  decoder,
		backoff:  utils.NewExponentialBackoffWith(200*time.Millisecond, 5*time.Second),
		logger:   logger,
	}
	if err := s.connect(); err != nil {
		decoder.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) connect() error {
	transport, err := websocket.NewWebSocketProtocol(websocket.Config{
		URL:         s.config.URL,
		AccessToken: s.config.AccessToken,
		DeviceID:    s.config.DeviceID,
		ClientID:    s.clientID,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Connecting to stream server", "url", s.config.URL)
	if err := transport.Connect(s.ctx); err != nil {
		return err
	}

	helloMsg := map[string]interface{}{
		"type":      "hello",
		"version":   1,
		"transport": transport.ProtocolType(),
		"audio_params": map[string]interface{}{
			"format":         "opus",
			"sample_rate":    s.config.SampleRate,
			"channels":       s.config.Channels,
			"frame_duration": s.config.FrameDuration,
		},
	}
	msg, err := json.Marshal(helloMsg)
	if err != nil {
		transport.Close()
		return fmt.Errorf("failed to marshal hello message: %w", err)
	}
	if err := transport.Send(msg, interfaces.MsgText); err != nil {
		transport.Close()
		return fmt.Errorf("failed to send hello message: %w", err)
	}

	s.transport = transport
	s.backoff.Reset()
	return nil
}

// reconnect 按指数退避重连，次数用完返回 ErrRetriesExhausted
func (s *Source) reconnect() error {
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		delay := s.backoff.NextDelay()
		s.logger.Warn("Stream connection lost, reconnecting", "attempt", attempt, "delay", delay)
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(delay):
		}
		if err := s.connect(); err != nil {
			s.logger.Error("Reconnect failed", "error", err)
			continue
		}
		return nil
	}
	return ErrRetriesExhausted
}

func (s *Source) SampleRate() int { return s.config.SampleRate }
func (s *Source) Channels() int   { return s.config.Channels }

func (s *Source) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if s.ended {
			return 0, io.EOF
		}
		if err := s.receive(); err != nil {
			s.err = err
			return 0, err
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Source) receive() error {
	if s.transport == nil {
		return io.ErrClosedPipe
	}
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case msg, ok := <-s.transport.Receive():
		if !ok {
			return s.reconnect()
		}
		switch msg.Type {
		case interfaces.MsgBinary:
			pcm, err := s.decoder.Decode(msg.Payload)
			if err != nil {
				s.logger.Error("OPUS decode failed", "error", err)
				return nil
			}
			s.pending = pcm
		case interfaces.MsgText:
			s.handleTextMessage(msg.Payload)
		}
		return nil
	}
}

func (s *Source) handleTextMessage(data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("Invalid text message", "error", err)
		return
	}
	switch msg.Type {
	case "end":
		s.ended = true
	default:
		s.logger.Debug("Ignoring message", "type", msg.Type)
	}
}

func (s *Source) Close() error {
	s.decoder.Close()
	if s.transport != nil {
		return s.transport.Close()
	}
	return nil
}
