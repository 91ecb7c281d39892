package core

import (
	"github.com/lisuiheng/pcmout/source"
)

// Config 对应 config.yaml 的结构
type Config struct {
	System struct {
		DeviceID string `mapstructure:"device_id"`
	} `mapstructure:"system"`

	Audio struct {
		Backend    string   `mapstructure:"backend"` // sim/malgo/portaudio/oto
		SampleRate int      `mapstructure:"sample_rate"`
		Channels   int      `mapstructure:"channels"`
		Frames     int      `mapstructure:"frames"`
		Buffers    int      `mapstructure:"buffers"`
		Formats    []string `mapstructure:"formats"`
		OutputRate int      `mapstructure:"output_rate"`
		RealTime   bool     `mapstructure:"real_time"` // 仅 sim 后端
	} `mapstructure:"audio"`

	Source source.Config `mapstructure:"source"`

	Logging struct {
		Level   string   `mapstructure:"level"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"logging"`
}
