package audio

import (
	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

// 唯一的逻辑voice
const voiceID = 0

// MixFactor 源声道到最终混音声道的权重
type MixFactor struct {
	Factor float32
	Src    int
	Dst    int
}

// Voice 打开时根据声道数确定的路由
type Voice struct {
	Channels int
	Factors  []MixFactor
}

// NewVoice 单声道复制到左右，立体声直通
func NewVoice(channels int) Voice {
	if channels == 1 {
		return Voice{
			Channels: 1,
			Factors: []MixFactor{
				{Factor: 1.0, Src: 0, Dst: 0},
				{Factor: 1.0, Src: 0, Dst: 1},
			},
		}
	}
	return Voice{
		Channels: channels,
		Factors: []MixFactor{
			{Factor: 1.0, Src: 0, Dst: 0},
			{Factor: 0.0, Src: 0, Dst: 1},
			{Factor: 0.0, Src: 1, Dst: 0},
			{Factor: 1.0, Src: 1, Dst: 1},
		},
	}
}

func (v Voice) apply(drv interfaces.Driver, id int) {
	drv.VoiceSetDestinationMix(id, interfaces.FinalMixID)
	for _, f := range v.Factors {
		drv.VoiceSetMixFactor(id, f.Factor, f.Src, f.Dst)
	}
}
