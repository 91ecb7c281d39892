package audio

import (
	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

// claimFree 按下标顺序找第一个 Free/Done 的buffer，没有返回 -1
func claimFree(bufs []*interfaces.WaveBuf) int {
	for i, wb := range bufs {
		if wb.Claimable() {
			return i
		}
	}
	return -1
}

// findPlaying 正在播放的buffer，同一时刻至多一个
func findPlaying(bufs []*interfaces.WaveBuf) int {
	for i, wb := range bufs {
		if wb.State() == interfaces.WaveBufPlaying {
			return i
		}
	}
	return -1
}

// reachedPlaying 已经离开提交态
func reachedPlaying(wb *interfaces.WaveBuf) bool {
	s := wb.State()
	return s == interfaces.WaveBufPlaying || s == interfaces.WaveBufDone
}

// States 当前所有buffer的状态快照
func (d *Device) States() []interfaces.WaveBufState {
	if d.pool == nil {
		return nil
	}
	states := make([]interfaces.WaveBufState, len(d.pool.bufs))
	for i, wb := range d.pool.bufs {
		states[i] = wb.State()
	}
	return states
}
