package audio

import (
	"fmt"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

// ScratchBuffer 主机侧暂存区，调用方每轮直接写入，设备关闭后不可再用
func (d *Device) ScratchBuffer() []byte {
	if d.pool == nil {
		return nil
	}
	return d.pool.scratch
}

// Play 拷贝一整块PCM到暂存区后提交，长度必须等于 BufferBytes
func (d *Device) Play(pcm []byte) {
	if len(pcm) != d.spec.BufferBytes {
		panic(fmt.Sprintf("audio: chunk is %d bytes, device expects %d", len(pcm), d.spec.BufferBytes))
	}
	copy(d.ScratchBuffer(), pcm)
	d.SubmitAndWait()
}

// SubmitAndWait 提交暂存区内容并等待硬件节拍。
// 返回时刚提交的buffer已经开始播放；没有空闲buffer时，
// 等到正在播放的buffer播完。生产者最多领先渲染器一个buffer。
func (d *Device) SubmitAndWait() {
	if d.State() != DeviceStateOpen {
		panic("audio: submit on a device that is not open")
	}

	bufs := d.pool.bufs
	current := claimFree(bufs)

	if current >= 0 {
		data := d.pool.copyIn(current)
		d.renderer.FlushCache(data)
		if err := d.driver.VoiceAddWaveBuf(voiceID, bufs[current]); err != nil {
			d.logger.Warn("Failed to queue wave buffer", "buffer", current, "error", err)
			current = -1
		} else if !d.driver.VoiceIsPlaying(voiceID) {
			// 停着的voice不会推进队列，下面等 Playing 会一直等
			d.driver.VoiceStart(voiceID)
		}
	} else if !d.driver.VoiceIsPlaying(voiceID) {
		// 欠载后voice停了，重新启动
		d.logger.Debug("Restarting voice after underrun")
		d.driver.VoiceStart(voiceID)
	}

	d.update()

	if current >= 0 {
		// 短buffer可能在两次 Update 之间直接播完，Done 也算已开始
		for !reachedPlaying(bufs[current]) {
			d.update()
			d.waitFrame()
		}
		d.logger.Debug("Wave buffer playing", "buffer", current)
		return
	}

	playing := findPlaying(bufs)
	if playing < 0 {
		return
	}
	for bufs[playing].State() == interfaces.WaveBufPlaying {
		d.update()
		d.waitFrame()
	}
}

func (d *Device) update() {
	if err := d.driver.Update(); err != nil {
		d.logger.Warn("Renderer update failed", "error", err)
	}
}

func (d *Device) waitFrame() {
	if err := d.renderer.WaitFrame(); err != nil {
		d.logger.Warn("Renderer wait frame failed", "error", err)
	}
}
