package audio

import (
	"fmt"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

// 渲染器要求内存池按页对齐
const poolAlign = 0x1000

// 输出sink固定两个声道
var sinkChannels = []uint8{0, 1}

var (
	allocRegion = allocPageAligned
	freeRegion  = freePageAligned
)

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// bufferPool 硬件可见的连续内存 + 主机侧暂存区
type bufferPool struct {
	region      []byte
	scratch     []byte
	bufs        []*interfaces.WaveBuf
	bufferBytes int

	driver     interfaces.Driver
	mpid       int
	registered bool
	attached   bool
}

func allocatePool(spec AudioSpec, n int) (*bufferPool, error) {
	size := alignUp(spec.BufferBytes*n, poolAlign)
	region, err := allocRegion(size)
	if err != nil {
		return nil, fmt.Errorf("%w: pool of %d bytes: %v", ErrOutOfMemory, size, err)
	}

	p := &bufferPool{
		region:      region,
		scratch:     make([]byte, spec.BufferBytes),
		bufs:        make([]*interfaces.WaveBuf, n),
		bufferBytes: spec.BufferBytes,
	}
	for i := range p.bufs {
		start := i * spec.Frames
		p.bufs[i] = &interfaces.WaveBuf{
			Region:            region,
			Size:              spec.BufferBytes,
			StartSampleOffset: start,
			EndSampleOffset:   start + spec.Frames,
		}
	}
	return p, nil
}

// register 注册到驱动的内存池并挂到默认sink
func (p *bufferPool) register(drv interfaces.Driver) error {
	p.driver = drv

	mpid, err := drv.MemPoolAdd(p.region)
	if err != nil {
		return rendererError("MemPoolAdd", err)
	}
	p.mpid = mpid
	p.registered = true

	if err := drv.MemPoolAttach(mpid); err != nil {
		return rendererError("MemPoolAttach", err)
	}
	p.attached = true

	if _, err := drv.DeviceSinkAdd(interfaces.DefaultDeviceName, sinkChannels); err != nil {
		return rendererError("DeviceSinkAdd", err)
	}
	return nil
}

// slot 第i个buffer在内存池中的字节区间
func (p *bufferPool) slot(i int) []byte {
	off := i * p.bufferBytes
	return p.region[off : off+p.bufferBytes]
}

// copyIn 把暂存区拷进第i个buffer
func (p *bufferPool) copyIn(i int) []byte {
	dst := p.slot(i)
	copy(dst, p.scratch)
	return dst
}

// release 可重复调用，也可用于只初始化了一半的池
func (p *bufferPool) release() error {
	if p == nil {
		return nil
	}

	var firstErr error
	if p.attached {
		if err := p.driver.MemPoolDetach(p.mpid); err != nil && firstErr == nil {
			firstErr = err
		}
		p.attached = false
	}
	if p.registered {
		if err := p.driver.MemPoolRemove(p.mpid); err != nil && firstErr == nil {
			firstErr = err
		}
		p.registered = false
	}
	if p.region != nil {
		if err := freeRegion(p.region); err != nil && firstErr == nil {
			firstErr = err
		}
		p.region = nil
	}
	p.scratch = nil
	return firstErr
}
