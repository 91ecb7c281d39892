package audio

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
	"github.com/lisuiheng/pcmout/renderer/mixer"
)

func testSpec(frames, channels int) AudioSpec {
	spec := AudioSpec{Format: FormatS16Sys, SampleRate: 48000, Channels: channels, Frames: frames}
	CalculateSpec(&spec)
	return spec
}

func TestAllocatePool(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		channels   int
		buffers    int
		regionSize int
	}{
		{"stereo 1024", 1024, 2, 2, 8192},
		{"unaligned", 1000, 2, 2, 8192},
		{"mono", 256, 1, 2, 4096},
		{"triple", 1024, 2, 3, 12288},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec(tt.frames, tt.channels)
			p, err := allocatePool(spec, tt.buffers)
			if err != nil {
				t.Fatalf("allocatePool: %v", err)
			}
			defer p.release()

			if len(p.region) != tt.regionSize {
				t.Errorf("expected region %d, got %d", tt.regionSize, len(p.region))
			}
			if addr := uintptr(unsafe.Pointer(&p.region[0])); addr%poolAlign != 0 {
				t.Errorf("region not page aligned: %#x", addr)
			}
			if len(p.scratch) != spec.BufferBytes {
				t.Errorf("expected scratch %d, got %d", spec.BufferBytes, len(p.scratch))
			}
			if len(p.bufs) != tt.buffers {
				t.Fatalf("expected %d buffers, got %d", tt.buffers, len(p.bufs))
			}
			for i, wb := range p.bufs {
				if wb.State() != interfaces.WaveBufFree {
					t.Errorf("buffer %d: expected free, got %v", i, wb.State())
				}
				if wb.Size != spec.BufferBytes {
					t.Errorf("buffer %d: expected size %d, got %d", i, spec.BufferBytes, wb.Size)
				}
				if wb.StartSampleOffset != i*tt.frames || wb.EndSampleOffset != (i+1)*tt.frames {
					t.Errorf("buffer %d: offsets %d..%d", i, wb.StartSampleOffset, wb.EndSampleOffset)
				}
			}
		})
	}
}

func TestAllocatePoolOutOfMemory(t *testing.T) {
	orig := allocRegion
	allocRegion = func(int) ([]byte, error) { return nil, errors.New("no memory") }
	defer func() { allocRegion = orig }()

	if _, err := allocatePool(testSpec(1024, 2), 2); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestPoolCopyIn(t *testing.T) {
	p, err := allocatePool(testSpec(4, 2), 2)
	if err != nil {
		t.Fatalf("allocatePool: %v", err)
	}
	defer p.release()

	for i := range p.scratch {
		p.scratch[i] = byte(i + 1)
	}
	dst := p.copyIn(1)
	if &dst[0] != &p.region[16] {
		t.Errorf("buffer 1 should start at byte 16")
	}
	for i, b := range dst {
		if b != byte(i+1) {
			t.Fatalf("byte %d: expected %d, got %d", i, i+1, b)
		}
	}
	if p.region[0] != 0 {
		t.Errorf("buffer 0 should be untouched")
	}
}

func TestPoolReleaseIdempotent(t *testing.T) {
	drv := mixer.New(interfaces.DefaultRendererConfig(), 2)
	p, err := allocatePool(testSpec(1024, 2), 2)
	if err != nil {
		t.Fatalf("allocatePool: %v", err)
	}
	if err := p.register(drv); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := p.release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := p.release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if p.region != nil || p.registered || p.attached {
		t.Errorf("pool not fully released: %+v", p)
	}

	var nilPool *bufferPool
	if err := nilPool.release(); err != nil {
		t.Errorf("nil pool release: %v", err)
	}
}

func TestPoolReleasePartial(t *testing.T) {
	p, err := allocatePool(testSpec(1024, 2), 2)
	if err != nil {
		t.Fatalf("allocatePool: %v", err)
	}
	// 从未注册到驱动
	if err := p.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}
