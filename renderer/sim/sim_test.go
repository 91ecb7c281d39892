package sim

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

func TestRecordsCalls(t *testing.T) {
	r := New()
	cfg := interfaces.DefaultRendererConfig()
	if err := r.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	drv, err := r.CreateDriver(cfg, 2)
	if err != nil {
		t.Fatalf("CreateDriver: %v", err)
	}
	if _, err := drv.MemPoolAdd(make([]byte, 16)); err != nil {
		t.Fatalf("MemPoolAdd: %v", err)
	}
	drv.Close()
	r.Exit()

	want := []string{"Initialize", "CreateDriver", "MemPoolAdd", "Close", "Exit"}
	if got := r.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if r.Driver() != nil {
		t.Error("driver should be gone after Exit")
	}
}

func TestFailureInjection(t *testing.T) {
	r := New(WithFailure("Start", 0xdead))
	cfg := interfaces.DefaultRendererConfig()
	_ = r.Initialize(cfg)
	if _, err := r.CreateDriver(cfg, 2); err != nil {
		t.Fatalf("CreateDriver: %v", err)
	}

	err := r.Start()
	var re *interfaces.ResultError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResultError, got %v", err)
	}
	if re.Op != "Start" || re.Code != 0xdead {
		t.Errorf("unexpected result error %+v", re)
	}
	if !errors.Is(err, interfaces.ErrRendererInit) {
		t.Error("result error should match ErrRendererInit")
	}
}

func TestInitializeTwice(t *testing.T) {
	r := New()
	cfg := interfaces.DefaultRendererConfig()
	if err := r.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := r.Initialize(cfg); err == nil {
		t.Error("expected error on second Initialize")
	}
}

func TestWaitFrame(t *testing.T) {
	var rendered int
	r := New(WithSink(func(out []int16) { rendered += len(out) }))
	cfg := interfaces.DefaultRendererConfig()
	_ = r.Initialize(cfg)
	_, _ = r.CreateDriver(cfg, 2)

	if err := r.WaitFrame(); err == nil {
		t.Error("expected error before Start")
	}

	_ = r.Start()
	for i := 0; i < 3; i++ {
		if err := r.WaitFrame(); err != nil {
			t.Fatalf("WaitFrame: %v", err)
		}
	}
	if r.Frames() != 3 {
		t.Errorf("expected 3 frames, got %d", r.Frames())
	}
	if want := 3 * cfg.FrameTick() * 2; rendered != want {
		t.Errorf("expected %d samples rendered, got %d", want, rendered)
	}
}

func TestWaitFrameRealTime(t *testing.T) {
	r := New(WithRealTime())
	cfg := interfaces.DefaultRendererConfig()
	_ = r.Initialize(cfg)
	_, _ = r.CreateDriver(cfg, 2)
	_ = r.Start()

	start := time.Now()
	for i := 0; i < 4; i++ {
		_ = r.WaitFrame()
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("four real-time frames took only %v", elapsed)
	}
}

func TestUpdateHook(t *testing.T) {
	var updates int
	r := New(WithUpdateHook(func() { updates++ }))
	cfg := interfaces.DefaultRendererConfig()
	_ = r.Initialize(cfg)
	drv, _ := r.CreateDriver(cfg, 2)

	for i := 0; i < 2; i++ {
		if err := drv.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if updates != 2 {
		t.Errorf("expected 2 hook calls, got %d", updates)
	}
}

func TestCallLogBounded(t *testing.T) {
	r := New()
	for i := 0; i < maxCalls+10; i++ {
		r.FlushCache(nil)
	}
	if n := len(r.Calls()); n > maxCalls {
		t.Errorf("call log grew to %d", n)
	}
}
