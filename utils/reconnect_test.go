package utils

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	b := NewExponentialBackoffWith(100*time.Millisecond, time.Second)
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.NextDelay(); got != w {
			t.Errorf("step %d: expected %v, got %v", i, w, got)
		}
	}

	b.Reset()
	if got := b.NextDelay(); got != 100*time.Millisecond {
		t.Errorf("after reset: expected 100ms, got %v", got)
	}
}

func TestDefaultBackoff(t *testing.T) {
	b := NewExponentialBackoff()
	if got := b.NextDelay(); got != time.Second {
		t.Errorf("expected 1s initial delay, got %v", got)
	}
}
