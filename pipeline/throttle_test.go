package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func at(ms int64) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func TestThrottleTriggersOncePerWindow(t *testing.T) {
	th := NewThrottle()
	interval := time.Second

	var triggers []int64
	for ms := int64(0); ms <= 1100; ms += 100 {
		if th.TryAcquire(at(ms), interval) {
			triggers = append(triggers, ms)
		}
	}

	want := []int64{0, 1000}
	if len(triggers) != len(want) {
		t.Fatalf("triggers = %v, want %v", triggers, want)
	}
	for i := range want {
		if triggers[i] != want[i] {
			t.Fatalf("triggers = %v, want %v", triggers, want)
		}
	}
}

func TestThrottleZeroIntervalAlwaysPasses(t *testing.T) {
	th := NewThrottle()
	for ms := int64(0); ms < 500; ms += 100 {
		if !th.TryAcquire(at(ms), 0) {
			t.Fatalf("tick at %d blocked with zero interval", ms)
		}
	}
}

func TestThrottleClockGoingBackwards(t *testing.T) {
	th := NewThrottle()
	if !th.TryAcquire(at(1000), time.Second) {
		t.Fatal("first tick must trigger")
	}
	if th.TryAcquire(at(-5000), time.Second) {
		t.Fatal("earlier timestamp triggered an upload")
	}

	last, ok := th.LastUploadAt()
	if !ok || !last.Equal(at(1000)) {
		t.Fatalf("LastUploadAt() = %v, %v; want %v", last, ok, at(1000))
	}
}

func TestThrottleConcurrentTicksSameWindow(t *testing.T) {
	th := NewThrottle()
	var passed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if th.TryAcquire(at(int64(i%10)), time.Second) {
				passed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if passed.Load() != 1 {
		t.Fatalf("%d ticks passed the gate in one window, want 1", passed.Load())
	}
}
