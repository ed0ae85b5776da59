package pipeline

import (
	"sync"
	"time"
)

type Clock func() time.Time

// Throttle gates uploads to one per window. The comparison and the timestamp
// update happen under one lock so overlapping ticks cannot both pass for the
// same window. The timestamp is taken at dispatch, never rolled back.
type Throttle struct {
	mu      sync.Mutex
	last    time.Time
	hasLast bool
}

func NewThrottle() *Throttle {
	return &Throttle{}
}

// TryAcquire reports whether an upload may be triggered at now and, if so,
// records now as the last upload time.
func (t *Throttle) TryAcquire(now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A negative elapsed time (clock stepped back) also fails the gate,
	// so the timestamp never decreases
	if t.hasLast && (now.Before(t.last) || now.Sub(t.last) < interval) {
		return false
	}

	t.last = now
	t.hasLast = true
	return true
}

func (t *Throttle) LastUploadAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}
