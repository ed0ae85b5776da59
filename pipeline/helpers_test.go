package pipeline

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: epoch}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = epoch.Add(time.Duration(ms) * time.Millisecond)
}

func face(age float64, gender model.Gender, moods ...model.MoodScore) model.Detection {
	return model.Detection{
		Age:    age,
		Gender: gender,
		Moods:  moods,
		Box:    image.Rect(10, 10, 50, 50),
		Score:  0.95,
	}
}

func mood(label string, p float64) model.MoodScore {
	return model.MoodScore{Label: label, Probability: p}
}

func testFrame(seq int64) model.Frame {
	return model.Frame{
		Seq:    seq,
		Image:  image.NewRGBA(image.Rect(0, 0, 8, 8)),
		Width:  8,
		Height: 8,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}
