package pipeline

import (
	"image"
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/display"
)

// ResizeDetections scales boxes from the frame's size to the display size.
func ResizeDetections(dets []model.Detection, from, to image.Point) []model.Detection {
	out := make([]model.Detection, len(dets))
	copy(out, dets)
	if from.X <= 0 || from.Y <= 0 || to.X <= 0 || to.Y <= 0 || from == to {
		return out
	}

	sx := float64(to.X) / float64(from.X)
	sy := float64(to.Y) / float64(from.Y)
	for i := range out {
		b := out[i].Box
		out[i].Box = image.Rect(
			int(float64(b.Min.X)*sx+0.5),
			int(float64(b.Min.Y)*sy+0.5),
			int(float64(b.Max.X)*sx+0.5),
			int(float64(b.Max.Y)*sy+0.5),
		)
	}
	return out
}

// Overlay draws each tick's detections on the display surface. Ticks may
// finish out of order; only the newest one rendered so far reaches the
// surface.
type Overlay struct {
	display display.IService

	mu   sync.RWMutex
	size image.Point

	drawMu  sync.Mutex
	lastSeq int64
	drawn   bool
}

func NewOverlay(displaySvc display.IService) *Overlay {
	return &Overlay{display: displaySvc}
}

// Match sizes the surface to the video's display dimensions.
func (o *Overlay) Match(width, height int) {
	o.mu.Lock()
	o.size = image.Pt(width, height)
	o.mu.Unlock()
	o.display.Match(width, height)
}

func (o *Overlay) Size() image.Point {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.size
}

// Render clears the previous drawing and draws dets, which must already be
// in display coordinates. A tick older than the last rendered one is
// dropped and Render reports false.
func (o *Overlay) Render(seq int64, frame model.Frame, dets []model.Detection) (bool, error) {
	o.drawMu.Lock()
	defer o.drawMu.Unlock()

	if o.drawn && seq < o.lastSeq {
		return false, nil
	}
	o.lastSeq = seq
	o.drawn = true

	if err := o.display.Clear(); err != nil {
		return true, err
	}
	return true, o.display.DrawDetections(frame, dets)
}
