package display

import (
	"fmt"

	"github.com/khaledhikmat/vs-mood/model"
)

// IService is the drawing target laid over the video.
type IService interface {
	// Match sizes the surface to the video's display dimensions.
	Match(width, height int)
	// Clear wipes the previous tick's drawing.
	Clear() error
	// DrawDetections draws boxes (and labels when enabled) for detections
	// already resized to the surface.
	DrawDetections(frame model.Frame, dets []model.Detection) error
	Close() error
}

// Label is the caption drawn next to a box.
func Label(det model.Detection) string {
	return fmt.Sprintf("%.2f", det.Score)
}
