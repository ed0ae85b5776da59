package video

import (
	"context"

	"github.com/khaledhikmat/vs-mood/model"
)

// IService is the video acquisition surface.
type IService interface {
	// Open acquires the source. Failures wrap model.ErrMediaAcquisition.
	Open(ctx context.Context) error
	// Read returns the current frame.
	Read() (model.Frame, error)
	// Dimensions returns the native display size of the source.
	Dimensions() (width, height int)
	// Snapshot renders frame off-screen and returns it PNG encoded.
	Snapshot(ctx context.Context, frame model.Frame) ([]byte, error)
	// FrameCount is the number of frames of a finite source, -1 when live.
	FrameCount() int
	// FramesRead counts successful reads so far.
	FramesRead() int
	Close() error
}
