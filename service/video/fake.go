package video

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"golang.org/x/xerrors"
)

// Fake produces synthetic frames: a grey background with a square moving
// left to right.
type Fake struct {
	mu      sync.Mutex
	Width   int
	Height  int
	Frames  int // frames before io exhaustion, 0 means live
	OpenErr error
	ReadErr error
	seq     int64
	opened  bool
	closed  bool
}

func NewFake(width, height int) *Fake {
	return &Fake{Width: width, Height: height}
}

func (svc *Fake) Open(ctx context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return xerrors.Errorf("%v: %w", err, model.ErrMediaAcquisition)
	}
	if svc.OpenErr != nil {
		return xerrors.Errorf("%v: %w", svc.OpenErr, model.ErrMediaAcquisition)
	}
	svc.opened = true
	return nil
}

func (svc *Fake) Read() (model.Frame, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.opened || svc.closed {
		return model.Frame{}, xerrors.New("video source is not open")
	}
	if svc.ReadErr != nil {
		return model.Frame{}, svc.ReadErr
	}
	if svc.Frames > 0 && svc.seq >= int64(svc.Frames) {
		return model.Frame{}, xerrors.New("end of video")
	}

	svc.seq++
	img := image.NewRGBA(image.Rect(0, 0, svc.Width, svc.Height))
	for i := range img.Pix {
		img.Pix[i] = 0x40
	}

	side := svc.Height / 4
	if side > 0 && svc.Width > side {
		x := int(svc.seq*8) % (svc.Width - side)
		y := (svc.Height - side) / 2
		for py := y; py < y+side; py++ {
			for px := x; px < x+side; px++ {
				img.Set(px, py, color.RGBA{R: 0xe0, G: 0xb0, B: 0x90, A: 0xff})
			}
		}
	}

	return model.Frame{
		Seq:       svc.seq,
		Image:     img,
		Width:     svc.Width,
		Height:    svc.Height,
		Timestamp: time.Now(),
	}, nil
}

func (svc *Fake) Dimensions() (int, int) {
	return svc.Width, svc.Height
}

func (svc *Fake) Snapshot(ctx context.Context, frame model.Frame) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Image == nil {
		return nil, xerrors.New("empty frame")
	}
	return EncodePNG(frame.Image)
}

func (svc *Fake) FrameCount() int {
	if svc.Frames > 0 {
		return svc.Frames
	}
	return -1
}

func (svc *Fake) FramesRead() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return int(svc.seq)
}

func (svc *Fake) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.closed = true
	return nil
}

func (svc *Fake) Closed() bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.closed
}
