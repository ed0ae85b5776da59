package cv

import (
	"image"
	"image/color"
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/display"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type windowService struct {
	params config.DisplayParameters

	mu     sync.Mutex
	window *gocv.Window
	width  int
	height int
}

// NewWindow shows the video with its overlay in a HighGUI window.
func NewWindow(params config.DisplayParameters) display.IService {
	return &windowService{
		params: params,
		window: gocv.NewWindow(params.Title),
	}
}

func (svc *windowService) Match(width, height int) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.width, svc.height = width, height
	svc.window.ResizeWindow(width, height)
}

// Clear is implicit: every DrawDetections starts from a fresh copy of the frame.
func (svc *windowService) Clear() error {
	return nil
}

func (svc *windowService) DrawDetections(frame model.Frame, dets []model.Detection) error {
	if frame.Image == nil {
		return nil
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return xerrors.Errorf("converting frame: %w", err)
	}
	defer mat.Close()

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.width > 0 && svc.height > 0 && (mat.Cols() != svc.width || mat.Rows() != svc.height) {
		gocv.Resize(mat, &mat, image.Pt(svc.width, svc.height), 0, 0, gocv.InterpolationLinear)
	}

	for _, det := range dets {
		gocv.Rectangle(&mat, det.Box, color.RGBA{0, 123, 255, 0}, 2)
		if svc.params.Labels {
			gocv.PutText(&mat, display.Label(det), image.Pt(det.Box.Min.X, det.Box.Min.Y-5),
				gocv.FontHersheySimplex, 0.5, color.RGBA{255, 255, 255, 0}, 1)
		}
	}

	svc.window.IMShow(mat)
	svc.window.WaitKey(1)
	return nil
}

func (svc *windowService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.window.Close()
}
