package cv

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/khaledhikmat/vs-mood/service/video"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type webcamService struct {
	params config.VideoParameters

	// VideoCapture is not safe for the overlapping reads of concurrent ticks
	mu      sync.Mutex
	capture *gocv.VideoCapture
	seq     int64
	width   int
	height  int
	frames  int
}

// NewWebcam opens a camera device (numeric source) or a file/stream URL.
func NewWebcam(params config.VideoParameters) video.IService {
	return &webcamService{params: params, frames: -1}
}

func (svc *webcamService) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return xerrors.Errorf("%v: %w", err, model.ErrMediaAcquisition)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if id, convErr := strconv.Atoi(svc.params.Source); convErr == nil {
		capture, err = gocv.OpenVideoCapture(id)
	} else {
		capture, err = gocv.OpenVideoCapture(svc.params.Source)
	}
	if err != nil {
		return xerrors.Errorf("opening %q: %v: %w", svc.params.Source, err, model.ErrMediaAcquisition)
	}
	if !capture.IsOpened() {
		capture.Close()
		return xerrors.Errorf("opening %q: device not available: %w", svc.params.Source, model.ErrMediaAcquisition)
	}

	svc.capture = capture
	svc.width = int(capture.Get(gocv.VideoCaptureFrameWidth))
	svc.height = int(capture.Get(gocv.VideoCaptureFrameHeight))
	if svc.width == 0 || svc.height == 0 {
		svc.width, svc.height = svc.params.Width, svc.params.Height
	}
	if n := int(capture.Get(gocv.VideoCaptureFrameCount)); n > 0 {
		svc.frames = n
	}

	lgr.Logger.Info("video source opened",
		slog.String("source", svc.params.Source),
		slog.Int("width", svc.width),
		slog.Int("height", svc.height),
		slog.Int("frames", svc.frames),
	)
	return nil
}

func (svc *webcamService) Read() (model.Frame, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.capture == nil {
		return model.Frame{}, xerrors.New("video source is not open")
	}

	img := gocv.NewMat()
	defer img.Close() // Crucial to close the image to avoid memory leaks

	if ok := svc.capture.Read(&img); !ok || img.Empty() {
		return model.Frame{}, xerrors.New("no frame available")
	}

	out, err := img.ToImage()
	if err != nil {
		return model.Frame{}, xerrors.Errorf("converting frame: %w", err)
	}

	svc.seq++
	return model.Frame{
		Seq:       svc.seq,
		Image:     out,
		Width:     img.Cols(),
		Height:    img.Rows(),
		Timestamp: time.Now(),
	}, nil
}

func (svc *webcamService) Dimensions() (int, int) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.width, svc.height
}

func (svc *webcamService) Snapshot(ctx context.Context, frame model.Frame) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Image == nil {
		return nil, xerrors.New("empty frame")
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, xerrors.Errorf("converting frame: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return nil, xerrors.Errorf("encoding png: %w", err)
	}
	defer buf.Close()

	// The native buffer is released on Close, keep a Go copy
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

func (svc *webcamService) FrameCount() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.frames
}

func (svc *webcamService) FramesRead() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return int(svc.seq)
}

func (svc *webcamService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.capture == nil {
		return nil
	}
	err := svc.capture.Close()
	svc.capture = nil
	return err
}
