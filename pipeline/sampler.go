package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/inference"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/khaledhikmat/vs-mood/service/video"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

var tracer = otel.Tracer("github.com/khaledhikmat/vs-mood/pipeline")

// Sampler runs one full pipeline pass per tick: read, detect, draw,
// extract, publish, maybe upload.
type Sampler struct {
	session   string
	video     video.IService
	inference inference.IService
	overlay   *Overlay
	uploader  *Uploader
	cell      *AttributesCell
	clock     Clock

	matchOnce sync.Once
	start     time.Time

	ticks       atomic.Int64
	failedTicks atomic.Int64
	emptyTicks  atomic.Int64
	detections  atomic.Int64
	tickNanos   atomic.Int64
}

func NewSampler(session string, videoSvc video.IService, inferenceSvc inference.IService, overlay *Overlay, uploader *Uploader, cell *AttributesCell, clock Clock) *Sampler {
	if clock == nil {
		clock = time.Now
	}
	return &Sampler{
		session:   session,
		video:     videoSvc,
		inference: inferenceSvc,
		overlay:   overlay,
		uploader:  uploader,
		cell:      cell,
		clock:     clock,
		start:     time.Now(),
	}
}

// Tick processes the current frame. Any error abandons only this tick and
// wraps model.ErrInferenceTick.
func (s *Sampler) Tick(ctx context.Context, seq int64) (err error) {
	begin := time.Now()
	s.ticks.Add(1)

	ctx, span := tracer.Start(ctx, "sampler.tick", trace.WithAttributes(attribute.Int64("tick", seq)))
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("panic: %v: %w", r, model.ErrInferenceTick)
		}
		if err != nil {
			s.failedTicks.Add(1)
			span.RecordError(err)
			span.SetStatus(codes.Error, "tick failed")
		}
		s.tickNanos.Add(int64(time.Since(begin)))
		span.End()
	}()

	// The surface follows the video's display size, read once detection runs
	s.matchOnce.Do(func() {
		w, h := s.video.Dimensions()
		s.overlay.Match(w, h)
	})

	frame, err := s.video.Read()
	if err != nil {
		return xerrors.Errorf("reading frame: %v: %w", err, model.ErrInferenceTick)
	}

	dets, err := s.inference.DetectAll(ctx, frame)
	if err != nil {
		return xerrors.Errorf("tick %d: %w", seq, wrapTick(err))
	}
	span.SetAttributes(attribute.Int("detections", len(dets)))
	s.detections.Add(int64(len(dets)))

	resized := ResizeDetections(dets, image.Pt(frame.Width, frame.Height), s.overlay.Size())
	if rendered, err := s.overlay.Render(seq, frame, resized); err != nil {
		lgr.Logger.Warn("error rendering overlay",
			slog.Int64("tick", seq),
			slog.Any("error", err),
		)
	} else if !rendered {
		lgr.Logger.Debug("stale tick not drawn", slog.Int64("tick", seq))
	}

	det, ok := PrimaryDetection(resized)
	if !ok {
		s.emptyTicks.Add(1)
		return nil
	}

	attrs := ExtractAttributes(det, s.clock())
	s.cell.Set(attrs)

	if s.uploader.Consider(ctx, frame, attrs) {
		span.SetAttributes(attribute.Bool("upload.triggered", true))
		lgr.Logger.Debug("upload triggered",
			slog.Int64("tick", seq),
			slog.Int("age", attrs.Age),
			slog.String("gender", attrs.Gender),
			slog.String("mood", attrs.Mood),
		)
	}
	return nil
}

func wrapTick(err error) error {
	if xerrors.Is(err, model.ErrInferenceTick) {
		return err
	}
	return xerrors.Errorf("%v: %w", err, model.ErrInferenceTick)
}

func (s *Sampler) Stats() model.SamplerStats {
	ticks := s.ticks.Load()
	var avg float64
	if ticks > 0 {
		avg = time.Duration(s.tickNanos.Load() / ticks).Seconds()
	}
	return model.SamplerStats{
		Name:        "sampler",
		Session:     s.session,
		Ticks:       ticks,
		FailedTicks: s.failedTicks.Load(),
		EmptyTicks:  s.emptyTicks.Load(),
		Detections:  s.detections.Load(),
		Uptime:      int64(time.Since(s.start).Seconds()),
		AvgTickTime: avg,
	}
}
