package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

const uploadFileName = "image.png"

// Snapshotter renders a frame off-screen and returns it PNG encoded.
type Snapshotter interface {
	Snapshot(ctx context.Context, frame model.Frame) ([]byte, error)
}

type UploaderOptions struct {
	Session     string
	Collector   collector.IService
	Snapshotter Snapshotter
	Intervals   *IntervalStore
	Throttle    *Throttle
	Clock       Clock
	Timeout     time.Duration
	Journal     *Journal
	ErrorStream chan<- interface{}
}

// Uploader decides per tick whether to trigger an upload and dispatches it
// in the background. Dispatch never waits for a previous upload.
type Uploader struct {
	opts  UploaderOptions
	start time.Time
	wg    sync.WaitGroup

	triggered atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

func NewUploader(opts UploaderOptions) *Uploader {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Throttle == nil {
		opts.Throttle = NewThrottle()
	}
	return &Uploader{opts: opts, start: time.Now()}
}

// Consider runs the throttle gate for this tick and, when it passes, starts
// the upload. The gate decision uses the interval in force right now; later
// interval changes do not revisit it.
func (u *Uploader) Consider(ctx context.Context, frame model.Frame, attrs model.ExtractedAttributes) bool {
	now := u.opts.Clock()
	interval := u.opts.Intervals.Get()

	if !u.opts.Throttle.TryAcquire(now, interval) {
		return false
	}

	u.triggered.Add(1)
	u.inFlight.Add(1)
	u.wg.Add(1)

	// Uploads outlive the tick that triggered them
	go u.dispatch(context.WithoutCancel(ctx), frame, attrs, now)
	return true
}

func (u *Uploader) dispatch(ctx context.Context, frame model.Frame, attrs model.ExtractedAttributes, triggeredAt time.Time) {
	defer u.wg.Done()
	defer u.inFlight.Add(-1)

	if u.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.opts.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "uploader.dispatch", trace.WithAttributes(
		attribute.Int64("frame.seq", frame.Seq),
		attribute.Int("age", attrs.Age),
		attribute.String("gender", attrs.Gender),
		attribute.String("mood", attrs.Mood),
	))
	defer span.End()

	entry := journalEntry{
		Time:    triggeredAt.Format(time.RFC3339Nano),
		Session: u.opts.Session,
		Age:     attrs.Age,
		Gender:  attrs.Gender,
		Mood:    attrs.Mood,
	}

	fail := func(err error, msg string) {
		u.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		lgr.Logger.Error("error uploading data",
			slog.String("stage", msg),
			slog.Any("error", err),
		)
		entry.Outcome = "failed"
		entry.Error = err.Error()
		u.opts.Journal.Record(entry)
		u.report(model.GenError("uploader", err, map[string]interface{}{
			"seq":  frame.Seq,
			"mood": attrs.Mood,
		}, "upload %s failed", msg))
	}

	defer func() {
		if r := recover(); r != nil {
			fail(xerrors.Errorf("panic: %v: %w", r, model.ErrUpload), "panic")
		}
	}()

	img, err := u.opts.Snapshotter.Snapshot(ctx, frame)
	if err != nil {
		fail(xerrors.Errorf("snapshot: %v: %w", err, model.ErrUpload), "snapshot")
		return
	}

	payload := model.UploadPayload{
		Image:     img,
		FileName:  uploadFileName,
		Age:       attrs.Age,
		Gender:    attrs.Gender,
		Mood:      attrs.Mood,
		Timestamp: triggeredAt,
	}
	entry.Bytes = len(img)

	body, err := u.opts.Collector.Upload(ctx, payload)
	if err != nil {
		fail(err, "request")
		return
	}

	u.succeeded.Add(1)
	lgr.Logger.Info("data uploaded successfully",
		slog.String("response", body),
		slog.Duration("latency", time.Since(triggeredAt)),
	)
	entry.Outcome = "uploaded"
	entry.Response = body
	u.opts.Journal.Record(entry)
}

func (u *Uploader) report(err model.CustomError) {
	if u.opts.ErrorStream == nil {
		return
	}
	select {
	case u.opts.ErrorStream <- err:
	default:
		lgr.Logger.Warn("error stream full, dropping upload error")
	}
}

// Wait blocks until in-flight uploads finish or ctx ends.
func (u *Uploader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Uploader) Stats() model.UploaderStats {
	return model.UploaderStats{
		Name:      "uploader",
		Session:   u.opts.Session,
		Triggered: u.triggered.Load(),
		Succeeded: u.succeeded.Load(),
		Failed:    u.failed.Load(),
		InFlight:  u.inFlight.Load(),
		Interval:  u.opts.Intervals.Get().Milliseconds(),
		Uptime:    int64(time.Since(u.start).Seconds()),
	}
}
