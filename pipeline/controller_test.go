package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/display"
	"github.com/khaledhikmat/vs-mood/service/emitter"
	"github.com/khaledhikmat/vs-mood/service/inference"
	"github.com/khaledhikmat/vs-mood/service/video"
	"golang.org/x/xerrors"
)

type controllerFixture struct {
	video      *video.Fake
	inference  *inference.Fake
	canvas     *display.Canvas
	collector  *collector.Fake
	errors     chan interface{}
	stats      chan interface{}
	controller *Controller
}

func newControllerFixture(t *testing.T, mutate func(*controllerFixture)) *controllerFixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.ShutdownTimeoutS = 2
	cfg.Pipeline.TickPeriodMs = 10
	cfg.Pipeline.DefaultIntervalMs = 50
	cfg.Pipeline.StatsPeriodS = 1
	cfg.Pipeline.UploadTimeoutS = 1
	cfg.Pipeline.JournalFile = ""

	f := &controllerFixture{
		video:     video.NewFake(64, 48),
		inference: inference.NewFake(),
		canvas:    display.NewCanvas(false),
		collector: collector.NewFake(0.05),
		errors:    make(chan interface{}, 256),
		stats:     make(chan interface{}, 256),
	}
	if mutate != nil {
		mutate(f)
	}

	svcs := ServicesFactory{
		CfgSvc:       config.NewFromConfig(cfg),
		VideoSvc:     f.video,
		InferenceSvc: f.inference,
		DisplaySvc:   f.canvas,
		CollectorSvc: f.collector,
		EmitterSvc:   emitter.NewNoop(),
	}
	f.controller = NewController(svcs, ControllerOptions{
		ErrorStream: f.errors,
		StatsStream: f.stats,
	})
	return f
}

func (f *controllerFixture) start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- f.controller.Run(ctx)
	}()
	return done
}

func awaitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestControllerRunsAndStops(t *testing.T) {
	f := newControllerFixture(t, nil)
	done := f.start(context.Background())

	waitFor(t, 3*time.Second, func() bool { return f.controller.State() == Detecting })
	waitFor(t, 3*time.Second, func() bool { return f.collector.UploadCount() >= 2 })
	waitFor(t, 3*time.Second, func() bool { return f.controller.Intervals().Seeded() })

	f.controller.Stop()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := f.controller.State(); got != Stopped {
		t.Fatalf("state = %s, want stopped", got)
	}
	if !f.video.Closed() {
		t.Fatal("video not closed at teardown")
	}

	calls := f.inference.Calls()
	time.Sleep(50 * time.Millisecond)
	if f.inference.Calls() != calls {
		t.Fatal("ticks kept running after Stop")
	}
}

func TestControllerIntervalFetchFailureStillDetects(t *testing.T) {
	f := newControllerFixture(t, func(f *controllerFixture) {
		f.collector.GetErr = errors.New("connection refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := f.start(ctx)

	waitFor(t, 3*time.Second, func() bool { return f.collector.UploadCount() >= 1 })
	if got := f.controller.Intervals().Get(); got != 50*time.Millisecond {
		t.Fatalf("interval = %s, want the 50ms default", got)
	}

	cancel()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	found := false
	for len(f.errors) > 0 {
		if ce, ok := (<-f.errors).(model.CustomError); ok && xerrors.Is(ce, model.ErrIntervalFetch) {
			found = true
		}
	}
	if !found {
		t.Fatal("interval fetch failure was not reported")
	}
}

func TestControllerInferenceFailuresDoNotStopLoop(t *testing.T) {
	f := newControllerFixture(t, func(f *controllerFixture) {
		f.inference.Script = []inference.Step{
			{Err: errors.New("bad frame")},
			{Detections: []model.Detection{face(20, model.GenderMale, mood("sad", 1))}},
		}
	})
	done := f.start(context.Background())

	waitFor(t, 3*time.Second, func() bool { return f.inference.Calls() >= 6 })
	attrs, ok := f.controller.Attributes().Get()
	if !ok || attrs.Mood != "sad" {
		t.Fatalf("attributes = %+v, %v", attrs, ok)
	}

	f.controller.Stop()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestControllerModelLoadFailure(t *testing.T) {
	f := newControllerFixture(t, func(f *controllerFixture) {
		f.inference.LoadErr = errors.New("age model missing")
	})

	err := awaitRun(t, f.start(context.Background()))
	if !xerrors.Is(err, model.ErrModelLoad) {
		t.Fatalf("Run() error = %v, want ErrModelLoad", err)
	}
	if got := f.controller.State(); got != Error {
		t.Fatalf("state = %s, want error", got)
	}
}

func TestControllerMediaFailure(t *testing.T) {
	f := newControllerFixture(t, func(f *controllerFixture) {
		f.video.OpenErr = errors.New("permission denied")
	})

	err := awaitRun(t, f.start(context.Background()))
	if !xerrors.Is(err, model.ErrMediaAcquisition) {
		t.Fatalf("Run() error = %v, want ErrMediaAcquisition", err)
	}
	if got := f.controller.State(); got != Error {
		t.Fatalf("state = %s, want error", got)
	}
	if f.inference.Calls() != 0 {
		t.Fatal("detection ran without video")
	}
}

func TestControllerSetUploadInterval(t *testing.T) {
	f := newControllerFixture(t, nil)

	if err := f.controller.SetUploadInterval(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if got := f.controller.Intervals().Get(); got != 2*time.Second {
		t.Fatalf("interval = %s, want 2s", got)
	}
}

func TestControllerStopBeforeRun(t *testing.T) {
	f := newControllerFixture(t, nil)
	f.controller.Stop()

	if err := awaitRun(t, f.start(context.Background())); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := f.controller.State(); got != Stopped {
		t.Fatalf("state = %s, want stopped", got)
	}
	if f.inference.Calls() != 0 {
		t.Fatal("ticks ran after an early Stop")
	}
}

func TestControllerSetUploadIntervalWhileDetecting(t *testing.T) {
	clock := newManualClock()
	f := newControllerFixture(t, func(f *controllerFixture) {
		f.collector.Interval = 1
	})
	f.controller = NewController(f.controller.svcs, ControllerOptions{
		Clock:       clock.Now,
		ErrorStream: f.errors,
		StatsStream: f.stats,
	})
	done := f.start(context.Background())

	waitFor(t, 3*time.Second, func() bool { return f.controller.Intervals().Seeded() })
	waitFor(t, 3*time.Second, func() bool { return f.collector.UploadCount() == 1 })

	// under the seeded 1s interval the frozen clock never passes the gate again
	clock.Set(500)
	time.Sleep(50 * time.Millisecond)
	if got := f.collector.UploadCount(); got != 1 {
		t.Fatalf("uploads = %d before the interval change, want 1", got)
	}

	if err := f.controller.SetUploadInterval(context.Background(), 0.2); err != nil {
		t.Fatal(err)
	}
	if got := f.controller.UploadInterval(); got != 200*time.Millisecond {
		t.Fatalf("interval = %s, want 200ms", got)
	}
	waitFor(t, 3*time.Second, func() bool { return f.collector.UploadCount() == 2 })

	f.controller.Stop()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sets := f.collector.Sets; len(sets) != 1 || sets[0] != 0.2 {
		t.Fatalf("collector sets = %v, want [0.2]", sets)
	}
}

func TestControllerRunTwice(t *testing.T) {
	f := newControllerFixture(t, func(f *controllerFixture) {
		f.inference.LoadErr = errors.New("x")
	})
	awaitRun(t, f.start(context.Background()))

	if err := f.controller.Run(context.Background()); err == nil {
		t.Fatal("second Run succeeded")
	}
}

func TestStateString(t *testing.T) {
	if Detecting.String() != "detecting" || !Stopped.Terminal() || Detecting.Terminal() {
		t.Fatal("unexpected state naming")
	}
}
