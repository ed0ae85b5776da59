package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/khaledhikmat/vs-mood/service/display"
	"github.com/khaledhikmat/vs-mood/service/inference"
	"github.com/khaledhikmat/vs-mood/service/video"
	"golang.org/x/xerrors"
)

type samplerFixture struct {
	clock     *manualClock
	video     *video.Fake
	inference *inference.Fake
	canvas    *display.Canvas
	collector *collector.Fake
	cell      *AttributesCell
	uploader  *Uploader
	sampler   *Sampler
}

func newSamplerFixture(t *testing.T, script ...inference.Step) *samplerFixture {
	t.Helper()
	f := &samplerFixture{
		clock:     newManualClock(),
		video:     video.NewFake(320, 240),
		inference: inference.NewFake(),
		canvas:    display.NewCanvas(true),
		collector: collector.NewFake(1),
		cell:      NewAttributesCell(),
	}
	f.inference.Script = script
	if err := f.inference.LoadModels(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.video.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.uploader = NewUploader(UploaderOptions{
		Session:     "test",
		Collector:   f.collector,
		Snapshotter: f.video,
		Intervals:   NewIntervalStore(f.collector, time.Second),
		Clock:       f.clock.Now,
		Timeout:     time.Second,
	})
	f.sampler = NewSampler("test", f.video, f.inference, NewOverlay(f.canvas), f.uploader, f.cell, f.clock.Now)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.uploader.Wait(ctx)
	})
	return f
}

func TestSamplerTickPublishesAttributes(t *testing.T) {
	det := face(41.7, model.GenderFemale, mood("neutral", 0.2), mood("happy", 0.6), mood("sad", 0.2))
	f := newSamplerFixture(t, inference.Step{Detections: []model.Detection{det}})

	if err := f.sampler.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	attrs, ok := f.cell.Get()
	if !ok {
		t.Fatal("no attributes published")
	}
	if attrs.Age != 42 || attrs.Gender != "female" || attrs.Mood != "happy" {
		t.Fatalf("attributes = %+v", attrs)
	}
	if got := f.uploader.Stats().Triggered; got != 1 {
		t.Fatalf("triggered = %d, want 1", got)
	}
}

func TestSamplerFailedTickDoesNotBlockNext(t *testing.T) {
	det := face(25, model.GenderMale, mood("angry", 0.9))
	f := newSamplerFixture(t,
		inference.Step{Err: errors.New("engine exploded")},
		inference.Step{Detections: []model.Detection{det}},
	)

	err := f.sampler.Tick(context.Background(), 1)
	if !xerrors.Is(err, model.ErrInferenceTick) {
		t.Fatalf("Tick(1) error = %v, want ErrInferenceTick", err)
	}
	if _, ok := f.cell.Get(); ok {
		t.Fatal("a failed tick published attributes")
	}

	if err := f.sampler.Tick(context.Background(), 2); err != nil {
		t.Fatalf("Tick(2) error = %v", err)
	}
	attrs, ok := f.cell.Get()
	if !ok || attrs.Mood != "angry" {
		t.Fatalf("attributes after recovery = %+v, %v", attrs, ok)
	}

	stats := f.sampler.Stats()
	if stats.Ticks != 2 || stats.FailedTicks != 1 || stats.Detections != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSamplerRendersEveryTick(t *testing.T) {
	det := face(30, model.GenderMale, mood("happy", 1))
	f := newSamplerFixture(t,
		inference.Step{Detections: []model.Detection{det}},
		inference.Step{Detections: nil},
		inference.Step{Detections: []model.Detection{det}},
	)

	for seq := int64(1); seq <= 3; seq++ {
		f.clock.Set(seq * 100)
		if err := f.sampler.Tick(context.Background(), seq); err != nil {
			t.Fatalf("Tick(%d) error = %v", seq, err)
		}
	}

	draws, clears := f.canvas.Counts()
	if draws != 3 || clears != 3 {
		t.Fatalf("draws=%d clears=%d, want 3 each", draws, clears)
	}
	if got := f.sampler.Stats().EmptyTicks; got != 1 {
		t.Fatalf("empty ticks = %d, want 1", got)
	}
	// Only the first tick passes the 1s throttle
	if got := f.uploader.Stats().Triggered; got != 1 {
		t.Fatalf("triggered = %d, want 1", got)
	}
}

func TestSamplerMatchesSurfaceToVideo(t *testing.T) {
	f := newSamplerFixture(t, inference.Step{Detections: []model.Detection{face(30, model.GenderMale, mood("happy", 1))}})

	if err := f.sampler.Tick(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := f.canvas.Image().Bounds(); got != image.Rect(0, 0, 320, 240) {
		t.Fatalf("surface bounds = %v, want 320x240", got)
	}
	boxes := f.canvas.Boxes()
	if len(boxes) != 1 || boxes[0] != image.Rect(10, 10, 50, 50) {
		t.Fatalf("boxes = %v", boxes)
	}
}

func TestSamplerReadFailure(t *testing.T) {
	f := newSamplerFixture(t)
	f.video.ReadErr = errors.New("device gone")

	if err := f.sampler.Tick(context.Background(), 1); !xerrors.Is(err, model.ErrInferenceTick) {
		t.Fatalf("Tick() error = %v, want ErrInferenceTick", err)
	}
	if f.inference.Calls() != 0 {
		t.Fatal("inference ran without a frame")
	}
}
