package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"golang.org/x/xerrors"
)

// IntervalStore holds the upload throttle interval. Reads are lock free so
// every tick sees either the old or the new value, never a torn one.
type IntervalStore struct {
	collector collector.IService
	interval  atomic.Int64 // nanoseconds
	seeded    atomic.Bool
}

func NewIntervalStore(collectorSvc collector.IService, defaultInterval time.Duration) *IntervalStore {
	s := &IntervalStore{collector: collectorSvc}
	s.interval.Store(int64(defaultInterval))
	return s
}

func (s *IntervalStore) Get() time.Duration {
	return time.Duration(s.interval.Load())
}

func (s *IntervalStore) Seeded() bool {
	return s.seeded.Load()
}

// Seed reads the collector's interval once. On failure the current (default)
// interval is kept and the error is only logged and returned.
func (s *IntervalStore) Seed(ctx context.Context) error {
	seconds, err := s.collector.GetInterval(ctx)
	if err != nil {
		lgr.Logger.Warn("error fetching upload interval, keeping default",
			slog.Duration("interval", s.Get()),
			slog.Any("error", err),
		)
		return err
	}
	if err := validSeconds(seconds); err != nil {
		lgr.Logger.Warn("collector reported an invalid upload interval, keeping default",
			slog.Float64("seconds", seconds),
			slog.Duration("interval", s.Get()),
		)
		return xerrors.Errorf("%v: %w", err, model.ErrIntervalFetch)
	}

	s.interval.Store(int64(secondsToDuration(seconds)))
	s.seeded.Store(true)
	lgr.Logger.Info("upload interval seeded from collector",
		slog.Duration("interval", s.Get()),
	)
	return nil
}

// Set pushes seconds to the collector and adopts seconds*1000ms only once the
// collector acknowledged it.
func (s *IntervalStore) Set(ctx context.Context, seconds float64) error {
	if err := validSeconds(seconds); err != nil {
		return xerrors.Errorf("%v: %w", err, model.ErrIntervalSet)
	}

	if err := s.collector.SetInterval(ctx, seconds); err != nil {
		lgr.Logger.Error("error setting upload interval, keeping the last known one",
			slog.Float64("seconds", seconds),
			slog.Duration("interval", s.Get()),
			slog.Any("error", err),
		)
		return err
	}

	s.interval.Store(int64(secondsToDuration(seconds)))
	lgr.Logger.Info("upload interval updated",
		slog.Duration("interval", s.Get()),
	)
	return nil
}

func validSeconds(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return xerrors.Errorf("invalid interval %v", seconds)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * 1000)) * time.Millisecond
}
