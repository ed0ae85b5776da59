package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"golang.org/x/xerrors"
)

func TestIntervalSeedFromCollector(t *testing.T) {
	store := NewIntervalStore(collector.NewFake(2.5), time.Second)

	if err := store.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if got := store.Get(); got != 2500*time.Millisecond {
		t.Fatalf("Get() = %s, want 2.5s", got)
	}
	if !store.Seeded() {
		t.Fatal("Seeded() = false after a successful seed")
	}
}

func TestIntervalSeedFailureKeepsDefault(t *testing.T) {
	fake := collector.NewFake(5)
	fake.GetErr = errors.New("connection refused")
	store := NewIntervalStore(fake, 1500*time.Millisecond)

	err := store.Seed(context.Background())
	if !xerrors.Is(err, model.ErrIntervalFetch) {
		t.Fatalf("Seed() error = %v, want ErrIntervalFetch", err)
	}
	if got := store.Get(); got != 1500*time.Millisecond {
		t.Fatalf("Get() = %s, want default 1.5s", got)
	}
	if store.Seeded() {
		t.Fatal("Seeded() = true after a failed seed")
	}
}

func TestIntervalSeedRejectsNegative(t *testing.T) {
	store := NewIntervalStore(collector.NewFake(-1), time.Second)
	if err := store.Seed(context.Background()); !xerrors.Is(err, model.ErrIntervalFetch) {
		t.Fatalf("Seed() error = %v, want ErrIntervalFetch", err)
	}
	if got := store.Get(); got != time.Second {
		t.Fatalf("Get() = %s, want 1s", got)
	}
}

func TestIntervalSet(t *testing.T) {
	fake := collector.NewFake(1)
	store := NewIntervalStore(fake, time.Second)

	if err := store.Set(context.Background(), 3); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := store.Get(); got != 3*time.Second {
		t.Fatalf("Get() = %s, want 3s", got)
	}
	if len(fake.Sets) != 1 || fake.Sets[0] != 3 {
		t.Fatalf("collector saw %v, want [3]", fake.Sets)
	}
}

func TestIntervalSetFailureRetainsLastKnown(t *testing.T) {
	fake := collector.NewFake(1)
	fake.SetErr = errors.New("503")
	store := NewIntervalStore(fake, 2*time.Second)

	err := store.Set(context.Background(), 9)
	if !xerrors.Is(err, model.ErrIntervalSet) {
		t.Fatalf("Set() error = %v, want ErrIntervalSet", err)
	}
	if got := store.Get(); got != 2*time.Second {
		t.Fatalf("Get() = %s, want 2s", got)
	}
}

func TestIntervalSetValidation(t *testing.T) {
	fake := collector.NewFake(1)
	store := NewIntervalStore(fake, time.Second)

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		if err := store.Set(context.Background(), v); !xerrors.Is(err, model.ErrIntervalSet) {
			t.Errorf("Set(%v) error = %v, want ErrIntervalSet", v, err)
		}
	}
	if len(fake.Sets) != 0 {
		t.Fatalf("invalid values reached the collector: %v", fake.Sets)
	}
}

func TestSecondsToDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{0.25, 250 * time.Millisecond},
		{1.0004, time.Second},
	}
	for _, tt := range tests {
		if got := secondsToDuration(tt.in); got != tt.want {
			t.Errorf("secondsToDuration(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
