package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/xerrors"
)

type noopLogger struct{}

func (noopLogger) Printf(string, ...interface{}) {}

// TestPostgresIntegration runs against a real Postgres container and needs
// Docker.
func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("vsmood_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	svc, err := NewPostgres(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer svc.Close()

	if _, err := svc.RetrieveLatestUpload(); !xerrors.Is(err, model.ErrNotFound) {
		t.Fatalf("RetrieveLatestUpload() = %v, want ErrNotFound", err)
	}
	if _, err := svc.RetrieveInterval(); !xerrors.Is(err, model.ErrNotFound) {
		t.Fatalf("RetrieveInterval() = %v, want ErrNotFound", err)
	}

	base := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	for i, mood := range []string{"happy", "sad"} {
		rec := model.UploadRecord{
			ID:           fmt.Sprintf("rec-%d", i),
			Age:          30 + i,
			Gender:       "female",
			Mood:         mood,
			FileLocation: fmt.Sprintf("uploads/rec-%d.png", i),
			Timestamp:    base.Add(time.Duration(i) * time.Second),
		}
		if err := svc.NewUploadRecord(rec); err != nil {
			t.Fatalf("NewUploadRecord failed: %v", err)
		}
	}

	latest, err := svc.RetrieveLatestUpload()
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "rec-1" || latest.Mood != "sad" || latest.Age != 31 {
		t.Fatalf("latest = %+v", latest)
	}

	if err := svc.UpdateInterval(1.5); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpdateInterval(3); err != nil {
		t.Fatal(err)
	}
	if got, err := svc.RetrieveInterval(); err != nil || got != 3 {
		t.Fatalf("RetrieveInterval() = %v, %v; want 3", got, err)
	}

	if err := svc.NewSamplerStats(model.SamplerStats{Name: "sampler", Ticks: 4}); err != nil {
		t.Fatal(err)
	}
	if err := svc.NewError(model.GenError("collector", xerrors.New("disk full"), nil, "error saving upload")); err != nil {
		t.Fatal(err)
	}

	pg := svc.(*postgresService)
	if n, err := pg.countEvents(ctx, samplerStatsEntity); err != nil || n != 1 {
		t.Fatalf("sampler stats rows = %d, %v; want 1", n, err)
	}
	if n, err := pg.countEvents(ctx, errorsEntity); err != nil || n != 1 {
		t.Fatalf("error rows = %d, %v; want 1", n, err)
	}
}
