package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/collector"
)

type liveTarget struct {
	store *pipeline.IntervalStore
}

func (t liveTarget) Session() string               { return "session-1" }
func (t liveTarget) State() pipeline.State         { return pipeline.Detecting }
func (t liveTarget) UploadInterval() time.Duration { return t.store.Get() }
func (t liveTarget) SetUploadInterval(ctx context.Context, seconds float64) error {
	return t.store.Set(ctx, seconds)
}

func newTestServer(t *testing.T) (*httptest.Server, *collector.Fake, *pipeline.IntervalStore) {
	t.Helper()
	remote := collector.NewFake(1)
	store := pipeline.NewIntervalStore(remote, time.Second)

	ts := httptest.NewServer(New("", liveTarget{store: store}).Handler())
	t.Cleanup(ts.Close)
	return ts, remote, store
}

func TestSetIntervalReachesLivePipeline(t *testing.T) {
	ts, remote, store := newTestServer(t)
	client := collector.NewHTTP(ts.URL, time.Second)

	if err := client.SetInterval(context.Background(), 2.5); err != nil {
		t.Fatalf("SetInterval() error = %v", err)
	}
	if got := store.Get(); got != 2500*time.Millisecond {
		t.Fatalf("live interval = %s, want 2.5s", got)
	}
	if len(remote.Sets) != 1 || remote.Sets[0] != 2.5 {
		t.Fatalf("collector sets = %v, want [2.5]", remote.Sets)
	}

	seconds, err := client.GetInterval(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if seconds != 2.5 {
		t.Fatalf("GetInterval() = %v, want 2.5", seconds)
	}
}

func TestSetIntervalRejectsInvalidBody(t *testing.T) {
	ts, remote, store := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing", `{}`},
		{"negative", `{"interval": -1}`},
		{"not json", `interval=3`},
		{"string", `{"interval": "3"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/set-interval/", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
	if store.Get() != time.Second || len(remote.Sets) != 0 {
		t.Fatalf("interval changed to %s after rejected requests", store.Get())
	}
}

func TestSetIntervalCollectorFailureKeepsInterval(t *testing.T) {
	ts, remote, store := newTestServer(t)
	remote.SetErr = errors.New("collector down")

	resp, err := http.Post(ts.URL+"/set-interval/", "application/json", strings.NewReader(`{"interval": 4}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if got := store.Get(); got != time.Second {
		t.Fatalf("interval = %s, want the previous 1s", got)
	}
}

func TestStatus(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != "detecting" || body["session"] != "session-1" || body["interval"] != 1.0 {
		t.Fatalf("status = %v", body)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	store := pipeline.NewIntervalStore(collector.NewFake(1), time.Second)
	srv := New("127.0.0.1:0", liveTarget{store: store})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, time.Second) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
