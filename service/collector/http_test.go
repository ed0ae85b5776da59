package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
)

func TestHTTPGetInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/get-interval/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"interval": 2.5}`))
	}))
	defer srv.Close()

	svc := NewHTTP(srv.URL+"/", time.Second)
	seconds, err := svc.GetInterval(context.Background())
	if err != nil {
		t.Fatalf("GetInterval failed: %v", err)
	}
	if seconds != 2.5 {
		t.Errorf("expected 2.5, got %v", seconds)
	}
}

func TestHTTPGetIntervalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second).GetInterval(context.Background())
	if !errors.Is(err, model.ErrIntervalFetch) {
		t.Fatalf("expected ErrIntervalFetch, got %v", err)
	}
}

func TestHTTPSetInterval(t *testing.T) {
	var got intervalBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/set-interval/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"interval": 3}`))
	}))
	defer srv.Close()

	if err := NewHTTP(srv.URL, time.Second).SetInterval(context.Background(), 3); err != nil {
		t.Fatalf("SetInterval failed: %v", err)
	}
	if got.Interval != 3 {
		t.Errorf("server received %v, want 3", got.Interval)
	}
}

func TestHTTPSetIntervalRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad interval", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewHTTP(srv.URL, time.Second).SetInterval(context.Background(), -1)
	if !errors.Is(err, model.ErrIntervalSet) {
		t.Fatalf("expected ErrIntervalSet, got %v", err)
	}
}

func TestHTTPUploadMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		for field, want := range map[string]string{"age": "31", "gender": "female", "mood": "happy"} {
			if got := r.FormValue(field); got != want {
				t.Errorf("field %s = %q, want %q", field, got, want)
			}
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "\x89PNG" {
			t.Errorf("unexpected file contents %q", data)
		}
		if hdr.Filename != "image.png" {
			t.Errorf("unexpected filename %q", hdr.Filename)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := NewHTTP(srv.URL, time.Second).Upload(context.Background(), model.UploadPayload{
		Image:  []byte("\x89PNG"),
		Age:    31,
		Gender: "female",
		Mood:   "happy",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if body != `{"ok":true}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestHTTPUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTP(srv.URL, 50*time.Millisecond).Upload(context.Background(), model.UploadPayload{Image: []byte{1}})
	if !errors.Is(err, model.ErrUpload) {
		t.Fatalf("expected ErrUpload on timeout, got %v", err)
	}
}
