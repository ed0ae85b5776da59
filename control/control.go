// Package control serves the runtime controls of a running detector. Its
// interval routes mirror the collector's so the same client drives both.
package control

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/lgr"
)

// Target is the live pipeline the controls act on.
type Target interface {
	Session() string
	State() pipeline.State
	UploadInterval() time.Duration
	SetUploadInterval(ctx context.Context, seconds float64) error
}

type Server struct {
	addr    string
	target  Target
	started time.Time
}

type intervalBody struct {
	Interval *float64 `json:"interval"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func New(addr string, target Target) *Server {
	return &Server{addr: addr, target: target, started: time.Now()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /get-interval/{$}", s.getInterval)
	mux.HandleFunc("POST /set-interval/{$}", s.setInterval)
	mux.HandleFunc("GET /status", s.status)
	return mux
}

// ListenAndServe blocks until ctx is cancelled, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		lgr.Logger.Info("detector controls listening", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) getInterval(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"interval": s.target.UploadInterval().Seconds()})
}

// setInterval answers only after the collector acknowledged the change and
// the live throttle adopted it.
func (s *Server) setInterval(w http.ResponseWriter, r *http.Request) {
	var body intervalBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil || body.Interval == nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "interval is required"})
		return
	}

	seconds := *body.Interval
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "interval must be a non-negative number"})
		return
	}

	if err := s.target.SetUploadInterval(r.Context(), seconds); err != nil {
		lgr.Logger.Error("error changing upload interval", slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, messageResponse{Message: "collector did not accept the interval"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"interval": s.target.UploadInterval().Seconds()})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":  s.target.Session(),
		"state":    s.target.State().String(),
		"interval": s.target.UploadInterval().Seconds(),
		"uptime":   int64(time.Since(s.started).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
