// Package server is the collector: it serves the upload interval, accepts
// snapshot uploads and exposes the latest one to the dashboard.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/data"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/khaledhikmat/vs-mood/service/publisher"
	"golang.org/x/xerrors"
)

type Server struct {
	params      config.CollectorParameters
	data        data.IService
	publisher   publisher.IService
	errorStream chan<- interface{}
	started     time.Time

	mu       sync.RWMutex
	interval float64

	uploads   atomic.Int64
	rejected  atomic.Int64
	published atomic.Int64
}

type intervalBody struct {
	Interval *float64 `json:"interval"`
}

type uploadResponse struct {
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	Mood         string `json:"mood"`
	FileLocation string `json:"file_location"`
}

type dataResponse struct {
	Age  int    `json:"age"`
	Mood string `json:"mood"`
	File string `json:"file"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// New restores the persisted interval, falling back to the configured one.
func New(cfgSvc config.IService, dataSvc data.IService, pubSvc publisher.IService, errorStream chan<- interface{}) (*Server, error) {
	params := cfgSvc.GetCollectorParameters()
	if err := os.MkdirAll(params.UploadsFolder, 0755); err != nil {
		return nil, xerrors.Errorf("creating uploads folder: %w", err)
	}
	if pubSvc == nil {
		pubSvc = publisher.NewNoop()
	}

	interval, err := dataSvc.RetrieveInterval()
	if err != nil {
		if !xerrors.Is(err, model.ErrNotFound) {
			lgr.Logger.Warn("error restoring upload interval, using default",
				slog.Any("error", err),
			)
		}
		interval = params.DefaultIntervalSeconds
	}

	return &Server{
		params:      params,
		data:        dataSvc,
		publisher:   pubSvc,
		errorStream: errorStream,
		started:     time.Now(),
		interval:    interval,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /get-interval/{$}", s.getInterval)
	mux.HandleFunc("POST /set-interval/{$}", s.setInterval)
	mux.HandleFunc("POST /upload/{$}", s.upload)
	mux.HandleFunc("GET /data/{$}", s.latestData)
	mux.HandleFunc("GET /file/{$}", s.latestFile)
	mux.HandleFunc("GET /health", s.health)
	return s.cors(mux)
}

// ListenAndServe blocks until ctx is cancelled, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.params.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		lgr.Logger.Info("collector listening",
			slog.String("addr", s.params.ListenAddr),
			slog.String("uploads", s.params.UploadsFolder),
		)
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

func (s *Server) Interval() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

func (s *Server) Stats() model.CollectorStats {
	return model.CollectorStats{
		Name:      "collector",
		Uploads:   s.uploads.Load(),
		Rejected:  s.rejected.Load(),
		Published: s.published.Load(),
		Uptime:    int64(time.Since(s.started).Seconds()),
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && origin == s.params.AllowedOrigin {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if origin != s.params.AllowedOrigin {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) getInterval(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"interval": s.Interval()})
}

func (s *Server) setInterval(w http.ResponseWriter, r *http.Request) {
	var body intervalBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil || body.Interval == nil {
		s.rejected.Add(1)
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "interval is required"})
		return
	}

	seconds := *body.Interval
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		s.rejected.Add(1)
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "interval must be a non-negative number"})
		return
	}

	if err := s.data.UpdateInterval(seconds); err != nil {
		s.report(err, "error persisting upload interval")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "could not store interval"})
		return
	}

	s.mu.Lock()
	s.interval = seconds
	s.mu.Unlock()

	lgr.Logger.Info("upload interval changed", slog.Float64("seconds", seconds))
	writeJSON(w, http.StatusOK, map[string]float64{"interval": seconds})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.params.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.params.MaxUploadBytes); err != nil {
		s.rejected.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	age, err := strconv.Atoi(strings.TrimSpace(r.FormValue("age")))
	gender, mood := r.FormValue("gender"), r.FormValue("mood")
	if err != nil || gender == "" || !r.Form.Has("mood") {
		s.rejected.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: "age, gender and mood are required"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.rejected.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: "file is required"})
		return
	}
	defer file.Close()

	// Client file names are not trusted; every upload gets its own name
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".png"
	}
	id := uuid.NewString()
	location := filepath.Join(s.params.UploadsFolder, id+ext)

	if err := saveFile(location, file); err != nil {
		s.report(err, "error saving uploaded file")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "could not store file"})
		return
	}

	rec := model.UploadRecord{
		ID:           id,
		Age:          age,
		Gender:       gender,
		Mood:         mood,
		FileLocation: filepath.ToSlash(location),
		Timestamp:    time.Now(),
	}
	if err := s.data.NewUploadRecord(rec); err != nil {
		os.Remove(location)
		s.report(err, "error recording upload")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "could not record upload"})
		return
	}
	s.uploads.Add(1)

	if err := s.publisher.Publish(r.Context(), rec); err != nil {
		s.report(err, "error publishing upload event")
	} else {
		s.published.Add(1)
	}

	lgr.Logger.Info("upload received",
		slog.String("id", id),
		slog.Int("age", age),
		slog.String("gender", gender),
		slog.String("mood", mood),
		slog.Int64("bytes", header.Size),
	)
	writeJSON(w, http.StatusOK, uploadResponse{Age: age, Gender: gender, Mood: mood, FileLocation: rec.FileLocation})
}

func (s *Server) latestData(w http.ResponseWriter, _ *http.Request) {
	rec, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Age: rec.Age, Mood: rec.Mood, File: rec.FileLocation})
}

func (s *Server) latestFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.latest(w)
	if !ok {
		return
	}

	f, err := os.Open(filepath.FromSlash(rec.FileLocation))
	if err != nil {
		s.report(err, "error opening latest upload")
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "No data available"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "could not read file"})
		return
	}

	name := filepath.Base(rec.FileLocation)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) latest(w http.ResponseWriter) (model.UploadRecord, bool) {
	rec, err := s.data.RetrieveLatestUpload()
	if xerrors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "No data available"})
		return rec, false
	}
	if err != nil {
		s.report(err, "error retrieving latest upload")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "could not read uploads"})
		return rec, false
	}
	return rec, true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) report(err error, msg string) {
	lgr.Logger.Error(msg, slog.Any("error", err))
	if s.errorStream == nil {
		return
	}
	select {
	case s.errorStream <- model.GenError("collector", err, nil, "%s", msg):
	default:
	}
}

func saveFile(location string, src io.Reader) error {
	dst, err := os.Create(location)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(location)
		return err
	}
	return dst.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
