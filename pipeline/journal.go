package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/natefinch/lumberjack"
)

type journalEntry struct {
	Time     string `json:"time"`
	Session  string `json:"session"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Mood     string `json:"mood"`
	Bytes    int    `json:"bytes"`
	Outcome  string `json:"outcome"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Journal appends one JSON line per triggered upload. A nil Journal drops
// everything.
type Journal struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func NewJournal(filename string) *Journal {
	if filename == "" {
		return nil
	}
	return &Journal{w: &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     7,    // days
		Compress:   true, // compress old logs
	}}
}

func newJournalWriter(w io.WriteCloser) *Journal {
	return &Journal{w: w}
}

func (j *Journal) Record(entry journalEntry) {
	if j == nil {
		return
	}
	if entry.Time == "" {
		entry.Time = time.Now().Format(time.RFC3339)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Error("error marshaling journal entry", slog.Any("error", err))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(append(data, '\n')); err != nil {
		lgr.Logger.Error("error writing to journal", slog.Any("error", err))
	}
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Close()
}
