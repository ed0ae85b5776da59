package model

import (
	"fmt"
	"image"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Frame is one sampled video frame. Image is owned by the tick that read it.
type Frame struct {
	Seq       int64
	Image     image.Image
	Width     int
	Height    int
	Timestamp time.Time
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// MoodScore is one entry of a mood distribution.
type MoodScore struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// MoodDistribution keeps the engine's enumeration order so that arg-max ties
// resolve to the earliest label.
type MoodDistribution []MoodScore

func (d MoodDistribution) Get(label string) (float64, bool) {
	for _, s := range d {
		if s.Label == label {
			return s.Probability, true
		}
	}
	return 0, false
}

// Detection is one inferred face for a frame.
type Detection struct {
	Age              float64          `json:"age"`
	Gender           Gender           `json:"gender"`
	GenderConfidence float64          `json:"genderConfidence"`
	Moods            MoodDistribution `json:"moods"`
	Box              image.Rectangle  `json:"box"`
	Score            float64          `json:"score"`
}

// ExtractedAttributes is the reduced view of one detection. Mood is empty and
// HasMood false only when the source distribution was empty.
type ExtractedAttributes struct {
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Mood      string    `json:"mood"`
	HasMood   bool      `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadPayload is built once per triggered upload and never mutated.
type UploadPayload struct {
	Image     []byte
	FileName  string
	Age       int
	Gender    string
	Mood      string
	Timestamp time.Time
}

// UploadRecord is what the collector keeps for every accepted upload.
type UploadRecord struct {
	ID           string    `json:"id"`
	Age          int       `json:"age"`
	Gender       string    `json:"gender"`
	Mood         string    `json:"mood"`
	FileLocation string    `json:"file_location"`
	Timestamp    time.Time `json:"timestamp"`
}

type SamplerStats struct {
	Name         string  `json:"name"`
	Session      string  `json:"session"`
	Ticks        int64   `json:"ticks"`
	FailedTicks  int64   `json:"failedTicks"`
	EmptyTicks   int64   `json:"emptyTicks"`
	SkippedTicks int64   `json:"skippedTicks"`
	Detections   int64   `json:"detections"`
	Uptime       int64   `json:"uptime"`
	AvgTickTime  float64 `json:"avgTickTime"`
	Timestamp    int64   `json:"timestamp"`
}

type UploaderStats struct {
	Name      string `json:"name"`
	Session   string `json:"session"`
	Triggered int64  `json:"triggered"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
	InFlight  int64  `json:"inFlight"`
	Interval  int64  `json:"interval"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type CollectorStats struct {
	Name      string `json:"name"`
	Uploads   int64  `json:"uploads"`
	Rejected  int64  `json:"rejected"`
	Published int64  `json:"published"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
