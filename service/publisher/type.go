package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/vmihailenco/msgpack/v5"
)

// IService fans accepted uploads out to downstream consumers.
type IService interface {
	Publish(ctx context.Context, rec model.UploadRecord) error
	Close() error
}

// UploadEvent is the wire form of an accepted upload.
type UploadEvent struct {
	ID           string `msgpack:"id"`
	Age          int    `msgpack:"age"`
	Gender       string `msgpack:"gender"`
	Mood         string `msgpack:"mood"`
	FileLocation string `msgpack:"file_location"`
	TimestampMs  int64  `msgpack:"ts"`
}

func Encode(rec model.UploadRecord) ([]byte, error) {
	return msgpack.Marshal(UploadEvent{
		ID:           rec.ID,
		Age:          rec.Age,
		Gender:       rec.Gender,
		Mood:         rec.Mood,
		FileLocation: rec.FileLocation,
		TimestampMs:  rec.Timestamp.UnixMilli(),
	})
}

func Decode(data []byte) (model.UploadRecord, error) {
	var ev UploadEvent
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		return model.UploadRecord{}, err
	}
	return model.UploadRecord{
		ID:           ev.ID,
		Age:          ev.Age,
		Gender:       ev.Gender,
		Mood:         ev.Mood,
		FileLocation: ev.FileLocation,
		Timestamp:    time.UnixMilli(ev.TimestampMs),
	}, nil
}

type noopService struct{}

func NewNoop() IService {
	return noopService{}
}

func (noopService) Publish(context.Context, model.UploadRecord) error { return nil }

func (noopService) Close() error { return nil }

// Fake keeps every published event encoded, as a broker would.
type Fake struct {
	mu       sync.Mutex
	Err      error
	Messages [][]byte
}

func NewFake() *Fake {
	return &Fake{}
}

func (svc *Fake) Publish(_ context.Context, rec model.UploadRecord) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.Err != nil {
		return svc.Err
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	svc.Messages = append(svc.Messages, data)
	return nil
}

func (svc *Fake) Published() []model.UploadRecord {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	out := make([]model.UploadRecord, 0, len(svc.Messages))
	for _, m := range svc.Messages {
		rec, err := Decode(m)
		if err == nil {
			out = append(out, rec)
		}
	}
	return out
}

func (svc *Fake) Close() error {
	return nil
}
