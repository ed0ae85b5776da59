package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
	"golang.org/x/xerrors"
)

// Fake is an in-memory collector. Its error fields make the matching call fail.
type Fake struct {
	mu sync.Mutex

	Interval    float64
	GetErr      error
	SetErr      error
	UploadErr   error
	UploadBlock chan struct{} // when set, Upload waits for it (or ctx) before answering

	Sets    []float64
	Uploads []model.UploadPayload
}

func NewFake(seconds float64) *Fake {
	return &Fake{Interval: seconds}
}

func (svc *Fake) GetInterval(_ context.Context) (float64, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.GetErr != nil {
		return 0, xerrors.Errorf("%v: %w", svc.GetErr, model.ErrIntervalFetch)
	}
	return svc.Interval, nil
}

func (svc *Fake) SetInterval(_ context.Context, seconds float64) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SetErr != nil {
		return xerrors.Errorf("%v: %w", svc.SetErr, model.ErrIntervalSet)
	}
	svc.Interval = seconds
	svc.Sets = append(svc.Sets, seconds)
	return nil
}

func (svc *Fake) Upload(ctx context.Context, payload model.UploadPayload) (string, error) {
	svc.mu.Lock()
	block := svc.UploadBlock
	svc.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", xerrors.Errorf("%v: %w", ctx.Err(), model.ErrUpload)
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.Uploads = append(svc.Uploads, payload)
	if svc.UploadErr != nil {
		return "", xerrors.Errorf("%v: %w", svc.UploadErr, model.ErrUpload)
	}
	return fmt.Sprintf(`{"age":%d,"gender":%q,"mood":%q}`, payload.Age, payload.Gender, payload.Mood), nil
}

func (svc *Fake) UploadCount() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.Uploads)
}

func (svc *Fake) LastUpload() (model.UploadPayload, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.Uploads) == 0 {
		return model.UploadPayload{}, false
	}
	return svc.Uploads[len(svc.Uploads)-1], true
}
