package collector

import (
	"context"

	"github.com/khaledhikmat/vs-mood/model"
)

// IService is the remote collector as seen from the detector.
type IService interface {
	// GetInterval returns the upload interval in seconds.
	GetInterval(ctx context.Context) (float64, error)
	SetInterval(ctx context.Context, seconds float64) error
	// Upload sends one payload and returns the collector's response body.
	Upload(ctx context.Context, payload model.UploadPayload) (string, error)
}
