package emitter

import (
	"context"

	"github.com/khaledhikmat/vs-mood/model"
)

// IService receives every change of the published attributes.
type IService interface {
	Publish(ctx context.Context, attrs model.ExtractedAttributes) error
	Close() error
}

type noopService struct{}

func NewNoop() IService {
	return noopService{}
}

func (noopService) Publish(context.Context, model.ExtractedAttributes) error { return nil }

func (noopService) Close() error { return nil }
