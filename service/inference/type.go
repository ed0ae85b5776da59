package inference

import (
	"context"

	"github.com/khaledhikmat/vs-mood/model"
)

// Expression labels in the order engines enumerate them.
var ExpressionLabels = []string{"neutral", "happy", "sad", "angry", "fearful", "disgusted", "surprised"}

// IService is the face engine. DetectAll always runs detection together with
// the expression and age/gender analyses.
type IService interface {
	LoadModels(ctx context.Context) error
	DetectAll(ctx context.Context, frame model.Frame) ([]model.Detection, error)
	Close() error
}
