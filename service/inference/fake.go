package inference

import (
	"context"
	"image"
	"math/rand"
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
	"golang.org/x/xerrors"
)

// Step is one scripted DetectAll answer.
type Step struct {
	Detections []model.Detection
	Err        error
}

// Fake replays Script in a loop. With an empty script it invents one face per
// frame so the pipeline can be exercised without models.
type Fake struct {
	mu      sync.Mutex
	LoadErr error
	Script  []Step
	calls   int
	loaded  bool
	rnd     *rand.Rand
}

func NewFake() *Fake {
	return &Fake{rnd: rand.New(rand.NewSource(1))}
}

func (svc *Fake) LoadModels(_ context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.LoadErr != nil {
		return xerrors.Errorf("%v: %w", svc.LoadErr, model.ErrModelLoad)
	}
	svc.loaded = true
	return nil
}

func (svc *Fake) DetectAll(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.loaded {
		return nil, xerrors.Errorf("models not loaded: %w", model.ErrInferenceTick)
	}

	call := svc.calls
	svc.calls++

	if len(svc.Script) > 0 {
		step := svc.Script[call%len(svc.Script)]
		if step.Err != nil {
			return nil, xerrors.Errorf("%v: %w", step.Err, model.ErrInferenceTick)
		}
		return step.Detections, nil
	}

	return []model.Detection{svc.invent(frame)}, nil
}

func (svc *Fake) Calls() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.calls
}

func (svc *Fake) Close() error {
	return nil
}

func (svc *Fake) invent(frame model.Frame) model.Detection {
	if svc.rnd == nil {
		svc.rnd = rand.New(rand.NewSource(1))
	}

	w, h := frame.Width, frame.Height
	if w == 0 || h == 0 {
		w, h = 640, 480
	}

	moods := make(model.MoodDistribution, len(ExpressionLabels))
	total := 0.0
	for i, label := range ExpressionLabels {
		p := svc.rnd.Float64()
		moods[i] = model.MoodScore{Label: label, Probability: p}
		total += p
	}
	for i := range moods {
		moods[i].Probability /= total
	}

	gender := model.GenderMale
	if svc.rnd.Intn(2) == 1 {
		gender = model.GenderFemale
	}

	return model.Detection{
		Age:              18 + svc.rnd.Float64()*50,
		Gender:           gender,
		GenderConfidence: 0.5 + svc.rnd.Float64()/2,
		Moods:            moods,
		Box:              image.Rect(w/4, h/4, w*3/4, h*3/4),
		Score:            0.9,
	}
}
