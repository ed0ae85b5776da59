package cv

import (
	"context"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/khaledhikmat/vs-mood/model"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/inference"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// Age buckets of the age classifier, as midpoints in years.
var ageBucketMidpoints = []float64{1, 5, 10, 17.5, 28.5, 40.5, 50.5, 80}

// FER+ output order mapped onto inference.ExpressionLabels. "contempt" has no
// counterpart and is folded into "disgusted".
var ferplusLabels = []string{"neutral", "happy", "surprised", "sad", "angry", "disgusted", "fearful", "disgusted"}

type dnnService struct {
	params config.InferenceParameters

	// WARNING: gocv nets are not thread-safe and ticks overlap,
	// so every forward pass happens under mu
	mu         sync.Mutex
	faceNet    gocv.Net
	ageNet     gocv.Net
	genderNet  gocv.Net
	expressNet gocv.Net
	open       []*gocv.Net
	loaded     bool
}

func NewDNN(params config.InferenceParameters) inference.IService {
	return &dnnService{params: params}
}

func (svc *dnnService) LoadModels(_ context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lgr.Logger.Info("loading face models",
		slog.String("folder", svc.params.ModelsFolder),
		slog.String("openCV", gocv.Version()),
	)

	nets := []struct {
		dst    *gocv.Net
		name   string
		config string
	}{
		{&svc.faceNet, svc.params.FaceModel, svc.params.FaceConfig},
		{&svc.ageNet, svc.params.AgeModel, ""},
		{&svc.genderNet, svc.params.GenderModel, ""},
		{&svc.expressNet, svc.params.ExpressionModel, ""},
	}
	for _, n := range nets {
		net, err := svc.readNet(n.name, n.config)
		if err != nil {
			svc.closeNets()
			return err
		}
		*n.dst = net
		svc.open = append(svc.open, n.dst)
	}

	svc.loaded = true
	return nil
}

func (svc *dnnService) readNet(name, configName string) (gocv.Net, error) {
	path := filepath.Join(svc.params.ModelsFolder, name)
	if _, err := os.Stat(path); err != nil {
		return gocv.Net{}, xerrors.Errorf("model %s: %v: %w", name, err, model.ErrModelLoad)
	}

	cfgPath := ""
	if configName != "" {
		cfgPath = filepath.Join(svc.params.ModelsFolder, configName)
	}

	net := gocv.ReadNet(path, cfgPath)
	if net.Empty() {
		return gocv.Net{}, xerrors.Errorf("model %s could not be read: %w", name, model.ErrModelLoad)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return gocv.Net{}, xerrors.Errorf("model %s backend: %v: %w", name, err, model.ErrModelLoad)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return gocv.Net{}, xerrors.Errorf("model %s target: %v: %w", name, err, model.ErrModelLoad)
	}
	return net, nil
}

func (svc *dnnService) DetectAll(ctx context.Context, frame model.Frame) (dets []model.Detection, err error) {
	if frame.Image == nil {
		return nil, xerrors.Errorf("empty frame: %w", model.ErrInferenceTick)
	}

	img, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, xerrors.Errorf("converting frame: %v: %w", err, model.ErrInferenceTick)
	}
	defer img.Close()

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.loaded {
		return nil, xerrors.Errorf("models not loaded: %w", model.ErrInferenceTick)
	}

	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = xerrors.Errorf("panic in forward pass: %v: %w", r, model.ErrInferenceTick)
		}
	}()

	for _, box := range svc.detectFaces(img) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		face := img.Region(box)
		det, err := svc.analyse(face)
		face.Close()
		if err != nil {
			return nil, err
		}
		det.Box = box
		dets = append(dets, det)
	}
	return dets, nil
}

func (svc *dnnService) detectFaces(img gocv.Mat) []image.Rectangle {
	blob := gocv.BlobFromImage(img, 1.0, image.Pt(300, 300), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	svc.faceNet.SetInput(blob, "")
	out := svc.faceNet.Forward("")
	defer out.Close()

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	var boxes []image.Rectangle
	// SSD output is [1, 1, N, 7]: image id, label, confidence, left, top, right, bottom
	for i := 0; i < out.Total(); i += 7 {
		confidence := out.GetFloatAt(0, i+2)
		if confidence < svc.params.ConfidenceThreshold {
			continue
		}
		left := int(out.GetFloatAt(0, i+3) * float32(img.Cols()))
		top := int(out.GetFloatAt(0, i+4) * float32(img.Rows()))
		right := int(out.GetFloatAt(0, i+5) * float32(img.Cols()))
		bottom := int(out.GetFloatAt(0, i+6) * float32(img.Rows()))

		box := image.Rect(left, top, right, bottom).Intersect(bounds)
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes
}

func (svc *dnnService) analyse(face gocv.Mat) (model.Detection, error) {
	agesProbs, err := forward(&svc.ageNet, face, image.Pt(227, 227), false)
	if err != nil {
		return model.Detection{}, err
	}
	genderProbs, err := forward(&svc.genderNet, face, image.Pt(227, 227), false)
	if err != nil {
		return model.Detection{}, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(face, &gray, gocv.ColorBGRToGray)
	exprProbs, err := forward(&svc.expressNet, gray, image.Pt(64, 64), true)
	if err != nil {
		return model.Detection{}, err
	}

	det := model.Detection{
		Age:   expectedAge(agesProbs),
		Moods: moodDistribution(exprProbs),
	}
	det.Gender, det.GenderConfidence = genderOf(genderProbs)
	return det, nil
}

func forward(net *gocv.Net, img gocv.Mat, size image.Point, grayscale bool) ([]float64, error) {
	mean := gocv.NewScalar(78.4263377603, 87.7689143744, 114.895847746, 0)
	if grayscale {
		mean = gocv.NewScalar(0, 0, 0, 0)
	}

	blob := gocv.BlobFromImage(img, 1.0, size, mean, false, false)
	defer blob.Close()

	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()

	if out.Empty() || out.Total() == 0 {
		return nil, xerrors.Errorf("empty network output: %w", model.ErrInferenceTick)
	}

	scores := make([]float64, out.Total())
	for i := range scores {
		scores[i] = float64(out.GetFloatAt(0, i))
	}
	return softmax(scores), nil
}

func softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	sum := 0.0
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func expectedAge(probs []float64) float64 {
	age := 0.0
	for i, p := range probs {
		if i >= len(ageBucketMidpoints) {
			break
		}
		age += p * ageBucketMidpoints[i]
	}
	return age
}

func genderOf(probs []float64) (model.Gender, float64) {
	if len(probs) < 2 {
		return model.GenderUnknown, 0
	}
	if probs[1] > probs[0] {
		return model.GenderFemale, probs[1]
	}
	return model.GenderMale, probs[0]
}

// moodDistribution folds FER+ scores onto the engine's label order.
func moodDistribution(probs []float64) model.MoodDistribution {
	byLabel := map[string]float64{}
	for i, p := range probs {
		if i >= len(ferplusLabels) {
			break
		}
		byLabel[ferplusLabels[i]] += p
	}

	moods := make(model.MoodDistribution, 0, len(inference.ExpressionLabels))
	for _, label := range inference.ExpressionLabels {
		moods = append(moods, model.MoodScore{Label: label, Probability: byLabel[label]})
	}
	return moods
}

func (svc *dnnService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.closeNets()
	svc.loaded = false
	return nil
}

func (svc *dnnService) closeNets() {
	for _, net := range svc.open {
		if err := net.Close(); err != nil {
			lgr.Logger.Warn("error closing net", slog.Any("error", err))
		}
	}
	svc.open = nil
}
