package pipeline

import (
	"math"
	"time"

	"github.com/khaledhikmat/vs-mood/model"
)

// PrimaryDetection picks index 0. There is no ranking by box size or score.
func PrimaryDetection(dets []model.Detection) (model.Detection, bool) {
	if len(dets) == 0 {
		return model.Detection{}, false
	}
	return dets[0], true
}

// ExtractMood is a stable arg-max: only a strictly greater probability
// replaces the current best, and the sentinel -1 is beaten by any real entry.
func ExtractMood(moods model.MoodDistribution) (string, bool) {
	best := model.MoodScore{Label: "", Probability: -1}
	found := false
	for _, m := range moods {
		if m.Probability > best.Probability {
			best = m
			found = true
		}
	}
	return best.Label, found
}

// ExtractAge rounds half up, so 30.5 is 31 and -0.5 is 0. The fraction is
// compared instead of adding 0.5, which would round 0.49999999999999994 up.
func ExtractAge(age float64) int {
	whole := math.Floor(age)
	if age-whole >= 0.5 {
		whole++
	}
	return int(whole)
}

func ExtractAttributes(det model.Detection, at time.Time) model.ExtractedAttributes {
	mood, ok := ExtractMood(det.Moods)
	return model.ExtractedAttributes{
		Age:       ExtractAge(det.Age),
		Gender:    string(det.Gender),
		Mood:      mood,
		HasMood:   ok,
		Timestamp: at,
	}
}
