package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// probabilityTolerance bounds how far classifier output may stray from a
// probability distribution before it is treated as malformed
const probabilityTolerance = 1e-6

// Classifier maps a scaled feature vector to class probabilities aligned with Classes
type Classifier interface {
	PredictProba(ctx context.Context, features []float64) ([]float64, error)
	Classes() []string
}

// Sized is implemented by classifiers that know the feature length they consume
type Sized interface {
	Inputs() int
}

// Prediction is the ranked classifier result for one window
type Prediction struct {
	Index         int       `json:"predicted_index" yaml:"predicted_index"`
	Class         string    `json:"predicted_class" yaml:"predicted_class"`
	Probabilities []float64 `json:"probabilities" yaml:"probabilities"`
	Names         []string  `json:"names" yaml:"names"`
}

// Predictor holds the collaborators needed to turn features into a prediction.
// It is built once at startup and shared by request handlers.
type Predictor struct {
	classifier Classifier
	scaler     *Scaler
	labels     LabelMap
}

// NewPredictor creates a new predictor. scaler may be nil when the classifier
// consumes raw features. labels may be nil, in which case the classifier's
// own class names are used.
func NewPredictor(classifier Classifier, scaler *Scaler, labels LabelMap) (*Predictor, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if labels == nil {
		labels = NewLabelMap(classifier.Classes())
	}
	return &Predictor{
		classifier: classifier,
		scaler:     scaler,
		labels:     labels,
	}, nil
}

// InputLength returns the feature length the scaler expects, falling back to
// the classifier's own width. It is 0 when neither declares one.
func (p *Predictor) InputLength() int {
	if p.scaler != nil {
		return p.scaler.Len()
	}
	if sized, ok := p.classifier.(Sized); ok {
		return sized.Inputs()
	}
	return 0
}

// Labels returns the label map
func (p *Predictor) Labels() LabelMap {
	return p.labels
}

// Predict scales features, queries the classifier and validates its output
func (p *Predictor) Predict(ctx context.Context, features []float64) (*Prediction, error) {
	input := features
	if p.scaler != nil {
		scaled, err := p.scaler.Transform(features)
		if err != nil {
			return nil, err
		}
		input = scaled
	}

	return Predict(ctx, p.classifier, p.labels, input)
}

// Predict queries clf and resolves the most probable class through labels.
// Any classifier failure other than cancellation is an UpstreamModelError,
// including length errors the classifier raises itself.
func Predict(ctx context.Context, clf Classifier, labels LabelMap, features []float64) (*Prediction, error) {
	probabilities, err := clf.PredictProba(ctx, features)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, common.UpstreamModel("classifier failed", err)
	}

	if err := ValidateProbabilities(probabilities, len(clf.Classes())); err != nil {
		return nil, err
	}

	index := floats.MaxIdx(probabilities)
	names := make([]string, len(probabilities))
	for i := range probabilities {
		names[i] = labels.Name(i)
	}

	return &Prediction{
		Index:         index,
		Class:         labels.Name(index),
		Probabilities: probabilities,
		Names:         names,
	}, nil
}

// ValidateProbabilities reports malformed classifier output as UpstreamModelError
func ValidateProbabilities(probabilities []float64, classes int) error {
	if len(probabilities) == 0 {
		return common.UpstreamModel("classifier returned no probabilities", nil)
	}
	if classes > 0 && len(probabilities) != classes {
		return common.UpstreamModel(
			fmt.Sprintf("classifier returned %d probabilities for %d classes", len(probabilities), classes), nil)
	}

	for i, p := range probabilities {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1+probabilityTolerance {
			return common.UpstreamModel(fmt.Sprintf("probability %d is out of range: %g", i, p), nil)
		}
	}

	if sum := floats.Sum(probabilities); math.Abs(sum-1) > probabilityTolerance {
		return common.UpstreamModel(fmt.Sprintf("probabilities sum to %g", sum), nil)
	}
	return nil
}
