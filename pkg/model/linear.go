package model

import (
	"context"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// LinearSpec is the serialised form of a multinomial logistic regression
type LinearSpec struct {
	Weights [][]float64 `json:"weights" yaml:"weights"`
	Bias    []float64   `json:"bias" yaml:"bias"`
}

// LinearModel is a softmax classifier over W·x + b
type LinearModel struct {
	classes []string
	inputs  int
	weights *mat.Dense
	bias    *mat.VecDense
}

// NewLinearModel validates the parameters and builds the weight matrix.
// weights has one row per class.
func NewLinearModel(classes []string, spec LinearSpec) (*LinearModel, error) {
	if len(classes) == 0 {
		return nil, common.InvalidConfiguration("linear model needs at least one class")
	}
	if len(spec.Weights) != len(classes) {
		return nil, common.ShapeMismatch("linear model has %d weight rows for %d classes", len(spec.Weights), len(classes))
	}
	if len(spec.Bias) != len(classes) {
		return nil, common.ShapeMismatch("linear model has %d biases for %d classes", len(spec.Bias), len(classes))
	}

	inputs := len(spec.Weights[0])
	if inputs == 0 {
		return nil, common.InvalidConfiguration("linear model has no inputs")
	}

	data := make([]float64, 0, len(classes)*inputs)
	for i, row := range spec.Weights {
		if len(row) != inputs {
			return nil, common.ShapeMismatch("weight row %d has %d entries, expected %d", i, len(row), inputs)
		}
		for _, w := range row {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, common.InvalidConfiguration("weight row %d is not finite", i)
			}
		}
		data = append(data, row...)
	}

	return &LinearModel{
		classes: slices.Clone(classes),
		inputs:  inputs,
		weights: mat.NewDense(len(classes), inputs, data),
		bias:    mat.NewVecDense(len(classes), slices.Clone(spec.Bias)),
	}, nil
}

// Classes returns the class names in probability order
func (m *LinearModel) Classes() []string {
	return slices.Clone(m.classes)
}

// Inputs returns the expected feature length
func (m *LinearModel) Inputs() int {
	return m.inputs
}

// PredictProba returns softmax(W·x + b)
func (m *LinearModel) PredictProba(ctx context.Context, features []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(features) != m.inputs {
		return nil, common.InvalidInputLength(m.inputs, len(features))
	}

	x := mat.NewVecDense(m.inputs, slices.Clone(features))

	var logits mat.VecDense
	logits.MulVec(m.weights, x)
	logits.AddVec(&logits, m.bias)

	return softmax(logits.RawVector().Data), nil
}

func softmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	out := make([]float64, len(logits))
	for i, l := range logits {
		out[i] = math.Exp(l - lse)
	}
	return out
}
