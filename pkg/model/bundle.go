package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// Bundle is a persisted classifier together with its scaler and class names
type Bundle struct {
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
	Version string     `json:"version,omitempty" yaml:"version,omitempty"`
	Classes []string   `json:"classes" yaml:"classes"`
	Scaler  *Scaler    `json:"scaler,omitempty" yaml:"scaler,omitempty"`
	Model   LinearSpec `json:"model" yaml:"model"`
}

// Validate checks that classes, scaler and weights agree
func (b *Bundle) Validate() error {
	if _, err := NewLinearModel(b.Classes, b.Model); err != nil {
		return err
	}
	if b.Scaler != nil {
		if err := b.Scaler.Validate(); err != nil {
			return err
		}
		if inputs := len(b.Model.Weights[0]); b.Scaler.Len() != inputs {
			return common.ShapeMismatch("scaler covers %d features, model expects %d", b.Scaler.Len(), inputs)
		}
	}
	return nil
}

// FeatureLength returns the number of features the bundle consumes
func (b *Bundle) FeatureLength() int {
	if len(b.Model.Weights) == 0 {
		return 0
	}
	return len(b.Model.Weights[0])
}

// Predictor builds the classifier and wraps it with the scaler and labels
func (b *Bundle) Predictor() (*Predictor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	clf, err := NewLinearModel(b.Classes, b.Model)
	if err != nil {
		return nil, err
	}
	return NewPredictor(clf, b.Scaler, NewLabelMap(b.Classes))
}

// Load reads a YAML or JSON bundle, chosen by file extension
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var bundle Bundle
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &bundle)
	case ".json":
		err = json.Unmarshal(data, &bundle)
	default:
		return nil, common.InvalidConfiguration("unsupported model file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}

	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model bundle %s: %w", path, err)
	}
	return &bundle, nil
}

// LoadWithRetry retries Load on I/O failures. Invalid bundles fail immediately.
func LoadWithRetry(ctx context.Context, path string, attempts int, delay time.Duration, logger logging.Logger) (*Bundle, error) {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		bundle, err := Load(path)
		if err == nil {
			logger.Debug("Model bundle loaded", logging.Fields{
				"path":     path,
				"name":     bundle.Name,
				"version":  bundle.Version,
				"classes":  len(bundle.Classes),
				"features": bundle.FeatureLength(),
				"attempt":  attempt,
			})
			return bundle, nil
		}
		lastErr = err

		var pe *common.PipelineError
		if errors.As(err, &pe) {
			return nil, err
		}

		if attempt == attempts {
			break
		}

		logger.Warn("Failed to load model bundle, retrying", logging.Fields{
			"path":     path,
			"attempt":  attempt,
			"attempts": attempts,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to load model after %d attempts: %w", attempts, lastErr)
}
