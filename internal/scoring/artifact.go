package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Artifact is the serialized model bundle the training side exports:
// the feature contract, fitted categorical encoders and the logistic
// regression parameters.
type Artifact struct {
	FeatureColumns []string             `json:"feature_columns"`
	Threshold      float64              `json:"threshold"`
	Encoders       map[string][]string  `json:"encoders"`
	Coefficients   map[string]float64   `json:"coefficients"`
	Intercept      float64              `json:"intercept"`
	FillValues     map[string]float64   `json:"fill_values"`
}

// LoadArtifact reads and validates a model bundle from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}
	if len(a.FeatureColumns) == 0 {
		return nil, fmt.Errorf("model artifact declares no feature columns")
	}
	for _, col := range a.FeatureColumns {
		if _, ok := a.Coefficients[col]; !ok {
			return nil, fmt.Errorf("model artifact has no coefficient for column %q", col)
		}
	}
	if a.Threshold <= 0 || a.Threshold >= 1 {
		a.Threshold = 0.5
	}
	return &a, nil
}

// Encode maps a raw categorical value through the fitted encoder for a
// column. Unseen categories encode to -1, never an error.
func (a *Artifact) Encode(column, value string) float64 {
	classes, ok := a.Encoders[column]
	if !ok {
		return -1
	}
	for i, c := range classes {
		if c == value {
			return float64(i)
		}
	}
	return -1
}

// fill substitutes the column's training-time fill value for NaN.
func (a *Artifact) fill(column string, v float64) float64 {
	if !math.IsNaN(v) {
		return v
	}
	if fv, ok := a.FillValues[column]; ok {
		return fv
	}
	return 0
}

// PredictProba runs the logistic regression over one encoded vector.
func (a *Artifact) PredictProba(values map[string]float64) float64 {
	z := a.Intercept
	for _, col := range a.FeatureColumns {
		z += a.Coefficients[col] * a.fill(col, values[col])
	}
	return 1 / (1 + math.Exp(-z))
}
