package ml

import (
	"errors"
	"fmt"
	"math"
)

// Positive and negative class labels produced by Predict.
const (
	LabelStay      = 0
	LabelAttrition = 1
)

// Classifier is a pre-trained binary classifier. Implementations must be safe for
// concurrent read-only scoring once loaded.
type Classifier interface {
	// FeatureNames returns the ordered feature names the model was trained on.
	FeatureNames() []string
	// PredictProba returns the positive-class probability for one row in
	// FeatureNames order.
	PredictProba(features []float64) (float64, error)
}

// FeatureSchema is the ordered list of features a classifier consumes.
type FeatureSchema []string

// Validate reports a SchemaMismatchError for an empty schema or one with blank or
// duplicated names.
func (s FeatureSchema) Validate() error {
	if len(s) == 0 {
		return &SchemaMismatchError{Reason: "schema is empty"}
	}
	seen := make(map[string]struct{}, len(s))
	for i, name := range s {
		if name == "" {
			return &SchemaMismatchError{Reason: fmt.Sprintf("feature %d has an empty name", i)}
		}
		if _, dup := seen[name]; dup {
			return &SchemaMismatchError{Reason: fmt.Sprintf("feature %q is listed more than once", name)}
		}
		seen[name] = struct{}{}
	}
	return nil
}

// PredictionResult is the outcome of scoring one employee record.
type PredictionResult struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// Attrition reports whether the result is the positive class.
func (r PredictionResult) Attrition() bool {
	return r.Label == LabelAttrition
}

// Message renders the user-visible verdict. The probability shown is always the
// positive-class probability.
func (r PredictionResult) Message() string {
	if r.Attrition() {
		return fmt.Sprintf("High Attrition Risk! Probability: %.2f", r.Probability)
	}
	return fmt.Sprintf("Likely to Stay. Probability: %.2f", r.Probability)
}

// ArtifactLoadError is returned when a model artifact cannot be read or decoded.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// SchemaMismatchError is returned when a feature schema is unusable.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Reason
}

var (
	ErrDimensionMismatch  = errors.New("feature vector length does not match model")
	ErrInvalidProbability = errors.New("classifier returned a probability outside [0,1]")
)

// Predict scores a single encoded row. The label follows the classifier's own rule:
// argmax over [1-p, p] with ties going to the negative class, so p == 0.5 yields
// LabelStay.
func Predict(classifier Classifier, input EncodedInput) (PredictionResult, error) {
	if classifier == nil {
		return PredictionResult{}, errors.New("classifier is nil")
	}
	vector := input.Vector()
	if want := len(classifier.FeatureNames()); len(vector) != want {
		return PredictionResult{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), want)
	}
	proba, err := classifier.PredictProba(vector)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("score row: %w", err)
	}
	if math.IsNaN(proba) || proba < 0 || proba > 1 {
		return PredictionResult{}, fmt.Errorf("%w: %v", ErrInvalidProbability, proba)
	}
	return PredictionResult{Label: decide(proba), Probability: proba}, nil
}

func decide(proba float64) int {
	if proba > 1-proba {
		return LabelAttrition
	}
	return LabelStay
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
