package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitryikh/leaves"
)

// LightGBM is a binary gradient-boosted tree ensemble decoded from the JSON produced by
// Booster.dump_model(). Tree traversal is done by leaves; the sigmoid transform and
// the feature names come from the dump header.
type LightGBM struct {
	featureNames []string
	ensemble     *leaves.Ensemble
	numTrees     int
	sigmoid      float64
}

// lgbHeader holds the dump fields checked before the trees are handed to leaves.
type lgbHeader struct {
	NumClass      int               `json:"num_class"`
	Objective     string            `json:"objective"`
	AverageOutput bool              `json:"average_output"`
	FeatureNames  []string          `json:"feature_names"`
	TreeInfo      []json.RawMessage `json:"tree_info"`
}

// LoadLightGBM reads a dump_model() JSON file.
func LoadLightGBM(path string) (*LightGBM, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	model, err := ParseLightGBM(payload)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	return model, nil
}

// ParseLightGBM decodes and validates a dump_model() JSON document.
func ParseLightGBM(payload []byte) (*LightGBM, error) {
	var header lgbHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return nil, fmt.Errorf("decode lightgbm model: %w", err)
	}
	if header.NumClass > 1 {
		return nil, fmt.Errorf("lightgbm model has num_class=%d, want a binary model", header.NumClass)
	}
	coef, err := parseBinaryObjective(header.Objective)
	if err != nil {
		return nil, err
	}
	if header.AverageOutput {
		return nil, errors.New("lightgbm models with average_output are not supported")
	}
	if len(header.FeatureNames) == 0 {
		return nil, errors.New("lightgbm model has no feature_names")
	}
	if len(header.TreeInfo) == 0 {
		return nil, errors.New("lightgbm model has no trees")
	}

	// Loaded without leaves' transformation; PredictProba applies sigmoid:<c>.
	ensemble, err := leaves.LGEnsembleFromJSON(bytes.NewReader(payload), false)
	if err != nil {
		return nil, fmt.Errorf("load lightgbm trees: %w", err)
	}
	return &LightGBM{
		featureNames: header.FeatureNames,
		ensemble:     ensemble,
		numTrees:     len(header.TreeInfo),
		sigmoid:      coef,
	}, nil
}

func parseBinaryObjective(objective string) (float64, error) {
	fields := strings.Fields(objective)
	if len(fields) == 0 || fields[0] != "binary" {
		return 0, fmt.Errorf("unsupported lightgbm objective %q", objective)
	}
	coef := 1.0
	for _, field := range fields[1:] {
		value, ok := strings.CutPrefix(field, "sigmoid:")
		if !ok {
			continue
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("invalid sigmoid coefficient %q", value)
		}
		coef = parsed
	}
	return coef, nil
}

func (m *LightGBM) FeatureNames() []string {
	return m.featureNames
}

// NumTrees returns the number of trees in the ensemble.
func (m *LightGBM) NumTrees() int {
	return m.numTrees
}

// RawScore sums leaf values over all trees.
func (m *LightGBM) RawScore(features []float64) (float64, error) {
	if len(features) != len(m.featureNames) {
		return 0, ErrDimensionMismatch
	}
	return m.ensemble.PredictSingle(features, 0), nil
}

// PredictProba applies the binary sigmoid transform to the raw score.
func (m *LightGBM) PredictProba(features []float64) (float64, error) {
	score, err := m.RawScore(features)
	if err != nil {
		return 0, err
	}
	return sigmoid(m.sigmoid * score), nil
}
