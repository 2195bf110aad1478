package ml

import (
	"math"
	"strings"
	"testing"
)

// Two numerical trees and one categorical tree, in the layout dump_model() writes.
const lightgbmFixture = `{
  "name": "tree",
  "version": "v3",
  "num_class": 1,
  "num_tree_per_iteration": 1,
  "label_index": 0,
  "max_feature_idx": 2,
  "objective": "binary sigmoid:1",
  "average_output": false,
  "feature_names": ["Age", "OverTime_Yes", "JobRoleCode"],
  "tree_info": [
    {"tree_index": 0, "num_leaves": 2, "num_cat": 0, "shrinkage": 1, "tree_structure": {
      "split_index": 0, "split_feature": 0, "split_gain": 1, "threshold": 30.5,
      "decision_type": "<=", "default_left": true, "missing_type": "None",
      "internal_value": 0, "internal_weight": 10, "internal_count": 10,
      "left_child": {"leaf_index": 0, "leaf_value": 0.4, "leaf_weight": 5, "leaf_count": 5},
      "right_child": {"leaf_index": 1, "leaf_value": -0.2, "leaf_weight": 5, "leaf_count": 5}}},
    {"tree_index": 1, "num_leaves": 2, "num_cat": 0, "shrinkage": 1, "tree_structure": {
      "split_index": 0, "split_feature": 1, "split_gain": 1, "threshold": 0.5,
      "decision_type": "<=", "default_left": true, "missing_type": "None",
      "internal_value": 0, "internal_weight": 10, "internal_count": 10,
      "left_child": {"leaf_index": 0, "leaf_value": -0.3, "leaf_weight": 5, "leaf_count": 5},
      "right_child": {"leaf_index": 1, "leaf_value": 0.5, "leaf_weight": 5, "leaf_count": 5}}},
    {"tree_index": 2, "num_leaves": 2, "num_cat": 1, "shrinkage": 1, "tree_structure": {
      "split_index": 0, "split_feature": 2, "split_gain": 1, "threshold": "1||3",
      "decision_type": "==", "default_left": false, "missing_type": "None",
      "internal_value": 0, "internal_weight": 10, "internal_count": 10,
      "left_child": {"leaf_index": 0, "leaf_value": 0.1, "leaf_weight": 5, "leaf_count": 5},
      "right_child": {"leaf_index": 1, "leaf_value": -0.1, "leaf_weight": 5, "leaf_count": 5}}}
  ]
}`

const scoreTolerance = 1e-9

func parseFixture(t *testing.T, payload string) *LightGBM {
	t.Helper()
	model, err := ParseLightGBM([]byte(payload))
	if err != nil {
		t.Fatalf("ParseLightGBM: %v", err)
	}
	return model
}

func TestLightGBMPredictProba(t *testing.T) {
	model := parseFixture(t, lightgbmFixture)
	if model.NumTrees() != 3 {
		t.Fatalf("NumTrees = %d, want 3", model.NumTrees())
	}
	if names := model.FeatureNames(); len(names) != 3 || names[1] != "OverTime_Yes" {
		t.Fatalf("unexpected feature names %v", names)
	}

	tests := []struct {
		name      string
		features  []float64
		wantScore float64
	}{
		{"young overtime listed role", []float64{25, 1, 3}, 0.4 + 0.5 + 0.1},
		{"older no overtime other role", []float64{40, 0, 2}, -0.2 - 0.3 - 0.1},
		{"young no overtime first role", []float64{30, 0, 1}, 0.4 - 0.3 + 0.1},
		{"older overtime unlisted role", []float64{31, 1, 4}, -0.2 + 0.5 - 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := model.RawScore(tt.features)
			if err != nil {
				t.Fatalf("RawScore: %v", err)
			}
			if math.Abs(score-tt.wantScore) > scoreTolerance {
				t.Fatalf("score = %v, want %v", score, tt.wantScore)
			}
			proba, err := model.PredictProba(tt.features)
			if err != nil {
				t.Fatalf("PredictProba: %v", err)
			}
			want := 1 / (1 + math.Exp(-tt.wantScore))
			if math.Abs(proba-want) > scoreTolerance {
				t.Fatalf("proba = %v, want %v", proba, want)
			}
		})
	}

	if _, err := model.RawScore([]float64{1}); err != ErrDimensionMismatch {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLightGBMSigmoidCoefficient(t *testing.T) {
	scaled := strings.Replace(lightgbmFixture, `"binary sigmoid:1"`, `"binary sigmoid:2"`, 1)
	model := parseFixture(t, scaled)
	proba, err := model.PredictProba([]float64{25, 1, 3})
	if err != nil {
		t.Fatal(err)
	}
	if want := 1 / (1 + math.Exp(-2.0)); math.Abs(proba-want) > scoreTolerance {
		t.Fatalf("proba = %v, want %v", proba, want)
	}
}

func TestLightGBMConcurrentScoring(t *testing.T) {
	model := parseFixture(t, lightgbmFixture)
	done := make(chan float64)
	for i := 0; i < 8; i++ {
		go func() {
			proba, _ := model.PredictProba([]float64{25, 1, 3})
			done <- proba
		}()
	}
	want := 1 / (1 + math.Exp(-1.0))
	for i := 0; i < 8; i++ {
		if got := <-done; math.Abs(got-want) > scoreTolerance {
			t.Fatalf("proba = %v, want %v", got, want)
		}
	}
}

func TestParseLightGBMErrors(t *testing.T) {
	leaf := `{"tree_index": 0, "num_leaves": 1, "num_cat": 0, "shrinkage": 1, "tree_structure": {"leaf_value": 1}}`
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"objective": `},
		{"multiclass", `{"num_class": 3, "objective": "multiclass num_class:3", "feature_names": ["x"], "tree_info": [` + leaf + `]}`},
		{"regression objective", `{"objective": "regression", "feature_names": ["x"], "tree_info": [` + leaf + `]}`},
		{"bad sigmoid", `{"objective": "binary sigmoid:abc", "feature_names": ["x"], "tree_info": [` + leaf + `]}`},
		{"average output", strings.Replace(lightgbmFixture, `"average_output": false`, `"average_output": true`, 1)},
		{"no feature names", `{"objective": "binary", "tree_info": [` + leaf + `]}`},
		{"no trees", `{"objective": "binary", "feature_names": ["x"], "tree_info": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLightGBM([]byte(tt.payload)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
