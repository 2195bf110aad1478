package ml

import (
	"errors"
	"fmt"
)

// Supported artifact formats.
const (
	ModelTypeLightGBM     = "lightgbm_json"
	ModelTypeDecisionTree = "decision_tree"
)

type classifierLoader func(path string) (Classifier, error)

var loaders = map[string]classifierLoader{
	ModelTypeLightGBM: func(path string) (Classifier, error) {
		return LoadLightGBM(path)
	},
	ModelTypeDecisionTree: func(path string) (Classifier, error) {
		return LoadDecisionTree(path)
	},
}

// LoadClassifier reads a trusted local artifact of the given format. Every failure is
// reported as an *ArtifactLoadError.
func LoadClassifier(modelType, path string) (Classifier, error) {
	if path == "" {
		return nil, &ArtifactLoadError{Path: path, Err: errors.New("model path is empty")}
	}
	load, ok := loaders[modelType]
	if !ok {
		return nil, &ArtifactLoadError{Path: path, Err: fmt.Errorf("unsupported model type %q", modelType)}
	}
	classifier, err := load(path)
	if err != nil {
		var loadErr *ArtifactLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	return classifier, nil
}

// ExpectedSchema copies the classifier's feature names into a validated schema.
func ExpectedSchema(classifier Classifier) (FeatureSchema, error) {
	if classifier == nil {
		return nil, &SchemaMismatchError{Reason: "classifier is nil"}
	}
	names := classifier.FeatureNames()
	schema := make(FeatureSchema, len(names))
	copy(schema, names)
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

// SupportedModelTypes lists the formats LoadClassifier understands.
func SupportedModelTypes() []string {
	return []string{ModelTypeLightGBM, ModelTypeDecisionTree}
}
