package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DecisionTree is a single binary tree stored as a flat node array. Leaves carry the
// positive-class probability.
type DecisionTree struct {
	featureNames []string
	nodes        []TreeNode
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	IsLeaf      bool    `json:"is_leaf"`
	Probability float64 `json:"probability"`
}

type decisionTreeArtifact struct {
	FeatureNames []string   `json:"feature_names"`
	Nodes        []TreeNode `json:"nodes"`
}

// NewDecisionTree validates nodes against the feature list.
func NewDecisionTree(featureNames []string, nodes []TreeNode) (*DecisionTree, error) {
	if len(nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			if node.Probability < 0 || node.Probability > 1 {
				return nil, fmt.Errorf("node %d: leaf probability %v outside [0,1]", i, node.Probability)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(featureNames) {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if node.LeftChild <= i || node.LeftChild >= len(nodes) || node.RightChild <= i || node.RightChild >= len(nodes) {
			return nil, fmt.Errorf("node %d: invalid child pointers %d/%d", i, node.LeftChild, node.RightChild)
		}
	}
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return &DecisionTree{featureNames: names, nodes: nodes}, nil
}

// LoadDecisionTree reads a JSON tree artifact.
func LoadDecisionTree(path string) (*DecisionTree, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	var artifact decisionTreeArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: fmt.Errorf("decode decision tree: %w", err)}
	}
	tree, err := NewDecisionTree(artifact.FeatureNames, artifact.Nodes)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	return tree, nil
}

func (dt *DecisionTree) FeatureNames() []string {
	return dt.featureNames
}

// PredictProba walks the tree; values <= threshold go left. Children always point
// forward, so the walk terminates.
func (dt *DecisionTree) PredictProba(features []float64) (float64, error) {
	if len(features) != len(dt.featureNames) {
		return 0, ErrDimensionMismatch
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Probability, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// Save writes the tree in the format LoadDecisionTree reads.
func (dt *DecisionTree) Save(path string) error {
	payload, err := json.Marshal(decisionTreeArtifact{FeatureNames: dt.featureNames, Nodes: dt.nodes})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
