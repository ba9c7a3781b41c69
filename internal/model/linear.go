package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// LinearModel is the JSON-artifact backend for Predictor. Weights are laid
// out one row per output: y[j] = intercepts[j] + sum_i weights[j][i]*x[i].
type LinearModel struct {
	name       string
	inputs     []string
	outputs    []string
	inputLen   int
	weights    [][]float64
	intercepts []float64
}

// linearArtifact is the on-disk representation of a trained linear model.
// Inputs may be omitted for models consuming flattened windows, in which
// case InputLen carries the expected vector width instead.
type linearArtifact struct {
	Kind       string      `json:"kind"`
	Inputs     []string    `json:"inputs,omitempty"`
	InputLen   int         `json:"input_len,omitempty"`
	Outputs    []string    `json:"outputs"`
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

// LoadLinearModel reads and validates a linear model artifact.
func LoadLinearModel(name, path string) (*LinearModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}

	var art linearArtifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if art.Kind != "linear" {
		return nil, fmt.Errorf("artifact %s: unsupported kind %q", path, art.Kind)
	}

	inputLen := art.InputLen
	if len(art.Inputs) > 0 {
		inputLen = len(art.Inputs)
	}
	if inputLen <= 0 {
		return nil, fmt.Errorf("artifact %s: no input width declared", path)
	}
	if len(art.Weights) != len(art.Outputs) || len(art.Intercepts) != len(art.Outputs) {
		return nil, fmt.Errorf("artifact %s: weights/intercepts do not match %d outputs", path, len(art.Outputs))
	}
	for j, row := range art.Weights {
		if len(row) != inputLen {
			return nil, fmt.Errorf("artifact %s: weight row %d has width %d, want %d", path, j, len(row), inputLen)
		}
	}

	return &LinearModel{
		name:       name,
		inputs:     art.Inputs,
		outputs:    art.Outputs,
		inputLen:   inputLen,
		weights:    art.Weights,
		intercepts: art.Intercepts,
	}, nil
}

// NewLinearModel constructs a model directly from parameters. Used by tests
// and by any caller that materializes weights without an artifact file.
func NewLinearModel(name string, inputs, outputs []string, weights [][]float64, intercepts []float64) *LinearModel {
	return &LinearModel{
		name:       name,
		inputs:     inputs,
		outputs:    outputs,
		inputLen:   len(inputs),
		weights:    weights,
		intercepts: intercepts,
	}
}

// NewWindowModel constructs a model over a flattened window of inputLen
// values, for backends whose inputs have no per-feature names.
func NewWindowModel(name string, inputLen int, outputs []string, weights [][]float64, intercepts []float64) *LinearModel {
	return &LinearModel{
		name:       name,
		outputs:    outputs,
		inputLen:   inputLen,
		weights:    weights,
		intercepts: intercepts,
	}
}

func (m *LinearModel) Name() string { return m.name }

// Inputs returns the trained input feature names, empty for flattened-window
// models that declare only a width.
func (m *LinearModel) Inputs() []string { return m.inputs }

// Outputs returns the trained output names.
func (m *LinearModel) Outputs() []string { return m.outputs }

// InputLen returns the expected input vector width.
func (m *LinearModel) InputLen() int { return m.inputLen }

func (m *LinearModel) Predict(batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for r, x := range batch {
		if len(x) != m.inputLen {
			return nil, fmt.Errorf("%w: %s expects %d inputs, got %d", ErrFeatureMismatch, m.name, m.inputLen, len(x))
		}
		y := make([]float64, len(m.outputs))
		for j := range m.outputs {
			v := m.intercepts[j]
			w := m.weights[j]
			for i, xi := range x {
				v += w[i] * xi
			}
			y[j] = v
		}
		out[r] = y
	}
	return out, nil
}
