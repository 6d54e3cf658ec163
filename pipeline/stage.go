package pipeline

import (
	"encoding/json"
)

const (
	NormalizeTextStage          = "NormalizeText"
	MapValueToKeyStage          = "MapValueToKey"
	NamedEntityRecognitionStage = "NamedEntityRecognition"
	MapKeyToValueStage          = "MapKeyToValue"
)

// StageSpec is the persisted form of a fitted stage.
type StageSpec struct {
	Name   string          `json:"name"`
	Input  string          `json:"input_column"`
	Output string          `json:"output_column"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Transformer is a fitted stage. Transform never modifies the rows it is given.
type Transformer interface {
	Name() string
	InputColumn() string
	OutputColumn() string
	Transform(rows []Row) ([]Row, error)
	Spec() (StageSpec, error)
}

// Estimator is a stage that still has to be fitted. Stages without learned state implement both interfaces and
// fit to themselves.
type Estimator interface {
	Name() string
	Fit(rows []Row) (Transformer, error)
}

// Stage is a stage without learned state. It can be appended to an EstimatorChain and used directly as a fitted
// stage.
type Stage interface {
	Transformer
	Fit(rows []Row) (Transformer, error)
}

type EstimatorChain []Estimator

func (chain EstimatorChain) Append(est Estimator) EstimatorChain {
	res := make(EstimatorChain, len(chain), len(chain)+1)
	copy(res, chain)
	return append(res, est)
}

// Fit fits the stages in order, feeding each fitted stage's output to the next estimator. Rows are only
// transformed as far as a later stage still needs them for fitting.
func (chain EstimatorChain) Fit(rows []Row) ([]Transformer, error) {
	lastTrainable := -1
	for i, est := range chain {
		if _, trivial := est.(Transformer); !trivial {
			lastTrainable = i
		}
	}

	transformers := make([]Transformer, 0, len(chain))
	for i, est := range chain {
		t, err := est.Fit(rows)
		if err != nil {
			return nil, err
		}
		transformers = append(transformers, t)
		if i < lastTrainable {
			if rows, err = t.Transform(rows); err != nil {
				return nil, err
			}
		}
	}
	return transformers, nil
}

func transformAll(transformers []Transformer, rows []Row) ([]Row, error) {
	var err error
	for _, t := range transformers {
		if rows, err = t.Transform(rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func marshalSpec(t Transformer, params interface{}) (StageSpec, error) {
	spec := StageSpec{
		Name:   t.Name(),
		Input:  t.InputColumn(),
		Output: t.OutputColumn(),
	}
	if params == nil {
		return spec, nil
	}
	buf, err := json.Marshal(params)
	if err != nil {
		return spec, err
	}
	spec.Params = buf
	return spec, nil
}
