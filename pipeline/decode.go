package pipeline

import (
	"fmt"

	"text2phenotype.com/ner/vocab"
)

type mapKeyToValue struct {
	vocabulary *vocab.Vocabulary
}

func NewMapKeyToValue(v *vocab.Vocabulary) Stage {
	return &mapKeyToValue{vocabulary: v}
}

func (m *mapKeyToValue) Name() string         { return MapKeyToValueStage }
func (m *mapKeyToValue) InputColumn() string  { return PredictedLabelColumn }
func (m *mapKeyToValue) OutputColumn() string { return PredictedLabelColumn }

func (m *mapKeyToValue) Fit([]Row) (Transformer, error) {
	return m, nil
}

func (m *mapKeyToValue) Transform(rows []Row) ([]Row, error) {
	res := copyRows(rows)
	for i := range res {
		labels, err := m.vocabulary.Decode(res[i].PredictedKeys)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		res[i].PredictedLabel = labels
	}
	return res, nil
}

func (m *mapKeyToValue) Spec() (StageSpec, error) {
	return marshalSpec(m, nil)
}
