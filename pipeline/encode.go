package pipeline

import (
	"fmt"

	"text2phenotype.com/ner/nlp"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

// mapValueToKey replaces label strings with their vocabulary keys. Rows without labels pass through untouched.
type mapValueToKey struct {
	vocabulary *vocab.Vocabulary
}

func NewMapValueToKey(v *vocab.Vocabulary) Stage {
	return &mapValueToKey{vocabulary: v}
}

func (m *mapValueToKey) Name() string         { return MapValueToKeyStage }
func (m *mapValueToKey) InputColumn() string  { return LabelColumn }
func (m *mapValueToKey) OutputColumn() string { return LabelColumn }

func (m *mapValueToKey) Fit([]Row) (Transformer, error) {
	return m, nil
}

func (m *mapValueToKey) Transform(rows []Row) ([]Row, error) {
	res := copyRows(rows)
	for i := range res {
		if res[i].Label == nil {
			continue
		}
		tokens := nlp.CountTokens(res[i].Sentence)
		if tokens != len(res[i].Label) {
			return nil, fmt.Errorf("row %d: %w: %d token(s), %d label(s)", i, types.ErrAlignment, tokens, len(res[i].Label))
		}
		keys, err := m.vocabulary.Encode(res[i].Label)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		res[i].LabelKeys = keys
	}
	return res, nil
}

func (m *mapValueToKey) Spec() (StageSpec, error) {
	return marshalSpec(m, nil)
}
