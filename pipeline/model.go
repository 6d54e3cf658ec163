package pipeline

import (
	"encoding/json"
	"fmt"

	"text2phenotype.com/ner/ml"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

// Model is a fitted, read only transformation chain. It is safe for concurrent use.
type Model struct {
	schema       Schema
	vocabulary   *vocab.Vocabulary
	transformers []Transformer
}

func NewModel(schema Schema, v *vocab.Vocabulary, transformers []Transformer) *Model {
	ts := make([]Transformer, len(transformers))
	copy(ts, transformers)
	return &Model{schema: schema, vocabulary: v, transformers: ts}
}

func (m *Model) Schema() Schema {
	return m.schema
}

func (m *Model) Vocabulary() *vocab.Vocabulary {
	return m.vocabulary
}

func (m *Model) Transformers() []Transformer {
	res := make([]Transformer, len(m.transformers))
	copy(res, m.transformers)
	return res
}

func (m *Model) Transform(rows []Row) ([]Row, error) {
	return transformAll(m.transformers, rows)
}

func (m *Model) Specs() ([]StageSpec, error) {
	specs := make([]StageSpec, len(m.transformers))
	for i, t := range m.transformers {
		spec, err := t.Spec()
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", t.Name(), err)
		}
		specs[i] = spec
	}
	return specs, nil
}

var stageOrder = []string{NormalizeTextStage, MapValueToKeyStage, NamedEntityRecognitionStage, MapKeyToValueStage}

// Restore rebuilds a fitted model from its persisted stage specs. The specs must describe the chain built by
// BuildPipeline and the schema must contain the default columns.
func Restore(specs []StageSpec, schema Schema, v *vocab.Vocabulary) (*Model, error) {
	if err := schema.Check(DefaultSchema()); err != nil {
		return nil, err
	}
	if len(specs) != len(stageOrder) {
		return nil, fmt.Errorf("expected %d stages, got %d", len(stageOrder), len(specs))
	}

	transformers := make([]Transformer, len(specs))
	for i, spec := range specs {
		if spec.Name != stageOrder[i] {
			return nil, fmt.Errorf("stage %d is %q, expected %q", i, spec.Name, stageOrder[i])
		}
		var t Transformer
		switch spec.Name {
		case NormalizeTextStage:
			var params types.NormalizeParams
			if err := json.Unmarshal(spec.Params, &params); err != nil {
				return nil, fmt.Errorf("stage %s: %w", spec.Name, err)
			}
			t = NewNormalizeText(params)
		case MapValueToKeyStage:
			t = NewMapValueToKey(v)
		case NamedEntityRecognitionStage:
			var crf ml.CRF
			if err := json.Unmarshal(spec.Params, &crf); err != nil {
				return nil, fmt.Errorf("stage %s: %w", spec.Name, err)
			}
			if !crf.Valid() {
				return nil, fmt.Errorf("stage %s: inconsistent weight tables", spec.Name)
			}
			if crf.States != v.Len() {
				return nil, fmt.Errorf("stage %s: model has %d states, vocabulary has %d keys",
					spec.Name, crf.States, v.Len())
			}
			t = NewTagTransformer(&crf)
		case MapKeyToValueStage:
			t = NewMapKeyToValue(v)
		}
		if t.InputColumn() != spec.Input || t.OutputColumn() != spec.Output {
			return nil, fmt.Errorf("stage %s: columns %s -> %s do not match %s -> %s",
				spec.Name, spec.Input, spec.Output, t.InputColumn(), t.OutputColumn())
		}
		transformers[i] = t
	}
	return NewModel(schema, v, transformers), nil
}
