package pipeline

import (
	"text2phenotype.com/ner/ml"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

// Pipeline is the unfitted chain together with the vocabulary and schema it was built for.
type Pipeline struct {
	Estimators EstimatorChain
	Vocabulary *vocab.Vocabulary
	Schema     Schema
}

// BuildPipeline assembles normalize -> encode -> tag -> decode. The chain only depends on its arguments, so
// building twice with the same vocabulary and parameters yields the same chain.
func BuildPipeline(v *vocab.Vocabulary, params types.Hyperparameters, trainer ml.Trainer) *Pipeline {
	chain := EstimatorChain{}.
		Append(NewNormalizeText(params.Normalize)).
		Append(NewMapValueToKey(v)).
		Append(NewNamedEntityRecognition(trainer, v.Len())).
		Append(NewMapKeyToValue(v))

	return &Pipeline{
		Estimators: chain,
		Vocabulary: v,
		Schema:     DefaultSchema(),
	}
}

func (p *Pipeline) Fit(rows []Row) (*Model, error) {
	transformers, err := p.Estimators.Fit(rows)
	if err != nil {
		return nil, err
	}
	return NewModel(p.Schema, p.Vocabulary, transformers), nil
}
