package pipeline

import (
	"text2phenotype.com/ner/nlp"
	"text2phenotype.com/ner/types"
)

type normalizeText struct {
	normalizer *nlp.Normalizer
}

func NewNormalizeText(params types.NormalizeParams) Stage {
	return &normalizeText{normalizer: nlp.NewNormalizer(params)}
}

func (n *normalizeText) Name() string         { return NormalizeTextStage }
func (n *normalizeText) InputColumn() string  { return SentenceColumn }
func (n *normalizeText) OutputColumn() string { return SentenceColumn }

func (n *normalizeText) Fit([]Row) (Transformer, error) {
	return n, nil
}

func (n *normalizeText) Transform(rows []Row) ([]Row, error) {
	res := copyRows(rows)
	for i := range res {
		res[i].Sentence = n.normalizer.Normalize(res[i].Sentence)
	}
	return res, nil
}

func (n *normalizeText) Spec() (StageSpec, error) {
	return marshalSpec(n, n.normalizer.Params())
}
