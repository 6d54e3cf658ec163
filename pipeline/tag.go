package pipeline

import (
	"errors"
	"fmt"

	"text2phenotype.com/ner/ml"
	"text2phenotype.com/ner/nlp"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/utils"
)

type namedEntityRecognition struct {
	trainer ml.Trainer
	states  int
}

// NewNamedEntityRecognition wraps a sequence tagging trainer as a pipeline estimator. It consumes the Sentence and
// Label key columns and, once fitted, produces one PredictedLabel key per token.
func NewNamedEntityRecognition(trainer ml.Trainer, states int) Estimator {
	return &namedEntityRecognition{trainer: trainer, states: states}
}

func (n *namedEntityRecognition) Name() string { return NamedEntityRecognitionStage }

func (n *namedEntityRecognition) Fit(rows []Row) (t Transformer, err error) {
	defer func() {
		if err != nil && !errors.Is(err, types.ErrTraining) {
			err = fmt.Errorf("%w: %w", types.ErrTraining, err)
		}
	}()
	defer utils.RecoverWithError(&err)

	sequences := make([]ml.Sequence, len(rows))
	for i, row := range rows {
		if row.LabelKeys == nil {
			return nil, fmt.Errorf("%w: row %d has no %s keys", types.ErrTraining, i, LabelColumn)
		}
		sequences[i] = ml.Sequence{Tokens: nlp.Tokenize(row.Sentence), Keys: row.LabelKeys}
	}
	model, err := n.trainer.Fit(sequences, n.states)
	if err != nil {
		return nil, err
	}
	return NewTagTransformer(model), nil
}

type tagTransformer struct {
	model ml.Model
}

func NewTagTransformer(model ml.Model) Transformer {
	return &tagTransformer{model: model}
}

func (t *tagTransformer) Name() string         { return NamedEntityRecognitionStage }
func (t *tagTransformer) InputColumn() string  { return SentenceColumn }
func (t *tagTransformer) OutputColumn() string { return PredictedLabelColumn }

func (t *tagTransformer) Transform(rows []Row) ([]Row, error) {
	res := copyRows(rows)
	for i := range res {
		tokens := nlp.Tokenize(res[i].Sentence)
		keys := t.model.Apply(tokens)
		if len(keys) != len(tokens) {
			return nil, fmt.Errorf("row %d: %w: tagger returned %d key(s) for %d token(s)",
				i, types.ErrAlignment, len(keys), len(tokens))
		}
		res[i].PredictedKeys = keys
	}
	return res, nil
}

func (t *tagTransformer) Spec() (StageSpec, error) {
	crf, ok := t.model.(*ml.CRF)
	if !ok {
		return StageSpec{}, fmt.Errorf("tagger model %T can not be persisted", t.model)
	}
	return marshalSpec(t, crf)
}
