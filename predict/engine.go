// Package predict applies a fitted model to single sentences and maps the predicted labels back onto the
// whitespace tokens of the input.
package predict

import (
	"fmt"

	"github.com/rs/zerolog"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/nlp"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/utils"
)

type Engine struct {
	model     *pipeline.Model
	nerLogger zerolog.Logger
}

func NewEngine(model *pipeline.Model) *Engine {
	return &Engine{model: model, nerLogger: logger.NewLogger("Prediction Engine")}
}

func (e *Engine) Model() *pipeline.Model {
	return e.model
}

// Predict runs the chain on a batch containing only sentence. The sentence is split again on whitespace and
// zipped with the predicted labels; a count mismatch is reported instead of silently shifting labels.
func (e *Engine) Predict(sentence string) (result types.PredictionResult, err error) {
	defer utils.RecoverWithError(&err)

	rows, err := e.model.Transform([]pipeline.Row{{Sentence: sentence}})
	if err != nil {
		return result, err
	}
	tokens := nlp.Tokenize(sentence)
	labels := rows[0].PredictedLabel
	if len(labels) != len(tokens) {
		e.nerLogger.Error().Int("tokens", len(tokens)).Int("labels", len(labels)).Msg("Prediction is not aligned")
		return result, fmt.Errorf("%w: %d tokens, %d predicted labels", types.ErrAlignment, len(tokens), len(labels))
	}

	result = types.PredictionResult{Sentence: sentence, Tokens: tokens, PredictedLabels: labels}
	e.nerLogger.Debug().Int("tokens", len(tokens)).Msg("Predicted")
	return result, nil
}
