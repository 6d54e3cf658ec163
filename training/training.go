// Package training fits the labeling pipeline on a corpus, evaluates it on the holdout split and persists the
// resulting model.
package training

import (
	"context"
	"fmt"
	"time"

	"text2phenotype.com/ner/corpus"
	"text2phenotype.com/ner/evaluation"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/ml"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/store"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/utils"
	"text2phenotype.com/ner/vocab"
)

var trainingLogger = logger.NewLogger("Training")

// Job describes one training run. Store may be nil, the fitted model is then only returned.
type Job struct {
	RunID       string
	Vocabulary  *vocab.Vocabulary
	Corpus      types.Corpus
	Params      types.Hyperparameters
	Store       store.ModelStore
	Destination string
	OnEpoch     func(epoch int, maxEpochs int)
}

type Report struct {
	RunID                 string             `json:"run_id,omitempty"`
	Seed                  int64              `json:"seed"`
	CorpusSize            int                `json:"corpus_size"`
	TrainSize             int                `json:"train_size"`
	TestSize              int                `json:"test_size"`
	Metrics               evaluation.Metrics `json:"metrics"`
	Destination           string             `json:"destination,omitempty"`
	VocabularyFingerprint uint64             `json:"vocabulary_fingerprint"`
	StartedAt             time.Time          `json:"started_at"`
	CompletedAt           time.Time          `json:"completed_at"`
}

// Fit trains a fresh model from the train split. Every call starts from scratch.
func Fit(p *pipeline.Pipeline, train types.Corpus) (model *pipeline.Model, err error) {
	defer utils.RecoverWithError(&err)

	if len(train) == 0 {
		return nil, fmt.Errorf("%w: the train split is empty", types.ErrTraining)
	}
	return p.Fit(pipeline.FromExamples(train))
}

// ResolveSeed returns seed, or a time based seed when seed is 0.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Run executes the whole job. A failed run saves nothing.
func Run(ctx context.Context, job Job) (*pipeline.Model, Report, error) {
	report := Report{RunID: job.RunID, CorpusSize: len(job.Corpus), StartedAt: time.Now().UTC()}
	runLogger := trainingLogger.With().Str("run_id", job.RunID).Logger()

	if job.Vocabulary == nil {
		return nil, report, fmt.Errorf("%w: no label vocabulary", types.ErrVocabulary)
	}
	report.VocabularyFingerprint = job.Vocabulary.Fingerprint()

	params := job.Params
	if err := params.Validate(); err != nil {
		return nil, report, err
	}
	if params.ValidateAlignment {
		if err := corpus.Validate(job.Corpus); err != nil {
			runLogger.Err(err).Msg("Corpus failed validation")
			return nil, report, err
		}
	}

	if params.Seed == 0 {
		params.Seed = ResolveSeed(0)
		runLogger.Info().Int64("seed", params.Seed).Msg("No seed configured, using a time based seed")
	}
	report.Seed = params.Seed

	split, err := evaluation.Split(job.Corpus, params.TestFraction, params.Seed)
	if err != nil {
		return nil, report, err
	}
	report.TrainSize, report.TestSize = len(split.Train), len(split.Test)
	runLogger.Info().
		Int("train", report.TrainSize).
		Int("test", report.TestSize).
		Int("labels", len(job.Vocabulary.Labels())).
		Msg("Training started")

	trainer := ml.NewPerceptronTrainer(params)
	trainer.OnEpoch = func(epoch int, maxEpochs int) {
		runLogger.Debug().Int("epoch", epoch).Int("max_epochs", maxEpochs).Msg("Epoch finished")
		if job.OnEpoch != nil {
			job.OnEpoch(epoch, maxEpochs)
		}
	}

	model, err := Fit(pipeline.BuildPipeline(job.Vocabulary, params, trainer), split.Train)
	if err != nil {
		runLogger.Err(err).Msg("Training failed")
		return nil, report, err
	}
	if err = ctx.Err(); err != nil {
		return nil, report, err
	}

	if report.Metrics, err = evaluation.Evaluate(model, split.Test); err != nil {
		runLogger.Err(err).Msg("Evaluation failed")
		return nil, report, err
	}
	runLogger.Info().
		Float64("token_accuracy", report.Metrics.TokenAccuracy).
		Int("tokens", report.Metrics.Tokens).
		Msg("Evaluated on the test split")

	if job.Store != nil {
		if err = job.Store.Save(model, job.Destination); err != nil {
			return nil, report, err
		}
		report.Destination = job.Destination
	}

	report.CompletedAt = time.Now().UTC()
	runLogger.Info().Dur("duration", report.CompletedAt.Sub(report.StartedAt)).Msg("Training completed")
	return model, report, nil
}
