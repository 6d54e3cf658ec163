package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/ner/corpus"
	"text2phenotype.com/ner/predict"
	"text2phenotype.com/ner/registry"
	"text2phenotype.com/ner/training"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/utils"
	"text2phenotype.com/ner/vocab"
)

type Message struct {
	WorkType  string          `json:"work_type"`
	RunID     string          `json:"run_id,omitempty"`
	Tid       string          `json:"tid,omitempty"`
	Sentence  string          `json:"sentence,omitempty"`
	Overrides json.RawMessage `json:"overrides,omitempty"`
}

type Response struct {
	WorkType   string                  `json:"work_type"`
	RunID      string                  `json:"run_id,omitempty"`
	Tid        string                  `json:"tid,omitempty"`
	Sender     string                  `json:"sender"`
	Status     registry.RunStatus      `json:"status,omitempty"`
	Prediction *types.PredictionResult `json:"prediction,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

type Task struct {
	delivery  *amqp.Delivery
	message   *Message
	run       *registry.TrainingRun
	report    *training.Report
	nerLogger *zerolog.Logger
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.nerLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.nerLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("body", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}

	var response Response
	switch task.message.WorkType {
	case WorkTypePredict:
		response = worker.predict(task)
	case WorkTypeTrain:
		if err = worker.processTask(task); err != nil {
			worker.rmq.rejectDelivery(delivery, &rejectLogger)
			return
		}
		response = worker.trainingResponse(task)
	}

	if err = worker.rmq.sendResponse(task, response); err != nil {
		task.nerLogger.Err(err).Msg("Got error while sending response")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.nerLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.nerLogger.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	taskLogger := worker.nerLogger.With().
		Str("work_type", message.WorkType).
		Str("run_id", message.RunID).
		Str("tid", message.Tid).
		Logger()
	task := Task{
		delivery:  delivery,
		message:   &message,
		nerLogger: &taskLogger,
	}

	switch message.WorkType {
	case WorkTypePredict:
	case WorkTypeTrain:
		if message.RunID == "" {
			return nil, errors.New("train message without run_id")
		}
		if task.run, err = worker.redis.getRun(message.RunID); err != nil {
			return nil, fmt.Errorf("failed to query training run for message, got error %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown work type %q", message.WorkType)
	}
	return &task, nil
}

// predict answers with the prediction or with the error that prevented it. Prediction failures are not retried.
func (worker *Worker) predict(task *Task) Response {
	response := Response{WorkType: WorkTypePredict, Tid: task.message.Tid, Sender: senderName}
	engine := worker.current.Engine()
	if engine == nil {
		response.Error = types.ErrModelNotFound.Error()
		task.nerLogger.Error().Msg("No model loaded, can not predict")
		return response
	}
	result, err := engine.Predict(task.message.Sentence)
	if err != nil {
		task.nerLogger.Err(err).Msg("Prediction failed")
		response.Error = err.Error()
		return response
	}
	response.Prediction = &result
	return response
}

func (worker *Worker) trainingResponse(task *Task) Response {
	response := Response{WorkType: WorkTypeTrain, RunID: task.run.RunID, Tid: task.message.Tid, Sender: senderName}
	run, err := worker.redis.getRun(task.run.RunID)
	if err != nil {
		task.nerLogger.Err(err).Msg("Failed to read run status for response")
		return response
	}
	response.Status = run.Status
	if n := len(run.ErrorMessages); n > 0 && run.Status != registry.RunStatusCompletedSuccess {
		response.Error = run.ErrorMessages[n-1]
	}
	return response
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.nerLogger.Err(err).
			Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onRunStarted(task); err != nil {
		task.nerLogger.Err(err).Msg("Failed to update run record")
		return fmt.Errorf("failed to update training run: %w", err)
	}
	if err = worker.runTraining(task); err != nil {
		task.nerLogger.Err(err).Msg("Got error while training")
		if err = worker.redis.onRunFailedWithError(task, err); err != nil {
			return err
		}
		return nil
	}
	task.nerLogger.Info().Msg("Saved model, marking run as complete")
	if err = worker.redis.onRunComplete(task, worker.artifactKey(task)); err != nil {
		task.nerLogger.Err(err).Msg("Got error while trying to mark run as complete")
		return err
	}
	return nil
}

func (worker *Worker) runTraining(task *Task) (err error) {
	defer utils.RecoverWithError(&err)
	task.nerLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.run.Attempts+1)

	vocabData, corpusData, err := worker.s3.getTrainingData(task)
	if err != nil {
		task.nerLogger.Err(err).Caller().Msg("Could not fetch training data from s3")
		return fmt.Errorf("failed fetch data from s3: %w", err)
	}
	v := vocab.Mock()
	if vocabData != nil {
		if v, err = vocab.FromReader(bytes.NewReader(vocabData)); err != nil {
			return err
		}
	}
	examples := corpus.Mock(corpus.MockSize)
	if corpusData != nil {
		if examples, err = corpus.Read(bytes.NewReader(corpusData)); err != nil {
			return err
		}
	}

	params := worker.params
	for _, overrides := range []json.RawMessage{task.run.Overrides, task.message.Overrides} {
		if len(overrides) == 0 {
			continue
		}
		if params, err = params.ApplyOverrides(overrides); err != nil {
			return err
		}
	}

	model, report, err := worker.train(context.Background(), training.Job{
		RunID:      task.run.RunID,
		Vocabulary: v,
		Corpus:     examples,
		Params:     params,
	})
	if err != nil {
		return err
	}
	task.report = &report

	task.nerLogger.Info().Msg("Finished training, saving model to s3")
	if err = worker.s3.saveModel(model, worker.artifactKey(task)); err != nil {
		task.nerLogger.Err(err).Msg("Got error while trying to save model")
		return err
	}
	worker.current.Swap(predict.NewEngine(model))
	return nil
}

func (worker *Worker) artifactKey(task *Task) string {
	return getArtifactFileKey(worker.config.ArtifactPrefix, task.run.RunID)
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	run := task.run
	taskLogger := task.nerLogger

	if run.Status.Complete() {
		taskLogger.Info().Msg("Run is already done. (might indicate issue acking message with RMQ). Sending response.")
		return false, nil
	}
	if run.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Training run has exceeded retries. Sending response.")
		err := worker.redis.onRunExceededRetries(task, worker.config.TaskMaxRetries)
		return false, err
	}
	if !run.Status.Submitted() {
		taskLogger.Info().Str("status", string(run.Status)).Msg("Retrying failed training run")
	}
	return true, nil
}
