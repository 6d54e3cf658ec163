package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/registry"
	"text2phenotype.com/ner/training"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type trainMock struct {
	train  trainFunc
	config trainMockConfig
	calls  trainCall
	job    training.Job
}

type trainMockConfig struct {
	fail bool
}

type trainCall struct {
	train bool
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
}

type redisMockConfig struct {
	getRun               withValue
	getLatestArtifactKey withValue
	onRunStarted         failingMethod
	onRunExceededRetries failingMethod
	onRunFailedWithError failingMethod
	onRunComplete        failingMethod
}

type redisMockCalls struct {
	getRun               bool
	getLatestArtifactKey bool
	onRunStarted         bool
	onRunExceededRetries bool
	onRunFailedWithError bool
	onRunComplete        bool
}

type rmqMock struct {
	config     rmqMockConfig
	calls      rmqMockCalls
	response   Response
	deliveries chan amqp.Delivery
	closed     bool
}

type rmqMockConfig struct {
	sendResponse        failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	sendResponse        bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
}

type s3MockConfig struct {
	getTrainingData withValue
	saveModel       failingMethod
	loadModel       withValue
}

type s3MockCalls struct {
	getTrainingData bool
	saveModel       bool
	loadModel       bool
}

func (mock *s3Mock) close() {}

func (mock *rmqMock) close() {
	mock.closed = true
}

func (mock *redisMock) close() {}

func getTrainMock(config trainMockConfig) *trainMock {
	mock := trainMock{config: config}
	mock.train = func(ctx context.Context, job training.Job) (*pipeline.Model, training.Report, error) {
		mock.calls.train = true
		mock.job = job
		if mock.config.fail {
			return nil, training.Report{RunID: job.RunID}, errors.New("training failed")
		}
		return pipeline.NewModel(pipeline.DefaultSchema(), job.Vocabulary, nil), training.Report{RunID: job.RunID}, nil
	}
	return &mock
}

func (mock *redisMock) getRun(runID string) (*registry.TrainingRun, error) {
	mock.calls.getRun = true
	if mock.config.getRun.fail {
		return nil, errors.New("failed to get training run")
	}
	switch mock.config.getRun.returnedValue.(type) {
	case registry.TrainingRun:
		run := mock.config.getRun.returnedValue.(registry.TrainingRun)
		return &run, nil
	default:
		return &registry.TrainingRun{RunID: runID, Status: registry.RunStatusSubmitted}, nil
	}
}

func (mock *redisMock) getLatestArtifactKey() (string, error) {
	mock.calls.getLatestArtifactKey = true
	if mock.config.getLatestArtifactKey.fail {
		return "", errors.New("failed to get latest model")
	}
	return "models/ner/run-0/ner-model.zip", nil
}

func (mock *redisMock) onRunStarted(task *Task) error {
	mock.calls.onRunStarted = true
	if mock.config.onRunStarted.fail {
		return errors.New("failed to update training run on start")
	}
	return nil
}

func (mock *redisMock) onRunExceededRetries(task *Task, maxRetries int) error {
	mock.calls.onRunExceededRetries = true
	if mock.config.onRunExceededRetries.fail {
		return errors.New("failed to update training run on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onRunFailedWithError(task *Task, err error) error {
	mock.calls.onRunFailedWithError = true
	if mock.config.onRunFailedWithError.fail {
		return errors.New("failed to update training run on fail with error")
	}
	return nil
}

func (mock *redisMock) onRunComplete(task *Task, artifactKey string) error {
	mock.calls.onRunComplete = true
	if mock.config.onRunComplete.fail {
		return errors.New("failed to update training run on complete")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, nerLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return mock.deliveries
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) sendResponse(task *Task, response Response) error {
	mock.calls.sendResponse = true
	mock.response = response
	if mock.config.sendResponse.fail {
		return errors.New("failed to send response")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getTrainingData(task *Task) ([]byte, []byte, error) {
	mock.calls.getTrainingData = true
	if mock.config.getTrainingData.fail {
		return nil, nil, errors.New("mock: failed to load from s3")
	}
	switch mock.config.getTrainingData.returnedValue.(type) {
	case [2][]byte:
		data := mock.config.getTrainingData.returnedValue.([2][]byte)
		return data[0], data[1], nil
	default:
		return nil, nil, nil
	}
}

func (mock *s3Mock) saveModel(model *pipeline.Model, artifactKey string) error {
	mock.calls.saveModel = true
	if mock.config.saveModel.fail {
		return errors.New("failed to upload model")
	}
	return nil
}

func (mock *s3Mock) loadModel(artifactKey string) (*pipeline.Model, error) {
	mock.calls.loadModel = true
	if mock.config.loadModel.fail {
		return nil, errors.New("failed to download model")
	}
	if model, ok := mock.config.loadModel.returnedValue.(*pipeline.Model); ok {
		return model, nil
	}
	return pipeline.NewModel(pipeline.DefaultSchema(), nil, nil), nil
}
