package worker

import (
	"context"
	"reflect"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/ner/corpus"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/ml"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/predict"
	"text2phenotype.com/ner/registry"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

const trainMessage = `{"work_type": "train", "run_id": "run-1", "tid": "t-1"}`

type mockedClientsConfig struct {
	rmqMockConfig
	redisMockConfig
	s3MockConfig
	trainMockConfig
}

type mockedClients struct {
	redis *redisMock
	rmq   *rmqMock
	s3    *s3Mock
	train *trainMock
}

type methodsCalls struct {
	redis redisMockCalls
	rmq   rmqMockCalls
	s3    s3MockCalls
	train trainCall
}

func testConfiguration(t *testing.T, config mockedClientsConfig, expectedCalls methodsCalls) *mockedClients {
	worker, mocks := configureWorker(config, predict.NewCurrent(nil))
	worker.processMessage(&amqp.Delivery{
		Body: []byte(trainMessage),
	})
	calls := methodsCalls{
		redis: mocks.redis.calls,
		rmq:   mocks.rmq.calls,
		s3:    mocks.s3.calls,
		train: mocks.train.calls,
	}
	if !reflect.DeepEqual(calls, expectedCalls) {
		t.Errorf("Got unexpected called methods set.\nExpected:\n%+v\nGot:\n%+v", expectedCalls, calls)
	}
	return mocks
}

func configureWorker(config mockedClientsConfig, current *predict.Current) (*Worker, *mockedClients) {
	redis := &redisMock{config: config.redisMockConfig}
	s3 := &s3Mock{config: config.s3MockConfig}
	rmq := &rmqMock{config: config.rmqMockConfig}
	train := getTrainMock(config.trainMockConfig)

	nerLogger := logger.NewLogger("Test Worker")

	return &Worker{
			config:    Config{TaskMaxRetries: 3, ArtifactPrefix: "models/ner"},
			params:    types.DefaultHyperparameters(),
			redis:     redis,
			s3:        s3,
			rmq:       rmq,
			nerLogger: &nerLogger,
			current:   current,
			train:     train.train,
		}, &mockedClients{
			redis: redis,
			rmq:   rmq,
			s3:    s3,
			train: train,
		}
}

func TestWorker(t *testing.T) {
	t.Run("Successful", testSuccessfulRun)
	t.Run("Successful with overrides", testSuccessfulRunWithOverrides)
	t.Run("Successful with uploaded corpus", testSuccessfulRunWithUploadedData)
	t.Run("Failed to get training run", testGetRunFailed)
	t.Run("Already complete with success", testAlreadyCompletedSuccessfully)
	t.Run("Already complete with failure", testAlreadyCompletedWithFailure)
	t.Run("Retry of failed run", testRetryFailedRun)
	t.Run("Exceeded attempts", testExceededAttempts)
	t.Run("Failed to update run in onRunStarted", testFailedToUpdateOnRunStarted)
	t.Run("Failed to load data from S3", testFailedToFetchFromS3)
	t.Run("Failed due to malformed vocabulary", testMalformedVocabulary)
	t.Run("Failed due to training error", testTrainingError)
	t.Run("Failed due to invalid overrides", testInvalidOverrides)
	t.Run("Failed to update run in onRunFailedWithError", testFailedToUpdateOnRunFailedWithError)
	t.Run("Failed to update run in onRunComplete", testFailedToUpdateOnRunComplete)
	t.Run("Failed to save model to S3", testFailedToSaveToS3)
	t.Run("Failed to acknowledge delivery", testFailedAckDelivery)
	t.Run("Failed to send response", testFailedSendResponse)
	t.Run("Malformed message", testMalformedMessage)
	t.Run("Unknown work type", testUnknownWorkType)
}

var successfulCalls = methodsCalls{
	redis: redisMockCalls{getRun: true, onRunStarted: true, onRunComplete: true},
	rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
	s3:    s3MockCalls{getTrainingData: true, saveModel: true},
	train: trainCall{true},
}

func testSuccessfulRun(t *testing.T) {
	mocks := testConfiguration(t, mockedClientsConfig{}, successfulCalls)
	require.Equal(t, "run-1", mocks.train.job.RunID)
	require.Len(t, mocks.train.job.Corpus, corpus.MockSize)
	require.Equal(t, vocab.Mock().Labels(), mocks.train.job.Vocabulary.Labels())
	require.Equal(t, WorkTypeTrain, mocks.rmq.response.WorkType)
	require.Equal(t, "run-1", mocks.rmq.response.RunID)
	require.Equal(t, "t-1", mocks.rmq.response.Tid)
	require.Equal(t, senderName, mocks.rmq.response.Sender)
}

func testSuccessfulRunWithOverrides(t *testing.T) {
	mocks := testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{
				getRun: withValue{returnedValue: registry.TrainingRun{
					RunID:     "run-1",
					Status:    registry.RunStatusSubmitted,
					Overrides: []byte(`{"max_epochs": 5, "seed": 11}`),
				}},
			},
		},
		successfulCalls,
	)
	require.Equal(t, 5, mocks.train.job.Params.MaxEpochs)
	require.Equal(t, int64(11), mocks.train.job.Params.Seed)
	require.Equal(t, types.DefaultBatchSize, mocks.train.job.Params.BatchSize)
}

func testSuccessfulRunWithUploadedData(t *testing.T) {
	mocks := testConfiguration(
		t,
		mockedClientsConfig{
			s3MockConfig: s3MockConfig{getTrainingData: withValue{returnedValue: [2][]byte{
				[]byte("ORG\nPERSON\n"),
				[]byte("Alice works at Acme\tPERSON\t0\t0\tORG\n"),
			}}},
		},
		successfulCalls,
	)
	require.Equal(t, []string{"ORG", "PERSON"}, mocks.train.job.Vocabulary.Labels())
	require.Equal(t, types.Corpus{{Sentence: "Alice works at Acme", Labels: []string{"PERSON", "0", "0", "ORG"}}},
		mocks.train.job.Corpus)
}

func testAlreadyCompletedSuccessfully(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{
				getRun: withValue{returnedValue: registry.TrainingRun{RunID: "run-1", Status: registry.RunStatusCompletedSuccess}},
			},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
		},
	)
}

func testAlreadyCompletedWithFailure(t *testing.T) {
	mocks := testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{
				getRun: withValue{returnedValue: registry.TrainingRun{
					RunID:         "run-1",
					Status:        registry.RunStatusCompletedFailure,
					ErrorMessages: []string{"corpus is broken"},
				}},
			},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
		},
	)
	require.Equal(t, registry.RunStatusCompletedFailure, mocks.rmq.response.Status)
	require.Equal(t, "corpus is broken", mocks.rmq.response.Error)
}

func testRetryFailedRun(t *testing.T) {
	mocks := testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{
				getRun: withValue{returnedValue: registry.TrainingRun{
					RunID:         "run-1",
					Status:        registry.RunStatusFailed,
					Attempts:      1,
					ErrorMessages: []string{"s3 unavailable"},
				}},
			},
		},
		successfulCalls,
	)
	require.Equal(t, "run-1", mocks.train.job.RunID)
}

func testExceededAttempts(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{
				getRun: withValue{returnedValue: registry.TrainingRun{RunID: "run-1", Attempts: 3}},
			},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunExceededRetries: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
		},
	)
}

func testFailedToUpdateOnRunStarted(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{onRunStarted: failingMethod{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true},
			rmq:   rmqMockCalls{rejectDelivery: true},
		},
	)
}

func testFailedToFetchFromS3(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			s3MockConfig: s3MockConfig{getTrainingData: withValue{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunFailedWithError: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
			s3:    s3MockCalls{getTrainingData: true},
		},
	)
}

func testMalformedVocabulary(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			s3MockConfig: s3MockConfig{getTrainingData: withValue{returnedValue: [2][]byte{[]byte("\n\n"), nil}}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunFailedWithError: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
			s3:    s3MockCalls{getTrainingData: true},
		},
	)
}

func testTrainingError(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			trainMockConfig: trainMockConfig{fail: true},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunFailedWithError: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
			s3:    s3MockCalls{getTrainingData: true},
			train: trainCall{true},
		},
	)
}

func testInvalidOverrides(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{
				getRun: withValue{returnedValue: registry.TrainingRun{
					RunID:     "run-1",
					Overrides: []byte(`{"batch_size": 0}`),
				}},
			},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunFailedWithError: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
			s3:    s3MockCalls{getTrainingData: true},
		},
	)
}

func testFailedToUpdateOnRunFailedWithError(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			trainMockConfig: trainMockConfig{fail: true},
			redisMockConfig: redisMockConfig{onRunFailedWithError: failingMethod{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunFailedWithError: true},
			rmq:   rmqMockCalls{rejectDelivery: true},
			s3:    s3MockCalls{getTrainingData: true},
			train: trainCall{true},
		},
	)
}

func testFailedToUpdateOnRunComplete(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{onRunComplete: failingMethod{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunComplete: true},
			rmq:   rmqMockCalls{rejectDelivery: true},
			s3:    s3MockCalls{getTrainingData: true, saveModel: true},
			train: trainCall{true},
		},
	)
}

func testFailedToSaveToS3(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			s3MockConfig: s3MockConfig{saveModel: failingMethod{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunFailedWithError: true},
			rmq:   rmqMockCalls{sendResponse: true, acknowledgeDelivery: true},
			s3:    s3MockCalls{getTrainingData: true, saveModel: true},
			train: trainCall{true},
		},
	)
}

func testFailedAckDelivery(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			rmqMockConfig: rmqMockConfig{acknowledgeDelivery: failingMethod{fail: true}},
		},
		successfulCalls,
	)
}

func testFailedSendResponse(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			rmqMockConfig: rmqMockConfig{sendResponse: failingMethod{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true, onRunStarted: true, onRunComplete: true},
			rmq:   rmqMockCalls{sendResponse: true, rejectDelivery: true},
			s3:    s3MockCalls{getTrainingData: true, saveModel: true},
			train: trainCall{true},
		},
	)
}

func testGetRunFailed(t *testing.T) {
	testConfiguration(
		t,
		mockedClientsConfig{
			redisMockConfig: redisMockConfig{getRun: withValue{fail: true}},
		},
		methodsCalls{
			redis: redisMockCalls{getRun: true},
			rmq:   rmqMockCalls{rejectDelivery: true},
		},
	)
}

func testMalformedMessage(t *testing.T) {
	worker, mocks := configureWorker(mockedClientsConfig{}, predict.NewCurrent(nil))
	worker.processMessage(&amqp.Delivery{Body: []byte("{not json")})
	require.Equal(t, rmqMockCalls{rejectDelivery: true}, mocks.rmq.calls)
}

func testUnknownWorkType(t *testing.T) {
	worker, mocks := configureWorker(mockedClientsConfig{}, predict.NewCurrent(nil))
	worker.processMessage(&amqp.Delivery{Body: []byte(`{"work_type": "summarize"}`)})
	require.Equal(t, rmqMockCalls{rejectDelivery: true}, mocks.rmq.calls)
	require.Equal(t, redisMockCalls{}, mocks.redis.calls)
}

func TestSuccessfulRunSwapsModel(t *testing.T) {
	current := predict.NewCurrent(nil)
	worker, _ := configureWorker(mockedClientsConfig{}, current)
	worker.processMessage(&amqp.Delivery{Body: []byte(trainMessage)})
	require.NotNil(t, current.Engine())
}

func fitMock(t *testing.T) *pipeline.Model {
	params := types.DefaultHyperparameters()
	params.Seed = 5
	model, err := pipeline.BuildPipeline(vocab.Mock(), params, ml.NewPerceptronTrainer(params)).
		Fit(pipeline.FromExamples(corpus.Mock(20)))
	require.NoError(t, err)
	return model
}

func TestPredictMessage(t *testing.T) {
	worker, mocks := configureWorker(mockedClientsConfig{}, predict.NewCurrent(predict.NewEngine(fitMock(t))))
	worker.processMessage(&amqp.Delivery{
		Body: []byte(`{"work_type": "predict", "tid": "t-2", "sentence": "Alice and Bob live in London Uk"}`),
	})

	require.Equal(t, rmqMockCalls{sendResponse: true, acknowledgeDelivery: true}, mocks.rmq.calls)
	require.Equal(t, redisMockCalls{}, mocks.redis.calls)
	response := mocks.rmq.response
	require.Equal(t, WorkTypePredict, response.WorkType)
	require.Equal(t, "t-2", response.Tid)
	require.Empty(t, response.Error)
	require.NotNil(t, response.Prediction)
	require.Len(t, response.Prediction.PredictedLabels, 7)
}

func TestPredictMessageWithoutModel(t *testing.T) {
	worker, mocks := configureWorker(mockedClientsConfig{}, predict.NewCurrent(nil))
	worker.processMessage(&amqp.Delivery{Body: []byte(`{"work_type": "predict", "sentence": "Alice"}`)})

	require.Equal(t, rmqMockCalls{sendResponse: true, acknowledgeDelivery: true}, mocks.rmq.calls)
	require.Nil(t, mocks.rmq.response.Prediction)
	require.Equal(t, types.ErrModelNotFound.Error(), mocks.rmq.response.Error)
}

func TestLoadLatestModel(t *testing.T) {
	current := predict.NewCurrent(nil)
	model := fitMock(t)
	worker, mocks := configureWorker(mockedClientsConfig{
		s3MockConfig: s3MockConfig{loadModel: withValue{returnedValue: model}},
	}, current)

	require.NoError(t, worker.LoadLatestModel())
	require.True(t, mocks.redis.calls.getLatestArtifactKey)
	require.True(t, mocks.s3.calls.loadModel)
	require.Same(t, model, current.Engine().Model())

	worker, _ = configureWorker(mockedClientsConfig{
		redisMockConfig: redisMockConfig{getLatestArtifactKey: withValue{fail: true}},
	}, predict.NewCurrent(nil))
	require.Error(t, worker.LoadLatestModel())
}

func TestArtifactFileKey(t *testing.T) {
	require.Equal(t, "models/ner/run-1/ner-model.zip", getArtifactFileKey("models/ner", "run-1"))
}

func TestRunProcessesDeliveriesUntilCancelled(t *testing.T) {
	worker, mocks := configureWorker(mockedClientsConfig{}, predict.NewCurrent(nil))
	mocks.rmq.deliveries = make(chan amqp.Delivery)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- worker.Run(ctx)
	}()

	mocks.rmq.deliveries <- amqp.Delivery{Body: []byte(trainMessage)}
	cancel()
	require.NoError(t, <-done)

	require.True(t, mocks.train.calls.train)
	require.True(t, mocks.rmq.calls.acknowledgeDelivery)
	require.Equal(t, "run-1", mocks.rmq.response.RunID)
	require.True(t, mocks.rmq.closed)
}
