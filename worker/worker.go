package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/predict"
	"text2phenotype.com/ner/registry"
	"text2phenotype.com/ner/rmq"
	"text2phenotype.com/ner/s3client"
	"text2phenotype.com/ner/store"
	"text2phenotype.com/ner/training"
	"text2phenotype.com/ner/types"
)

type Config struct {
	TaskMaxRetries int    `envconfig:"MDL_COMN_RETRY_TASK_COUNT_MAX" default:"3"`
	ArtifactPrefix string `envconfig:"NER_ARTIFACT_PREFIX" default:"models/ner"`
}

type trainFunc func(ctx context.Context, job training.Job) (*pipeline.Model, training.Report, error)

type Worker struct {
	config    Config
	params    types.Hyperparameters
	redis     redisTransactions
	s3        s3Transactions
	rmq       rmqTransactions
	nerLogger *zerolog.Logger
	current   *predict.Current
	train     trainFunc
}

// New connects to RMQ, S3 and Redis. Predictions are served by current, which successful training runs update.
func New(current *predict.Current, params types.Hyperparameters) (*Worker, error) {
	nerLogger := logger.NewLogger("NER Worker")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		nerLogger.Err(err).Msg("Invalid worker environment")
		return nil, err
	}

	worker := &Worker{
		config:    config,
		params:    params,
		nerLogger: &nerLogger,
		current:   current,
		train:     training.Run,
	}
	connections := []struct {
		name    string
		connect func() error
	}{
		{"rmq", worker.connectRMQ},
		{"s3", worker.connectS3},
		{"redis", worker.connectRedis},
	}
	for _, c := range connections {
		if err := worker.connect(c.name, c.connect); err != nil {
			worker.Close()
			return nil, err
		}
	}
	return worker, nil
}

// LoadLatestModel serves the artifact of the last successful training run.
func (worker *Worker) LoadLatestModel() error {
	artifactKey, err := worker.redis.getLatestArtifactKey()
	if err != nil {
		return err
	}
	model, err := worker.s3.loadModel(artifactKey)
	if err != nil {
		worker.nerLogger.Err(err).Str("key", artifactKey).Msg("Failed to load latest model")
		return err
	}
	worker.current.Swap(predict.NewEngine(model))
	worker.nerLogger.Info().Str("key", artifactKey).Msg("Serving latest model")
	return nil
}

// Run consumes the task queue until ctx is done and waits for the messages being processed before closing the
// clients. A broken RMQ connection is replaced once per failure; Run returns the error when that is not possible.
func (worker *Worker) Run(ctx context.Context) error {
	var inFlight sync.WaitGroup
	defer func() {
		inFlight.Wait()
		worker.Close()
	}()

	for {
		var lost error
		select {
		case <-ctx.Done():
			worker.nerLogger.Info().Msg("Stopping, waiting for messages in flight")
			return nil
		case delivery, ok := <-worker.rmq.getDeliveriesCh():
			if !ok {
				lost = errors.New("deliveries channel closed")
				break
			}
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				worker.processMessage(&delivery)
			}()
			continue
		case amqpErr := <-worker.rmq.getReqChanErrorsCh():
			if amqpErr == nil {
				continue
			}
			lost = fmt.Errorf("task queue connection: %w", amqpErr)
		case amqpErr := <-worker.rmq.getRespChanErrorsCh():
			if amqpErr == nil {
				continue
			}
			lost = fmt.Errorf("response queue connection: %w", amqpErr)
		}

		worker.nerLogger.Err(lost).Msg("Lost RMQ connection")
		if err := worker.connect("rmq", worker.connectRMQ); err != nil {
			return fmt.Errorf("%v, reconnecting failed: %w", lost, err)
		}
	}
}

func (worker *Worker) Close() {
	if worker.redis != nil {
		worker.redis.close()
	}
	if worker.s3 != nil {
		worker.s3.close()
	}
	if worker.rmq != nil {
		worker.rmq.close()
	}
}

func (worker *Worker) connect(name string, connect func() error) error {
	if err := connect(); err != nil {
		worker.nerLogger.Err(err).Str("client", name).Msg("Could not connect")
		return err
	}
	worker.nerLogger.Info().Str("client", name).Msg("Connected")
	return nil
}

// connectRMQ, connectS3 and connectRedis replace the client only after the new one is ready.
func (worker *Worker) connectRMQ() error {
	client, err := rmq.NewClient()
	if err != nil {
		return err
	}
	if worker.rmq != nil {
		worker.rmq.close()
	}
	worker.rmq = &rmqClientWrapper{client}
	return nil
}

func (worker *Worker) connectS3() error {
	client, err := s3client.New()
	if err != nil {
		return err
	}
	if worker.s3 != nil {
		worker.s3.close()
	}
	worker.s3 = &s3ClientWrapper{s3Client: client, models: store.NewS3Store(client)}
	return nil
}

func (worker *Worker) connectRedis() error {
	runs, err := registry.NewRuns()
	if err != nil {
		return err
	}
	if worker.redis != nil {
		worker.redis.close()
	}
	worker.redis = &redisClientWrapper{runs}
	return nil
}
