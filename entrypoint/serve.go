package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"text2phenotype.com/ner/api"
	"text2phenotype.com/ner/predict"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/worker"
)

func serveCommand(config Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve predictions over HTTP and, optionally, consume the RMQ task queue",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Value: config.RestAPIPort, Usage: "REST API port"},
			&cli.BoolFlag{Name: "worker", Value: config.WorkerActive, Usage: "start the RMQ worker"},
			&cli.StringFlag{Name: "config", Value: config.ConfigPath, Usage: "yaml file with hyperparameters for training runs"},
		},
		Action: func(c *cli.Context) error {
			current := predict.NewCurrent(nil)
			model, err := modelStore().Load(c.String("model"))
			switch {
			case err == nil:
				current.Swap(predict.NewEngine(model))
			case errors.Is(err, types.ErrModelNotFound):
				nerLogger.Warn().Str("path", c.String("model")).Msg("No local model, serving once one is trained")
			default:
				return err
			}

			if c.Bool("worker") {
				params, err := loadHyperparameters(c.String("config"), "")
				if err != nil {
					return err
				}
				go runWorker(c.Context, current, params)
			}

			apiRequest := &api.Request{Current: current}
			mux := http.NewServeMux()
			mux.HandleFunc("/predict", api.WithRequestLogger(apiRequest.Predict))
			host := fmt.Sprintf(":%s", c.String("port"))
			nerLogger.Info().Msgf("REST API on %s", host)
			return http.ListenAndServe(host, mux)
		},
	}
}

func runWorker(ctx context.Context, current *predict.Current, params types.Hyperparameters) {
	nerLogger.Info().Msg("Start NER Worker")
	for ctx.Err() == nil {
		rmqWorker, err := worker.New(current, params)
		if err != nil {
			nerLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
		}
		if current.Engine() == nil {
			if err = rmqWorker.LoadLatestModel(); err != nil {
				nerLogger.Warn().Err(err).Msg("No latest model available")
			}
		}
		if err = rmqWorker.Run(ctx); err != nil {
			nerLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}
