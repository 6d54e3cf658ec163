package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/store"
	"text2phenotype.com/ner/types"
)

type Config struct {
	ModelPath      string `envconfig:"NER_MODEL_PATH" default:"Data/ner-model.zip"`
	ConfigPath     string `envconfig:"NER_CONFIG_PATH"`
	VocabularyPath string `envconfig:"NER_VOCABULARY_PATH"`
	CorpusPath     string `envconfig:"NER_CORPUS_PATH"`
	WorkerActive   bool   `envconfig:"NER_WORKER_ACTIVE" default:"false"`
	RestAPIPort    string `envconfig:"NER_REST_API_PORT" default:"10000"`
}

var nerLogger = logger.NewLogger("Main")

func main() {
	logger.SetupLogging()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		nerLogger.Fatal().Caller().Err(err).Msg("Failed to read environment")
	}

	app := &cli.App{
		Name:  "ner",
		Usage: "train and run a named entity recognition model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Value: config.ModelPath, Usage: "path of the model artifact"},
		},
		Commands: []*cli.Command{
			trainCommand(config),
			predictCommand(),
			serveCommand(config),
		},
	}
	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ner: %v\n", err)
		os.Exit(1)
	}
}

// loadHyperparameters reads the yaml file, if any, and applies the JSON merge patch overrides on top.
func loadHyperparameters(configPath string, overrides string) (types.Hyperparameters, error) {
	params := types.DefaultHyperparameters()
	var err error
	if configPath != "" {
		if params, err = types.LoadHyperparameters(configPath); err != nil {
			return params, err
		}
	}
	if overrides != "" {
		if params, err = params.ApplyOverrides([]byte(overrides)); err != nil {
			return params, err
		}
	}
	return params, nil
}

func modelStore() store.ModelStore {
	return store.NewFileStore()
}
