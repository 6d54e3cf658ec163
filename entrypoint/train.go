package main

import (
	"context"
	"fmt"

	"github.com/gosuri/uiprogress"
	"github.com/urfave/cli/v2"
	"text2phenotype.com/ner/registry"
	"text2phenotype.com/ner/training"
)

func trainCommand(config Config) *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "train a model and save it",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "mock", Usage: "train on the development vocabulary and corpus"},
			&cli.StringFlag{Name: "config", Value: config.ConfigPath, Usage: "yaml file with hyperparameters"},
			&cli.StringFlag{Name: "overrides", Usage: "JSON merge patch applied to the hyperparameters"},
			&cli.StringFlag{Name: "vocabulary", Value: config.VocabularyPath, Usage: "label file, one label per line"},
			&cli.StringFlag{Name: "corpus", Value: config.CorpusPath, Usage: "tab separated training corpus"},
			&cli.BoolFlag{Name: "no-progress", Usage: "do not draw the progress bar"},
		},
		Action: func(c *cli.Context) error {
			params, err := loadHyperparameters(c.String("config"), c.String("overrides"))
			if err != nil {
				return err
			}

			vocabularyPath, corpusPath := c.String("vocabulary"), c.String("corpus")
			if c.Bool("mock") {
				vocabularyPath, corpusPath = "", ""
			} else if vocabularyPath == "" || corpusPath == "" {
				return fmt.Errorf("--vocabulary and --corpus are required unless --mock is set")
			}
			v, examples, err := training.LoadSources(vocabularyPath, corpusPath)
			if err != nil {
				return err
			}

			job := training.Job{
				RunID:       registry.NewRunID(),
				Vocabulary:  v,
				Corpus:      examples,
				Params:      params,
				Store:       modelStore(),
				Destination: c.String("model"),
			}
			if !c.Bool("no-progress") {
				uiprogress.Start()
				bar := uiprogress.AddBar(params.MaxEpochs)
				bar.AppendCompleted()
				bar.PrependElapsed()
				job.OnEpoch = func(int, int) { bar.Incr() }
			}

			_, report, err := training.Run(context.Background(), job)
			if !c.Bool("no-progress") {
				uiprogress.Stop()
			}
			if err != nil {
				return err
			}

			fmt.Printf("Trained on %d examples, evaluated on %d, token accuracy %.4f\n",
				report.TrainSize, report.TestSize, report.Metrics.TokenAccuracy)
			for _, label := range report.Metrics.LabelNames() {
				m := report.Metrics.Labels[label]
				fmt.Printf("  %-12s precision %.4f recall %.4f f1 %.4f support %d\n",
					label, m.Precision, m.Recall, m.F1, m.Support)
			}
			fmt.Printf("Model saved to %s (seed %d)\n", report.Destination, report.Seed)
			return nil
		},
	}
}
