package main

import (
	"fmt"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/urfave/cli/v2"
	"text2phenotype.com/ner/predict"
)

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "label the tokens of a sentence",
		ArgsUsage: "SENTENCE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "read sentences from a prompt"},
		},
		Action: func(c *cli.Context) error {
			model, err := modelStore().Load(c.String("model"))
			if err != nil {
				return err
			}
			engine := predict.NewEngine(model)

			if c.Bool("interactive") {
				return interactive(engine)
			}
			sentence := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(sentence) == "" {
				return fmt.Errorf("a sentence is required")
			}
			return printPrediction(engine, sentence)
		},
	}
}

func printPrediction(engine *predict.Engine, sentence string) error {
	res, err := engine.Predict(sentence)
	if err != nil {
		return err
	}
	fmt.Printf("\nPredicted labels: %s\n\n", strings.Join(res.PredictedLabels, ", "))
	fmt.Print(res.Render())
	return nil
}

func interactive(engine *predict.Engine) error {
	fmt.Println("Type a sentence, quit to exit")
	history := []string{}
	noSuggestions := func(prompt.Document) []prompt.Suggest { return nil }

	for {
		in := prompt.Input("      > ", noSuggestions,
			prompt.OptionTitle("ner predict"),
			prompt.OptionPrefixTextColor(prompt.Yellow),
			prompt.OptionHistory(history),
		)
		in = strings.TrimSpace(in)
		if in == "quit" {
			return nil
		}
		if in == "" {
			continue
		}
		history = append(history, in)
		if err := printPrediction(engine, in); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}
