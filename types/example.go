package types

import (
	"fmt"
	"strings"
)

// Example is one training sentence with one label per whitespace token.
type Example struct {
	Sentence string   `json:"sentence"`
	Labels   []string `json:"labels"`
}

type Corpus []Example

// Split is a disjoint partition of a corpus.
type Split struct {
	Train Corpus
	Test  Corpus
}

type PredictionResult struct {
	Sentence        string   `json:"sentence"`
	Tokens          []string `json:"tokens"`
	PredictedLabels []string `json:"predicted_labels"`
}

// Render pairs every token with its predicted label, one pair per line.
func (res PredictionResult) Render() string {
	var sb strings.Builder
	for i, token := range res.Tokens {
		label := ""
		if i < len(res.PredictedLabels) {
			label = res.PredictedLabels[i]
		}
		sb.WriteString(fmt.Sprintf("%s => %s\n", token, label))
	}
	return sb.String()
}
