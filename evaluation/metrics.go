package evaluation

import (
	"sort"

	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/types"
)

type LabelMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

type Metrics struct {
	Examples      int                     `json:"examples"`
	Tokens        int                     `json:"tokens"`
	TokenAccuracy float64                 `json:"token_accuracy"`
	Labels        map[string]LabelMetrics `json:"labels"`
}

// LabelNames returns the evaluated labels in lexical order.
func (m Metrics) LabelNames() []string {
	names := make([]string, 0, len(m.Labels))
	for name := range m.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type counts struct {
	truePositive  int
	falsePositive int
	falseNegative int
}

// Evaluate predicts every test example with the model and compares the predicted labels token by token.
func Evaluate(model *pipeline.Model, test types.Corpus) (Metrics, error) {
	metrics := Metrics{Examples: len(test), Labels: map[string]LabelMetrics{}}
	if len(test) == 0 {
		return metrics, nil
	}

	rows := pipeline.FromExamples(test)
	predicted, err := model.Transform(rows)
	if err != nil {
		return metrics, err
	}

	perLabel := map[string]*counts{}
	get := func(label string) *counts {
		c, ok := perLabel[label]
		if !ok {
			c = &counts{}
			perLabel[label] = c
		}
		return c
	}

	correct := 0
	for i, row := range predicted {
		gold := test[i].Labels
		for j, label := range row.PredictedLabel {
			metrics.Tokens++
			if label == gold[j] {
				correct++
				get(label).truePositive++
				continue
			}
			get(label).falsePositive++
			get(gold[j]).falseNegative++
		}
	}

	metrics.TokenAccuracy = ratio(correct, metrics.Tokens)
	for label, c := range perLabel {
		lm := LabelMetrics{
			Precision: ratio(c.truePositive, c.truePositive+c.falsePositive),
			Recall:    ratio(c.truePositive, c.truePositive+c.falseNegative),
			Support:   c.truePositive + c.falseNegative,
		}
		if lm.Precision+lm.Recall > 0 {
			lm.F1 = 2 * lm.Precision * lm.Recall / (lm.Precision + lm.Recall)
		}
		metrics.Labels[label] = lm
	}
	return metrics, nil
}

func ratio(a int, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
