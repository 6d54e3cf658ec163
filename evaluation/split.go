package evaluation

import (
	"fmt"
	"math"
	"math/rand"

	"text2phenotype.com/ner/types"
)

// Split randomly partitions the corpus. round(len*testFraction) examples go to the test subset, the rest to the
// train subset. The same seed always yields the same partition.
func Split(corpus types.Corpus, testFraction float64, seed int64) (types.Split, error) {
	if testFraction <= 0 || testFraction >= 1 || math.IsNaN(testFraction) {
		return types.Split{}, fmt.Errorf("%w: test fraction must be in (0, 1), got %v", types.ErrConfig, testFraction)
	}

	order := rand.New(rand.NewSource(seed)).Perm(len(corpus))
	testSize := int(math.Round(float64(len(corpus)) * testFraction))

	split := types.Split{
		Train: make(types.Corpus, 0, len(corpus)-testSize),
		Test:  make(types.Corpus, 0, testSize),
	}
	for i, idx := range order {
		if i < testSize {
			split.Test = append(split.Test, corpus[idx])
		} else {
			split.Train = append(split.Train, corpus[idx])
		}
	}
	return split, nil
}
