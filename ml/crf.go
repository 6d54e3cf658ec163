package ml

import (
	"math"
	"sort"
)

// Sequence is one training sentence: tokens and the key of the gold label at each position.
type Sequence struct {
	Tokens []string
	Keys   []uint32
}

// Model tags a token sequence with one label key per token.
type Model interface {
	Apply(tokens []string) []uint32
}

// Trainer fits a Model over sequences labelled with keys in [0, states).
type Trainer interface {
	Fit(sequences []Sequence, states int) (Model, error)
}

// CRF is a linear-chain model: per state emission weights over sparse binary features, a state transition
// matrix and sentence initial/final weights. Decoding is exact Viterbi.
type CRF struct {
	Features       map[string]int `json:"features"`
	States         int            `json:"states"`
	Emissions      [][]float64    `json:"emissions"`
	Transitions    [][]float64    `json:"transitions"`
	InitialWeights []float64      `json:"initial_weights"`
	FinalWeights   []float64      `json:"final_weights"`
}

func NewCRF(features map[string]int, states int) *CRF {
	crf := CRF{
		Features:       features,
		States:         states,
		Emissions:      make([][]float64, len(features)),
		Transitions:    make([][]float64, states),
		InitialWeights: make([]float64, states),
		FinalWeights:   make([]float64, states),
	}
	for i := range crf.Emissions {
		crf.Emissions[i] = make([]float64, states)
	}
	for i := range crf.Transitions {
		crf.Transitions[i] = make([]float64, states)
	}
	return &crf
}

// Valid reports whether the weight tables have the shapes implied by Features and States.
func (crf *CRF) Valid() bool {
	if crf.States <= 0 || len(crf.Emissions) != len(crf.Features) ||
		len(crf.Transitions) != crf.States || len(crf.InitialWeights) != crf.States ||
		len(crf.FinalWeights) != crf.States {
		return false
	}
	for _, row := range crf.Emissions {
		if len(row) != crf.States {
			return false
		}
	}
	for _, row := range crf.Transitions {
		if len(row) != crf.States {
			return false
		}
	}
	for _, idx := range crf.Features {
		if idx < 0 || idx >= len(crf.Emissions) {
			return false
		}
	}
	return true
}

func (crf *CRF) ToFeatureIdxVector(features []Feature) []int {
	set := make(map[int]bool)
	for _, feat := range features {
		fIdx, isOk := crf.Features[feat.String()]
		if isOk {
			set[fIdx] = true
		}
	}

	result := make([]int, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Ints(result)
	return result
}

func (crf *CRF) emission(fIdxVector []int, state int) float64 {
	ret := 0.0
	for _, fIdx := range fIdxVector {
		ret += crf.Emissions[fIdx][state]
	}
	return ret
}

func (crf *CRF) featureVectors(tokens []string) [][]int {
	ctx := NewContextGenerator()
	res := make([][]int, len(tokens))
	for i := range tokens {
		res[i] = crf.ToFeatureIdxVector(ctx.GetContext(i, tokens))
	}
	return res
}

// DecodeViterbi returns the highest scoring state sequence for the given per position feature vectors.
func (crf *CRF) DecodeViterbi(features [][]int) []int {
	n := len(features)
	if n == 0 {
		return []int{}
	}

	delta := make([][]float64, n)
	backPointers := make([][]int, n)
	for i := range delta {
		delta[i] = make([]float64, crf.States)
		backPointers[i] = make([]int, crf.States)
	}

	for s := 0; s < crf.States; s++ {
		delta[0][s] = crf.InitialWeights[s] + crf.emission(features[0], s)
	}

	for obsIdx := 1; obsIdx < n; obsIdx++ {
		for s := 0; s < crf.States; s++ {
			best, bestPrev := math.Inf(-1), 0
			for p := 0; p < crf.States; p++ {
				w := delta[obsIdx-1][p] + crf.Transitions[p][s]
				if w > best {
					best, bestPrev = w, p
				}
			}
			delta[obsIdx][s] = best + crf.emission(features[obsIdx], s)
			backPointers[obsIdx][s] = bestPrev
		}
	}

	best, state := math.Inf(-1), 0
	for s := 0; s < crf.States; s++ {
		w := delta[n-1][s] + crf.FinalWeights[s]
		if w > best {
			best, state = w, s
		}
	}

	path := make([]int, n)
	for i := n - 1; i >= 0; i-- {
		path[i] = state
		state = backPointers[i][state]
	}
	return path
}

func (crf *CRF) Apply(tokens []string) []uint32 {
	path := crf.DecodeViterbi(crf.featureVectors(tokens))
	res := make([]uint32, len(path))
	for i, s := range path {
		res[i] = uint32(s)
	}
	return res
}
