package ml

import (
	"fmt"
	"math/rand"

	"text2phenotype.com/ner/types"
)

// PerceptronTrainer fits a CRF with the averaged structured perceptron. Updates are accumulated over mini-batches
// of BatchSize sequences, the sequence order is reshuffled from Seed on every epoch.
type PerceptronTrainer struct {
	BatchSize    int
	MaxEpochs    int
	LearningRate float64
	Seed         int64
	// OnEpoch, when set, is called after every finished epoch with the number of epochs done.
	OnEpoch func(epoch int, maxEpochs int)
}

func NewPerceptronTrainer(params types.Hyperparameters) *PerceptronTrainer {
	return &PerceptronTrainer{
		BatchSize:    params.BatchSize,
		MaxEpochs:    params.MaxEpochs,
		LearningRate: params.LearningRate,
		Seed:         params.Seed,
	}
}

type emissionKey struct {
	feature int
	state   int
}

type update struct {
	emissions   map[emissionKey]float64
	transitions [][]float64
	initial     []float64
	final       []float64
}

func newUpdate(states int) *update {
	u := update{
		emissions:   make(map[emissionKey]float64),
		transitions: make([][]float64, states),
		initial:     make([]float64, states),
		final:       make([]float64, states),
	}
	for i := range u.transitions {
		u.transitions[i] = make([]float64, states)
	}
	return &u
}

func (u *update) add(features [][]int, path []int, scale float64) {
	for i, state := range path {
		for _, fIdx := range features[i] {
			u.emissions[emissionKey{fIdx, state}] += scale
		}
		if i > 0 {
			u.transitions[path[i-1]][state] += scale
		}
	}
	if len(path) > 0 {
		u.initial[path[0]] += scale
		u.final[path[len(path)-1]] += scale
	}
}

func (t *PerceptronTrainer) validate(sequences []Sequence, states int) error {
	if len(sequences) == 0 {
		return fmt.Errorf("%w: no training sequences", types.ErrTraining)
	}
	if states <= 0 {
		return fmt.Errorf("%w: number of states must be positive, got %d", types.ErrTraining, states)
	}
	if t.BatchSize <= 0 || t.MaxEpochs <= 0 || t.LearningRate <= 0 {
		return fmt.Errorf("%w: invalid trainer settings batch_size=%d max_epochs=%d learning_rate=%v",
			types.ErrTraining, t.BatchSize, t.MaxEpochs, t.LearningRate)
	}
	for i, seq := range sequences {
		if len(seq.Tokens) != len(seq.Keys) {
			return fmt.Errorf("%w: sequence %d has %d token(s) and %d key(s)",
				types.ErrTraining, i, len(seq.Tokens), len(seq.Keys))
		}
		for _, key := range seq.Keys {
			if int(key) >= states {
				return fmt.Errorf("%w: sequence %d has key %d outside of [0, %d)", types.ErrTraining, i, key, states)
			}
		}
	}
	return nil
}

// indexFeatures assigns feature indexes in order of first appearance and caches the feature vectors.
func indexFeatures(sequences []Sequence) (map[string]int, [][][]int) {
	ctx := NewContextGenerator()
	index := make(map[string]int)
	vectors := make([][][]int, len(sequences))
	for si, seq := range sequences {
		vectors[si] = make([][]int, len(seq.Tokens))
		for i := range seq.Tokens {
			feats := ctx.GetContext(i, seq.Tokens)
			seen := make(map[int]bool, len(feats))
			vec := make([]int, 0, len(feats))
			for _, feat := range feats {
				name := feat.String()
				fIdx, ok := index[name]
				if !ok {
					fIdx = len(index)
					index[name] = fIdx
				}
				if !seen[fIdx] {
					seen[fIdx] = true
					vec = append(vec, fIdx)
				}
			}
			vectors[si][i] = vec
		}
	}
	return index, vectors
}

func (t *PerceptronTrainer) Fit(sequences []Sequence, states int) (Model, error) {
	if err := t.validate(sequences, states); err != nil {
		return nil, err
	}

	index, vectors := indexFeatures(sequences)
	weights := NewCRF(index, states)
	// totals accumulates counter*update, the averaged weights are weights - totals/counter
	totals := NewCRF(index, states)
	counter := 1.0

	rnd := rand.New(rand.NewSource(t.Seed))
	order := make([]int, len(sequences))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= t.MaxEpochs; epoch++ {
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += t.BatchSize {
			end := start + t.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := newUpdate(states)
			changed := false
			for _, si := range order[start:end] {
				gold := keysToPath(sequences[si].Keys)
				predicted := weights.DecodeViterbi(vectors[si])
				if samePath(gold, predicted) {
					continue
				}
				changed = true
				batch.add(vectors[si], gold, t.LearningRate)
				batch.add(vectors[si], predicted, -t.LearningRate)
			}
			if changed {
				apply(weights, totals, batch, counter)
			}
			counter++
		}

		if t.OnEpoch != nil {
			t.OnEpoch(epoch, t.MaxEpochs)
		}
	}

	return average(weights, totals, counter), nil
}

func apply(weights *CRF, totals *CRF, u *update, counter float64) {
	for k, v := range u.emissions {
		weights.Emissions[k.feature][k.state] += v
		totals.Emissions[k.feature][k.state] += counter * v
	}
	for p := range u.transitions {
		for s, v := range u.transitions[p] {
			weights.Transitions[p][s] += v
			totals.Transitions[p][s] += counter * v
		}
	}
	for s := range u.initial {
		weights.InitialWeights[s] += u.initial[s]
		totals.InitialWeights[s] += counter * u.initial[s]
		weights.FinalWeights[s] += u.final[s]
		totals.FinalWeights[s] += counter * u.final[s]
	}
}

func average(weights *CRF, totals *CRF, counter float64) *CRF {
	res := NewCRF(weights.Features, weights.States)
	for f := range weights.Emissions {
		for s := range weights.Emissions[f] {
			res.Emissions[f][s] = weights.Emissions[f][s] - totals.Emissions[f][s]/counter
		}
	}
	for p := range weights.Transitions {
		for s := range weights.Transitions[p] {
			res.Transitions[p][s] = weights.Transitions[p][s] - totals.Transitions[p][s]/counter
		}
	}
	for s := 0; s < weights.States; s++ {
		res.InitialWeights[s] = weights.InitialWeights[s] - totals.InitialWeights[s]/counter
		res.FinalWeights[s] = weights.FinalWeights[s] - totals.FinalWeights[s]/counter
	}
	return res
}

func keysToPath(keys []uint32) []int {
	path := make([]int, len(keys))
	for i, k := range keys {
		path[i] = int(k)
	}
	return path
}

func samePath(a []int, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
