package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/ner/ml"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

const mockSentence = "Alice and Bob live in London with a dog"

var mockLabels = []string{"PERSON", "0", "PERSON", "0", "0", "CITY", "0", "0", "0"}

// constTagger tags every token with the same key and records what it was trained on.
type constTagger struct {
	key       uint32
	fitCalls  int
	sequences []ml.Sequence
	fail      error
	panics    bool
}

func (c *constTagger) Fit(sequences []ml.Sequence, states int) (ml.Model, error) {
	c.fitCalls++
	c.sequences = sequences
	if c.panics {
		panic("tagger exploded")
	}
	if c.fail != nil {
		return nil, c.fail
	}
	return c, nil
}

func (c *constTagger) Apply(tokens []string) []uint32 {
	res := make([]uint32, len(tokens))
	for i := range res {
		res[i] = c.key
	}
	return res
}

type shortTagger struct{}

func (shortTagger) Apply(tokens []string) []uint32 {
	return make([]uint32, len(tokens)-1)
}

func mockRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		labels := make([]string, len(mockLabels))
		copy(labels, mockLabels)
		rows[i] = Row{Sentence: mockSentence, Label: labels}
	}
	return rows
}

func TestBuildPipelineOrder(t *testing.T) {
	p := BuildPipeline(vocab.Mock(), types.DefaultHyperparameters(), &constTagger{})
	var names []string
	for _, est := range p.Estimators {
		names = append(names, est.Name())
	}
	require.Equal(t, []string{NormalizeTextStage, MapValueToKeyStage, NamedEntityRecognitionStage, MapKeyToValueStage}, names)
	require.Equal(t, DefaultSchema(), p.Schema)
}

func TestStagesWithoutStateFitToThemselves(t *testing.T) {
	v := vocab.Mock()
	stages := []Stage{
		NewNormalizeText(types.DefaultHyperparameters().Normalize),
		NewMapValueToKey(v),
		NewMapKeyToValue(v),
	}
	chain := EstimatorChain{}
	for _, stage := range stages {
		chain = chain.Append(stage)
		fitted, err := stage.Fit(mockRows(2))
		require.NoError(t, err)
		require.Equal(t, Transformer(stage), fitted)
	}
	require.Len(t, chain, 3)

	transformers, err := chain.Fit(mockRows(2))
	require.NoError(t, err)
	require.Len(t, transformers, 3)
}

func TestFitFeedsNormalizedKeysToTagger(t *testing.T) {
	tagger := &constTagger{key: 1}
	p := BuildPipeline(vocab.Mock(), types.DefaultHyperparameters(), tagger)

	rows := mockRows(3)
	model, err := p.Fit(rows)
	require.NoError(t, err)
	require.Equal(t, 1, tagger.fitCalls)
	require.Len(t, tagger.sequences, 3)
	require.Equal(t, []string{"alice", "and", "bob", "live", "in", "london", "with", "a", "dog"}, tagger.sequences[0].Tokens)
	require.Equal(t, []uint32{1, 0, 1, 0, 0, 2, 0, 0, 0}, tagger.sequences[0].Keys)

	require.Equal(t, mockSentence, rows[0].Sentence, "fit must not modify the input rows")
	require.Nil(t, rows[0].LabelKeys)

	out, err := model.Transform([]Row{{Sentence: "Alice and Bob live in London Uk"}})
	require.NoError(t, err)
	require.Equal(t, []string{"PERSON", "PERSON", "PERSON", "PERSON", "PERSON", "PERSON", "PERSON"}, out[0].PredictedLabel)
}

func TestAlignmentError(t *testing.T) {
	p := BuildPipeline(vocab.Mock(), types.DefaultHyperparameters(), &constTagger{})

	rows := mockRows(1)
	_, err := p.Fit(rows)
	require.NoError(t, err)

	rows[0].Label = rows[0].Label[:8]
	_, err = p.Fit(rows)
	require.True(t, errors.Is(err, types.ErrAlignment), "got %v", err)
}

func TestUnknownLabelError(t *testing.T) {
	p := BuildPipeline(vocab.Mock(), types.DefaultHyperparameters(), &constTagger{})
	rows := []Row{{Sentence: "Alice lives on Mars", Label: []string{"PERSON", "0", "0", "PLANET"}}}
	_, err := p.Fit(rows)
	require.True(t, errors.Is(err, types.ErrUnknownLabel), "got %v", err)
}

func TestTrainerFailures(t *testing.T) {
	failing := &constTagger{fail: errors.New("malformed batch")}
	_, err := BuildPipeline(vocab.Mock(), types.DefaultHyperparameters(), failing).Fit(mockRows(1))
	require.True(t, errors.Is(err, types.ErrTraining))
	require.Contains(t, err.Error(), "malformed batch")

	panicking := &constTagger{panics: true}
	_, err = BuildPipeline(vocab.Mock(), types.DefaultHyperparameters(), panicking).Fit(mockRows(1))
	require.True(t, errors.Is(err, types.ErrTraining))

	_, err = NewNamedEntityRecognition(&constTagger{}, 4).Fit([]Row{{Sentence: "no labels"}})
	require.True(t, errors.Is(err, types.ErrTraining))
}

func TestStagesIndependently(t *testing.T) {
	v := vocab.Mock()

	normalized, err := NewNormalizeText(types.DefaultHyperparameters().Normalize).Transform([]Row{{Sentence: "Zoë , London"}})
	require.NoError(t, err)
	require.Equal(t, "zoe _ london", normalized[0].Sentence)

	encoded, err := NewMapValueToKey(v).Transform([]Row{{Sentence: "a b", Label: []string{"CITY", "0"}}, {Sentence: "c"}})
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 0}, encoded[0].LabelKeys)
	require.Nil(t, encoded[1].LabelKeys)

	decoded, err := NewMapKeyToValue(v).Transform([]Row{{PredictedKeys: []uint32{3, 0, 1}}})
	require.NoError(t, err)
	require.Equal(t, []string{"COUNTRY", "0", "PERSON"}, decoded[0].PredictedLabel)

	_, err = NewMapKeyToValue(v).Transform([]Row{{PredictedKeys: []uint32{9}}})
	require.True(t, errors.Is(err, types.ErrUnknownLabel))

	_, err = NewTagTransformer(shortTagger{}).Transform([]Row{{Sentence: "a b c"}})
	require.True(t, errors.Is(err, types.ErrAlignment))
}

func TestSpecsAndRestore(t *testing.T) {
	v := vocab.Mock()
	trainer := &ml.PerceptronTrainer{BatchSize: 8, MaxEpochs: 2, LearningRate: 1, Seed: 3}
	model, err := BuildPipeline(v, types.DefaultHyperparameters(), trainer).Fit(mockRows(40))
	require.NoError(t, err)

	specs, err := model.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 4)

	buf, err := json.Marshal(specs)
	require.NoError(t, err)
	var decoded []StageSpec
	require.NoError(t, json.Unmarshal(buf, &decoded))

	restored, err := Restore(decoded, model.Schema(), v)
	require.NoError(t, err)

	in := []Row{{Sentence: "Alice and Bob live in London Uk"}}
	want, err := model.Transform(in)
	require.NoError(t, err)
	got, err := restored.Transform(in)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restored model predicts differently (-want +got):\n%s", diff)
	}
}

func TestRestoreRejectsMismatches(t *testing.T) {
	v := vocab.Mock()
	model, err := BuildPipeline(v, types.DefaultHyperparameters(), &ml.PerceptronTrainer{BatchSize: 8, MaxEpochs: 1, LearningRate: 1}).Fit(mockRows(8))
	require.NoError(t, err)
	specs, err := model.Specs()
	require.NoError(t, err)

	_, err = Restore(specs[:3], DefaultSchema(), v)
	require.Error(t, err)

	swapped := append([]StageSpec{specs[1], specs[0]}, specs[2:]...)
	_, err = Restore(swapped, DefaultSchema(), v)
	require.Error(t, err)

	_, err = Restore(specs, Schema{Columns: DefaultSchema().Columns[:2]}, v)
	require.Error(t, err)

	bigger, err := vocab.New([]string{"PERSON", "CITY", "COUNTRY", "ORG"})
	require.NoError(t, err)
	_, err = Restore(specs, DefaultSchema(), bigger)
	require.Error(t, err)

	_, err = NewModel(DefaultSchema(), v, []Transformer{NewTagTransformer(&constTagger{})}).Specs()
	require.Error(t, err)
}

func TestSchemaCheck(t *testing.T) {
	require.NoError(t, DefaultSchema().Check(DefaultSchema()))
	wrongKind := Schema{Columns: []Column{
		{Name: SentenceColumn, Kind: KindText},
		{Name: LabelColumn, Kind: KindTextVector},
		{Name: PredictedLabelColumn, Kind: KindTextVector},
	}}
	require.Error(t, wrongKind.Check(DefaultSchema()))
}
