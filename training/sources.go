package training

import (
	"text2phenotype.com/ner/corpus"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

// LoadSources reads the label vocabulary and the corpus. An empty path selects the development source: the
// {PERSON, CITY, COUNTRY} vocabulary or MockSize copies of the development example.
func LoadSources(vocabularyPath string, corpusPath string) (*vocab.Vocabulary, types.Corpus, error) {
	v := vocab.Mock()
	if vocabularyPath != "" {
		var err error
		if v, err = vocab.FromFile(vocabularyPath); err != nil {
			return nil, nil, err
		}
	}

	if corpusPath == "" {
		return v, corpus.Mock(corpus.MockSize), nil
	}
	examples, err := corpus.Load(corpusPath)
	if err != nil {
		return nil, nil, err
	}
	return v, examples, nil
}
