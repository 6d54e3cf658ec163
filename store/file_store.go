package store

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/types"
)

type FileStore struct {
	nerLogger zerolog.Logger
}

var _ ModelStore = (*FileStore)(nil)

func NewFileStore() *FileStore {
	return &FileStore{nerLogger: logger.NewLogger("FileStore")}
}

func (s *FileStore) Save(model *pipeline.Model, destination string) error {
	data, err := Encode(model)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return err
	}
	if err = ioutil.WriteFile(destination, data, 0644); err != nil {
		return err
	}
	s.nerLogger.Info().Str("destination", destination).Int("bytes", len(data)).Msg("Saved model")
	return nil
}

func (s *FileStore) Load(source string) (*pipeline.Model, error) {
	data, err := ioutil.ReadFile(source)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", types.ErrModelNotFound, source)
	}
	if err != nil {
		return nil, err
	}
	model, manifest, err := Decode(data)
	if err != nil {
		s.nerLogger.Err(err).Str("source", source).Msg("Failed to decode model")
		return nil, err
	}
	s.nerLogger.Info().
		Str("source", source).
		Time("created_at", manifest.CreatedAt).
		Uint64("vocabulary_fingerprint", manifest.VocabularyFingerprint).
		Msg("Loaded model")
	return model, nil
}
