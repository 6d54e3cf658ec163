package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"text2phenotype.com/ner/logger"
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/s3client"
	"text2phenotype.com/ner/types"
)

type objectStorage interface {
	Upload(data []byte, key string) error
	Download(key string) ([]byte, error)
	Bucket() string
}

// S3Store keeps artifacts as objects, the destination is the object key.
type S3Store struct {
	client    objectStorage
	nerLogger zerolog.Logger
}

var _ ModelStore = (*S3Store)(nil)

func NewS3Store(client *s3client.Client) *S3Store {
	return newS3Store(client)
}

func newS3Store(client objectStorage) *S3Store {
	return &S3Store{client: client, nerLogger: logger.NewLogger("S3Store")}
}

// URI names the object behind key, as in s3://bucket/key.
func (s *S3Store) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.client.Bucket(), key)
}

func (s *S3Store) Save(model *pipeline.Model, destination string) error {
	data, err := Encode(model)
	if err != nil {
		return err
	}
	if err = s.client.Upload(data, destination); err != nil {
		s.nerLogger.Err(err).Str("uri", s.URI(destination)).Msg("Failed to upload model")
		return err
	}
	s.nerLogger.Info().Str("uri", s.URI(destination)).Int("bytes", len(data)).Msg("Uploaded model")
	return nil
}

func (s *S3Store) Load(source string) (*pipeline.Model, error) {
	data, err := s.client.Download(source)
	if errors.Is(err, s3client.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrModelNotFound, source)
	}
	if err != nil {
		return nil, err
	}
	model, _, err := Decode(data)
	if err != nil {
		s.nerLogger.Err(err).Str("uri", s.URI(source)).Msg("Failed to decode model")
		return nil, err
	}
	return model, nil
}
