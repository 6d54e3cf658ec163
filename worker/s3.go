package worker

import (
	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/s3client"
	"text2phenotype.com/ner/store"
)

type s3Transactions interface {
	// getTrainingData returns nil for a key the run does not set.
	getTrainingData(task *Task) (vocabulary []byte, corpus []byte, err error)
	saveModel(model *pipeline.Model, artifactKey string) error
	loadModel(artifactKey string) (*pipeline.Model, error)
	close()
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
	models   *store.S3Store
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.s3Client.Close()
}

func (wrapper *s3ClientWrapper) getTrainingData(task *Task) ([]byte, []byte, error) {
	var vocabulary, corpus []byte
	var err error
	if key := task.run.VocabularyKey; key != "" {
		if vocabulary, err = wrapper.s3Client.Download(key); err != nil {
			return nil, nil, err
		}
	}
	if key := task.run.CorpusKey; key != "" {
		if corpus, err = wrapper.s3Client.Download(key); err != nil {
			return nil, nil, err
		}
	}
	return vocabulary, corpus, nil
}

func (wrapper *s3ClientWrapper) saveModel(model *pipeline.Model, artifactKey string) error {
	return wrapper.models.Save(model, artifactKey)
}

func (wrapper *s3ClientWrapper) loadModel(artifactKey string) (*pipeline.Model, error) {
	return wrapper.models.Load(artifactKey)
}
