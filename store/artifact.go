package store

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"text2phenotype.com/ner/pipeline"
	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/vocab"
)

const (
	ArtifactFormat  = "ner-model"
	FormatVersion   = 1
	DefaultFileName = "ner-model.zip"

	manifestEntry   = "manifest.json"
	schemaEntry     = "schema.json"
	vocabularyEntry = "vocabulary.txt"
	pipelineEntry   = "pipeline.json"
)

type Manifest struct {
	Format                string    `json:"format"`
	Version               int       `json:"version"`
	CreatedAt             time.Time `json:"created_at"`
	VocabularyFingerprint uint64    `json:"vocabulary_fingerprint"`
	Stages                int       `json:"stages"`
}

// Encode packs the fitted chain, its schema and its vocabulary into one zip archive.
func Encode(model *pipeline.Model) ([]byte, error) {
	specs, err := model.Specs()
	if err != nil {
		return nil, err
	}
	manifest := Manifest{
		Format:                ArtifactFormat,
		Version:               FormatVersion,
		CreatedAt:             time.Now().UTC(),
		VocabularyFingerprint: model.Vocabulary().Fingerprint(),
		Stages:                len(specs),
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{manifestEntry, jsonWriter(manifest)},
		{schemaEntry, jsonWriter(model.Schema())},
		{vocabularyEntry, func(w io.Writer) error {
			_, err := model.Vocabulary().WriteTo(w)
			return err
		}},
		{pipelineEntry, jsonWriter(specs)},
	}
	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, err
		}
		if err = entry.write(w); err != nil {
			return nil, fmt.Errorf("writing %s: %w", entry.name, err)
		}
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonWriter(v interface{}) func(w io.Writer) error {
	return func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	}
}

// Decode unpacks an archive produced by Encode. Any structural problem is reported as ErrModelCorrupt.
func Decode(data []byte) (*pipeline.Model, Manifest, error) {
	var manifest Manifest
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, manifest, corrupt("not a model archive: %v", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if err = readJSON(files, manifestEntry, &manifest); err != nil {
		return nil, manifest, err
	}
	if manifest.Format != ArtifactFormat || manifest.Version != FormatVersion {
		return nil, manifest, corrupt("unsupported artifact %s v%d", manifest.Format, manifest.Version)
	}

	var schema pipeline.Schema
	if err = readJSON(files, schemaEntry, &schema); err != nil {
		return nil, manifest, err
	}

	vocabData, err := readEntry(files, vocabularyEntry)
	if err != nil {
		return nil, manifest, err
	}
	v, err := vocab.FromReader(bytes.NewReader(vocabData))
	if err != nil {
		return nil, manifest, corrupt("%s: %v", vocabularyEntry, err)
	}
	if v.Fingerprint() != manifest.VocabularyFingerprint {
		return nil, manifest, corrupt("vocabulary does not match the fingerprint of the trained model")
	}

	var specs []pipeline.StageSpec
	if err = readJSON(files, pipelineEntry, &specs); err != nil {
		return nil, manifest, err
	}
	model, err := pipeline.Restore(specs, schema, v)
	if err != nil {
		return nil, manifest, corrupt("%v", err)
	}
	return model, manifest, nil
}

func readEntry(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, corrupt("%s is missing", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, corrupt("%s: %v", name, err)
	}
	defer rc.Close()
	data, err := ioutil.ReadAll(rc)
	if err != nil {
		return nil, corrupt("%s: %v", name, err)
	}
	return data, nil
}

func readJSON(files map[string]*zip.File, name string, v interface{}) error {
	data, err := readEntry(files, name)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return corrupt("%s: %v", name, err)
	}
	return nil
}

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrModelCorrupt, fmt.Sprintf(format, args...))
}
