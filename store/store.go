// Package store persists trained models. Saving to a destination that already holds a model replaces it.
// Concurrent saves to the same destination race: the last writer wins and readers may observe a partially
// written artifact in between.
package store

import (
	"text2phenotype.com/ner/pipeline"
)

type ModelStore interface {
	Save(model *pipeline.Model, destination string) error
	Load(source string) (*pipeline.Model, error)
}
