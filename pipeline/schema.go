package pipeline

import (
	"fmt"

	"text2phenotype.com/ner/types"
)

const (
	SentenceColumn       = "Sentence"
	LabelColumn          = "Label"
	PredictedLabelColumn = "PredictedLabel"
)

type ColumnKind string

const (
	KindText       ColumnKind = "text"
	KindKeyVector  ColumnKind = "key_vector"
	KindTextVector ColumnKind = "text_vector"
)

type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Schema lists the columns a model was trained with. A persisted model is only usable with the same schema.
type Schema struct {
	Columns []Column `json:"columns"`
}

func DefaultSchema() Schema {
	return Schema{Columns: []Column{
		{Name: SentenceColumn, Kind: KindText},
		{Name: LabelColumn, Kind: KindKeyVector},
		{Name: PredictedLabelColumn, Kind: KindTextVector},
	}}
}

func (schema Schema) Column(name string) (Column, bool) {
	for _, col := range schema.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Check verifies that every column of expected is present with the same kind.
func (schema Schema) Check(expected Schema) error {
	for _, want := range expected.Columns {
		got, ok := schema.Column(want.Name)
		if !ok {
			return fmt.Errorf("column %q is missing", want.Name)
		}
		if got.Kind != want.Kind {
			return fmt.Errorf("column %q has kind %q, expected %q", want.Name, got.Kind, want.Kind)
		}
	}
	return nil
}

// Row carries the values of all columns for one sentence. Label is nil for rows that are only predicted.
type Row struct {
	Sentence       string
	Label          []string
	LabelKeys      []uint32
	PredictedKeys  []uint32
	PredictedLabel []string
}

func FromExamples(corpus types.Corpus) []Row {
	rows := make([]Row, len(corpus))
	for i, example := range corpus {
		rows[i] = Row{Sentence: example.Sentence, Label: example.Labels}
	}
	return rows
}

func copyRows(rows []Row) []Row {
	res := make([]Row, len(rows))
	copy(res, rows)
	return res
}
