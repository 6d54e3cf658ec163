// Package vocab holds the closed set of entity labels a model can emit and
// the mapping between those labels and their integer keys.
package vocab

import (
	"fmt"
	"io"
	"strings"

	"text2phenotype.com/ner/types"
	"text2phenotype.com/ner/utils"
)

// OutsideLabel marks tokens which belong to no entity. It is implicitly part of every vocabulary and always owns
// key 0, entity labels get keys 1..n in source order.
const OutsideLabel = "0"

const OutsideKey uint32 = 0

type Vocabulary struct {
	labels []string
	keys   map[string]uint32
}

var mockLabels = []string{"PERSON", "CITY", "COUNTRY"}

// New builds a vocabulary from an ordered list of labels. Duplicates keep their first position.
func New(labels []string) (*Vocabulary, error) {
	v := Vocabulary{
		labels: make([]string, 0, len(labels)),
		keys:   make(map[string]uint32, len(labels)+1),
	}
	v.keys[OutsideLabel] = OutsideKey
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if len(label) == 0 {
			continue
		}
		if _, ok := v.keys[label]; ok {
			continue
		}
		v.labels = append(v.labels, label)
		v.keys[label] = uint32(len(v.labels))
	}
	if len(v.labels) == 0 {
		return nil, fmt.Errorf("%w: no labels in source", types.ErrVocabulary)
	}
	return &v, nil
}

// Mock is the fixed development vocabulary.
func Mock() *Vocabulary {
	v, err := New(mockLabels)
	if err != nil {
		panic(err)
	}
	return v
}

// FromReader reads one label per line, blank lines are skipped.
func FromReader(r io.Reader) (*Vocabulary, error) {
	labels, err := utils.ReadLines(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrVocabulary, err)
	}
	return New(labels)
}

func FromFile(filePath string) (*Vocabulary, error) {
	labels, err := utils.ReadList(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrVocabulary, err)
	}
	return New(labels)
}

// Labels returns the entity labels in key order, without the outside label.
func (v *Vocabulary) Labels() []string {
	res := make([]string, len(v.labels))
	copy(res, v.labels)
	return res
}

// Len is the number of keys including the outside key.
func (v *Vocabulary) Len() int {
	return len(v.labels) + 1
}

func (v *Vocabulary) Contains(label string) bool {
	_, ok := v.keys[label]
	return ok
}

func (v *Vocabulary) Key(label string) (uint32, error) {
	key, ok := v.keys[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownLabel, label)
	}
	return key, nil
}

func (v *Vocabulary) Value(key uint32) (string, error) {
	if key == OutsideKey {
		return OutsideLabel, nil
	}
	if int(key) > len(v.labels) {
		return "", fmt.Errorf("%w: key %d is out of range [0, %d]", types.ErrUnknownLabel, key, len(v.labels))
	}
	return v.labels[key-1], nil
}

func (v *Vocabulary) Encode(labels []string) ([]uint32, error) {
	keys := make([]uint32, len(labels))
	for i, label := range labels {
		key, err := v.Key(label)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		keys[i] = key
	}
	return keys, nil
}

func (v *Vocabulary) Decode(keys []uint32) ([]string, error) {
	labels := make([]string, len(keys))
	for i, key := range keys {
		label, err := v.Value(key)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		labels[i] = label
	}
	return labels, nil
}

// Fingerprint identifies the exact label to key assignment. Artifacts carry it so a model is never paired with
// a different vocabulary.
func (v *Vocabulary) Fingerprint() uint64 {
	return utils.HashStrings(v.labels)
}

// WriteTo writes the labels in key order, one per line, readable back with FromReader.
func (v *Vocabulary) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, strings.Join(v.labels, "\n")+"\n")
	return int64(n), err
}
