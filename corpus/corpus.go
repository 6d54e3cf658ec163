// Package corpus builds training corpora, either the repeated development example or a tab separated file with
// the sentence in the first column and one label per token in the remaining columns.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"text2phenotype.com/ner/nlp"
	"text2phenotype.com/ner/types"
)

const (
	MockSize = 1500

	fieldSeparator = "\t"
)

var mockExample = types.Example{
	Sentence: "Alice and Bob live in London with a dog",
	Labels:   []string{"PERSON", "0", "PERSON", "0", "0", "CITY", "0", "0", "0"},
}

// MockExample returns a copy of the development example.
func MockExample() types.Example {
	labels := make([]string, len(mockExample.Labels))
	copy(labels, mockExample.Labels)
	return types.Example{Sentence: mockExample.Sentence, Labels: labels}
}

// Mock repeats the development example size times.
func Mock(size int) types.Corpus {
	res := make(types.Corpus, size)
	for i := range res {
		res[i] = MockExample()
	}
	return res
}

// Read parses one example per non blank line. Token/label alignment is not checked here, see Validate.
func Read(r io.Reader) (types.Corpus, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var res types.Corpus
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		fields := strings.Split(line, fieldSeparator)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d has %d field(s), expected a sentence and at least one label",
				types.ErrCorpusFormat, lineNo, len(fields))
		}
		res = append(res, types.Example{
			Sentence: fields[0],
			Labels:   fields[1:],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorpusFormat, err)
	}
	return res, nil
}

func Load(filePath string) (types.Corpus, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// CheckExample reports whether the example has exactly one label per whitespace token.
func CheckExample(example types.Example) error {
	tokens := nlp.CountTokens(example.Sentence)
	if tokens != len(example.Labels) {
		return fmt.Errorf("%w: sentence %q has %d token(s) but %d label(s)",
			types.ErrAlignment, example.Sentence, tokens, len(example.Labels))
	}
	return nil
}

// Validate checks every example of the corpus and reports the first misaligned one.
func Validate(corpus types.Corpus) error {
	for i, example := range corpus {
		if err := CheckExample(example); err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
	}
	return nil
}
