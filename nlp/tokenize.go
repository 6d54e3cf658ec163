package nlp

import "strings"

// Tokenize splits a sentence on runs of whitespace. Training, encoding and the prediction engine all go through
// this function so they agree on token boundaries.
func Tokenize(sentence string) []string {
	return strings.Fields(sentence)
}

func CountTokens(sentence string) int {
	return len(Tokenize(sentence))
}
