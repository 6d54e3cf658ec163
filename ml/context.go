package ml

import (
	"strings"
	"unicode"
)

const (
	prefixLength = 4
	suffixLength = 4

	sentenceBegin = "*SB*"
	sentenceEnd   = "*SE*"
)

// ContextGenerator produces the features observed at one position of a token sequence.
type ContextGenerator interface {
	GetContext(index int, tokens []string) []Feature
}

type defaultContextGenerator struct{}

func NewContextGenerator() ContextGenerator {
	return defaultContextGenerator{}
}

func (g defaultContextGenerator) GetContext(index int, tokens []string) []Feature {
	lex := tokens[index]

	prev, prevprev := sentenceBegin, sentenceBegin
	if index > 0 {
		prev = tokens[index-1]
		if index > 1 {
			prevprev = tokens[index-2]
		}
	}
	next, nextnext := sentenceEnd, sentenceEnd
	if index+1 < len(tokens) {
		next = tokens[index+1]
		if index+2 < len(tokens) {
			nextnext = tokens[index+2]
		}
	}

	feats := []Feature{
		&BoolFeature{"default"},
		&StrFeature{"w", lex},
		&StrFeature{"shape", getShape(lex)},
		&StrFeature{"p", prev},
		&StrFeature{"pp", prevprev},
		&StrFeature{"n", next},
		&StrFeature{"nn", nextnext},
		&StrFeature{"pw", prev + "|" + lex},
		&StrFeature{"wn", lex + "|" + next},
	}
	for _, suf := range getSuffixes(lex) {
		feats = append(feats, &StrFeature{"suf", suf})
	}
	for _, pref := range getPrefixes(lex) {
		feats = append(feats, &StrFeature{"pre", pref})
	}
	if strings.ContainsRune(lex, '-') {
		feats = append(feats, &BoolFeature{"h"})
	}
	if strings.IndexFunc(lex, unicode.IsDigit) >= 0 {
		feats = append(feats, &BoolFeature{"d"})
	}
	if index == 0 {
		feats = append(feats, &BoolFeature{"first"})
	}
	if index == len(tokens)-1 {
		feats = append(feats, &BoolFeature{"last"})
	}
	return feats
}

func getPrefixes(lex string) []string {
	runes := []rune(lex)
	prefs := make([]string, 0, prefixLength)
	for li := 1; li <= prefixLength && li <= len(runes); li++ {
		prefs = append(prefs, string(runes[:li]))
	}
	return prefs
}

func getSuffixes(lex string) []string {
	runes := []rune(lex)
	suffs := make([]string, 0, suffixLength)
	for li := 1; li <= suffixLength && li <= len(runes); li++ {
		suffs = append(suffs, string(runes[len(runes)-li:]))
	}
	return suffs
}

// getShape collapses runs of the same character class: "London2" -> "Xxd".
func getShape(txt string) string {
	var sb strings.Builder
	var last rune
	for _, r := range txt {
		var c rune
		switch {
		case unicode.IsDigit(r):
			c = 'd'
		case unicode.IsUpper(r):
			c = 'X'
		case unicode.IsLetter(r):
			c = 'x'
		default:
			c = r
		}
		if c != last {
			sb.WriteRune(c)
			last = c
		}
	}
	return sb.String()
}
