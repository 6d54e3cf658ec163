package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"text2phenotype.com/ner/types"
)

// EmptyTokenPlaceholder replaces tokens which normalization emptied, e.g. a lone punctuation mark.
const EmptyTokenPlaceholder = "_"

type Normalizer struct {
	params types.NormalizeParams
}

func NewNormalizer(params types.NormalizeParams) *Normalizer {
	return &Normalizer{params: params}
}

func (n *Normalizer) Params() types.NormalizeParams {
	return n.params
}

// Normalize normalizes every token on its own and joins them with single spaces, so the token count of the
// result always equals the token count of the input.
func (n *Normalizer) Normalize(sentence string) string {
	tokens := Tokenize(sentence)
	for i, token := range tokens {
		tokens[i] = n.NormalizeToken(token)
	}
	return strings.Join(tokens, " ")
}

func (n *Normalizer) NormalizeToken(token string) string {
	if !n.params.KeepDiacritics {
		// transformers keep state, a fresh chain per call keeps Normalizer safe for concurrent readers
		stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if stripped, _, err := transform.String(stripMarks, token); err == nil {
			token = stripped
		}
	}

	var sb strings.Builder
	for _, r := range token {
		switch {
		case !n.params.KeepPunctuations && (unicode.IsPunct(r) || unicode.IsSymbol(r)):
			continue
		case !n.params.KeepNumbers && unicode.IsDigit(r):
			continue
		}
		switch n.params.CaseMode {
		case types.CaseModeLower:
			r = unicode.ToLower(r)
		case types.CaseModeUpper:
			r = unicode.ToUpper(r)
		}
		sb.WriteRune(r)
	}

	if sb.Len() == 0 {
		return EmptyTokenPlaceholder
	}
	return sb.String()
}
