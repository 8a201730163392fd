package research

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// wordPattern splits on anything that is not a word character.
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	// termPattern is used for lexicon lookups, where underscores never occur.
	termPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

const defaultMinTokenLength = 3

// foldText applies compatibility normalization and case folding so that
// full-width, accented-composed and mixed-case spellings compare equal.
func foldText(raw string) string {
	return cases.Fold().String(norm.NFKC.String(raw))
}

// Tokenizer is the single word splitter shared by relevance scoring and the
// niche summary.
type Tokenizer struct {
	minLength int
	stopwords map[string]struct{}
}

func NewTokenizer(stopwords []string, minLength int) *Tokenizer {
	if minLength <= 0 {
		minLength = defaultMinTokenLength
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, word := range stopwords {
		key := foldText(strings.TrimSpace(word))
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return &Tokenizer{minLength: minLength, stopwords: set}
}

// Tokens returns the kept tokens of text in order, with repetition.
func (t *Tokenizer) Tokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	matches := wordPattern.FindAllString(foldText(text), -1)
	out := make([]string, 0, len(matches))
	for _, token := range matches {
		if utf8.RuneCountInString(token) < t.minLength {
			continue
		}
		if _, stop := t.stopwords[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}

func (t *Tokenizer) TokenSet(text string) map[string]struct{} {
	tokens := t.Tokens(text)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
