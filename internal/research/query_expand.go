package research

import (
	"strings"

	"trendscout/researchservice/internal/domain"
)

const DefaultMaxVariants = 10

type termRef struct {
	axis     int
	concept  int
	language string
}

// QueryExpander turns one keyword into equivalent queries in other
// languages by recognizing lexicon terms and re-spelling them.
type QueryExpander struct {
	axes             []LexiconAxis
	index            map[string]termRef
	maxPhrase        int
	defaultLanguages []string
	maxVariants      int
}

func NewQueryExpander(lexicon Lexicon, defaultLanguages []string, maxVariants int) *QueryExpander {
	if maxVariants <= 0 {
		maxVariants = DefaultMaxVariants
	}
	expander := &QueryExpander{
		axes:        lexicon.Axes,
		index:       make(map[string]termRef),
		maxPhrase:   1,
		maxVariants: maxVariants,
	}
	for axisIndex, axis := range lexicon.Axes {
		for conceptIndex, concept := range axis.Concepts {
			for _, group := range concept.Terms {
				language := strings.ToLower(strings.TrimSpace(group.Language))
				for _, word := range group.Words {
					words := termPattern.FindAllString(foldText(word), -1)
					if len(words) == 0 {
						continue
					}
					key := strings.Join(words, " ")
					// First registration wins when a spelling is shared by languages.
					if _, exists := expander.index[key]; exists {
						continue
					}
					expander.index[key] = termRef{axis: axisIndex, concept: conceptIndex, language: language}
					if len(words) > expander.maxPhrase {
						expander.maxPhrase = len(words)
					}
				}
			}
		}
	}
	seen := make(map[string]struct{}, len(defaultLanguages))
	for _, language := range defaultLanguages {
		code := strings.ToLower(strings.TrimSpace(language))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		expander.defaultLanguages = append(expander.defaultLanguages, code)
	}
	return expander
}

func (e *QueryExpander) MaxVariants() int {
	return e.maxVariants
}

// Expand returns the original query first, followed by its translations.
// Blank input yields no variants at all.
func (e *QueryExpander) Expand(query string) []domain.QueryVariant {
	original := strings.TrimSpace(query)
	if original == "" {
		return nil
	}

	detected, languages := e.detect(original)

	variants := make([]domain.QueryVariant, 0, e.maxVariants)
	seen := make(map[string]struct{}, e.maxVariants)
	add := func(variant domain.QueryVariant) {
		key := foldText(variant.Query)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, variant)
	}
	add(domain.QueryVariant{Query: original})

	if len(detected) > 0 {
		for _, language := range e.candidateLanguages(languages) {
			parts := make([]string, 0, len(e.axes))
			for axisIndex := range e.axes {
				conceptIndex, ok := detected[axisIndex]
				if !ok {
					continue
				}
				term := e.axes[axisIndex].Concepts[conceptIndex].canonical(language)
				if term == "" {
					continue
				}
				parts = append(parts, term)
			}
			if len(parts) == 0 {
				continue
			}
			add(domain.QueryVariant{Query: strings.Join(parts, " "), Language: language})
		}
	}

	if len(variants) > e.maxVariants {
		variants = variants[:e.maxVariants]
	}
	return variants
}

// detect scans the query for lexicon terms, longest phrase first. It
// returns the first concept hit per axis and the languages seen in order.
func (e *QueryExpander) detect(query string) (map[int]int, []string) {
	tokens := termPattern.FindAllString(foldText(query), -1)
	detected := make(map[int]int)
	var languages []string
	for i := 0; i < len(tokens); {
		matched := false
		for n := min(e.maxPhrase, len(tokens)-i); n >= 1; n-- {
			ref, ok := e.index[strings.Join(tokens[i:i+n], " ")]
			if !ok {
				continue
			}
			if _, exists := detected[ref.axis]; !exists {
				detected[ref.axis] = ref.concept
			}
			languages = appendUnique(languages, ref.language)
			i += n
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	return detected, languages
}

func (e *QueryExpander) candidateLanguages(detected []string) []string {
	out := make([]string, 0, len(detected)+len(e.defaultLanguages))
	for _, language := range detected {
		out = appendUnique(out, language)
	}
	for _, language := range e.defaultLanguages {
		out = appendUnique(out, language)
	}
	if len(out) > e.maxVariants {
		out = out[:e.maxVariants]
	}
	return out
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
