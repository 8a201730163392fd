package research

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidLexicon = errors.New("invalid lexicon")

// Lexicon is the configuration data behind query expansion and tokenizing:
// the semantic axes with their per-language terms, and the stopword list.
type Lexicon struct {
	Axes      []LexiconAxis `yaml:"axes"`
	Stopwords []string      `yaml:"stopwords"`
}

type LexiconAxis struct {
	Name     string           `yaml:"name"`
	Concepts []LexiconConcept `yaml:"concepts"`
}

// LexiconConcept is one idea (e.g. "flute") spelled in several languages.
// The first word listed for a language is its canonical term.
type LexiconConcept struct {
	Name  string         `yaml:"name"`
	Terms []LexiconTerms `yaml:"terms"`
}

type LexiconTerms struct {
	Language string   `yaml:"language"`
	Words    []string `yaml:"words"`
}

func (c LexiconConcept) canonical(language string) string {
	for _, terms := range c.Terms {
		if !strings.EqualFold(strings.TrimSpace(terms.Language), language) {
			continue
		}
		for _, word := range terms.Words {
			if value := strings.TrimSpace(word); value != "" {
				return value
			}
		}
	}
	return ""
}

func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

func ParseLexicon(data []byte) (Lexicon, error) {
	var lexicon Lexicon
	if err := yaml.Unmarshal(data, &lexicon); err != nil {
		return Lexicon{}, fmt.Errorf("%w: %v", ErrInvalidLexicon, err)
	}
	if err := lexicon.Validate(); err != nil {
		return Lexicon{}, err
	}
	return lexicon, nil
}

func (l Lexicon) Validate() error {
	if len(l.Axes) == 0 {
		return fmt.Errorf("%w: no axes defined", ErrInvalidLexicon)
	}
	seen := make(map[string]struct{}, len(l.Axes))
	for _, axis := range l.Axes {
		name := strings.ToLower(strings.TrimSpace(axis.Name))
		if name == "" {
			return fmt.Errorf("%w: axis without name", ErrInvalidLexicon)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate axis %q", ErrInvalidLexicon, axis.Name)
		}
		seen[name] = struct{}{}
		for _, concept := range axis.Concepts {
			for _, terms := range concept.Terms {
				if strings.TrimSpace(terms.Language) == "" {
					return fmt.Errorf("%w: concept %q in axis %q has terms without language", ErrInvalidLexicon, concept.Name, axis.Name)
				}
			}
		}
	}
	return nil
}

func lexTerms(language string, words ...string) LexiconTerms {
	return LexiconTerms{Language: language, Words: words}
}

// DefaultLexicon covers the meditation and relaxation music niche in the
// languages the service targets by default.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Axes: []LexiconAxis{
			{
				Name: "instrument",
				Concepts: []LexiconConcept{
					{Name: "flute", Terms: []LexiconTerms{
						lexTerms("en", "flute", "bamboo flute"),
						lexTerms("id", "seruling", "suling"),
						lexTerms("es", "flauta"),
						lexTerms("hi", "bansuri"),
						lexTerms("ja", "フルート", "尺八"),
						lexTerms("ko", "플루트"),
					}},
					{Name: "piano", Terms: []LexiconTerms{
						lexTerms("en", "piano"),
						lexTerms("id", "piano"),
						lexTerms("es", "piano"),
						lexTerms("ja", "ピアノ"),
						lexTerms("ko", "피아노"),
					}},
					{Name: "guitar", Terms: []LexiconTerms{
						lexTerms("en", "guitar"),
						lexTerms("id", "gitar"),
						lexTerms("es", "guitarra"),
						lexTerms("ja", "ギター"),
					}},
					{Name: "singing bowl", Terms: []LexiconTerms{
						lexTerms("en", "singing bowl", "singing bowls"),
						lexTerms("id", "mangkuk tibet"),
						lexTerms("es", "cuenco tibetano", "cuencos tibetanos"),
					}},
					{Name: "gamelan", Terms: []LexiconTerms{
						lexTerms("id", "gamelan"),
						lexTerms("en", "gamelan"),
					}},
				},
			},
			{
				Name: "region",
				Concepts: []LexiconConcept{
					{Name: "native american", Terms: []LexiconTerms{
						lexTerms("en", "native american"),
						lexTerms("id", "indian amerika"),
						lexTerms("es", "nativo americano"),
					}},
					{Name: "tibetan", Terms: []LexiconTerms{
						lexTerms("en", "tibetan"),
						lexTerms("id", "tibet"),
						lexTerms("es", "tibetano"),
					}},
					{Name: "japanese", Terms: []LexiconTerms{
						lexTerms("en", "japanese"),
						lexTerms("id", "jepang"),
						lexTerms("es", "japonés", "japones"),
						lexTerms("ja", "和風", "日本"),
					}},
					{Name: "indian", Terms: []LexiconTerms{
						lexTerms("en", "indian"),
						lexTerms("hi", "भारतीय"),
						lexTerms("es", "hindú", "hindu"),
					}},
					{Name: "javanese", Terms: []LexiconTerms{
						lexTerms("id", "jawa"),
						lexTerms("en", "javanese"),
					}},
					{Name: "celtic", Terms: []LexiconTerms{
						lexTerms("en", "celtic"),
						lexTerms("id", "keltik"),
						lexTerms("es", "celta"),
					}},
				},
			},
			{
				Name: "theme",
				Concepts: []LexiconConcept{
					{Name: "meditation", Terms: []LexiconTerms{
						lexTerms("en", "meditation"),
						lexTerms("id", "meditasi"),
						lexTerms("es", "meditación", "meditacion"),
						lexTerms("hi", "ध्यान"),
						lexTerms("ja", "瞑想"),
						lexTerms("ko", "명상"),
					}},
					{Name: "sleep", Terms: []LexiconTerms{
						lexTerms("en", "sleep", "sleep music"),
						lexTerms("id", "tidur", "musik tidur"),
						lexTerms("es", "dormir"),
						lexTerms("ja", "睡眠"),
						lexTerms("ko", "수면"),
					}},
					{Name: "relaxing", Terms: []LexiconTerms{
						lexTerms("en", "relaxing", "relaxation", "relax"),
						lexTerms("id", "relaksasi", "santai"),
						lexTerms("es", "relajante", "relajación", "relajacion"),
						lexTerms("ja", "リラックス"),
					}},
					{Name: "healing", Terms: []LexiconTerms{
						lexTerms("en", "healing"),
						lexTerms("id", "penyembuhan"),
						lexTerms("es", "sanación", "sanacion"),
						lexTerms("ja", "癒し"),
					}},
					{Name: "focus", Terms: []LexiconTerms{
						lexTerms("en", "focus", "study"),
						lexTerms("id", "fokus", "belajar"),
						lexTerms("es", "concentración", "concentracion"),
					}},
					{Name: "yoga", Terms: []LexiconTerms{
						lexTerms("en", "yoga"),
						lexTerms("id", "yoga"),
						lexTerms("es", "yoga"),
					}},
				},
			},
		},
		Stopwords: []string{
			"the", "and", "for", "with", "from", "this", "that", "your", "you", "are", "our",
			"music", "video", "videos", "official", "full", "new", "best", "hours", "hour",
			"min", "mins", "minutes", "live", "stream", "shorts", "feat", "ft",
			"yang", "dan", "untuk", "dengan", "ini", "itu", "dari", "lagu", "musik", "jam",
			"menit", "terbaru", "versi",
		},
	}
}
