package research

import (
	"testing"

	"trendscout/researchservice/internal/domain"
)

func assertVariants(t *testing.T, got []domain.QueryVariant, want []domain.QueryVariant) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d variants %+v, got %d: %+v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("variant %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestExpandTranslatesDetectedAxes(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en", "id"}, DefaultMaxVariants)
	got := expander.Expand("  native american flute music ")
	assertVariants(t, got, []domain.QueryVariant{
		{Query: "native american flute music"},
		{Query: "flute native american", Language: "en"},
		{Query: "seruling indian amerika", Language: "id"},
	})
}

func TestExpandPutsDetectedLanguagesFirst(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en", "id"}, DefaultMaxVariants)
	got := expander.Expand("musik tidur seruling")
	assertVariants(t, got, []domain.QueryVariant{
		{Query: "musik tidur seruling"},
		{Query: "seruling tidur", Language: "id"},
		{Query: "flute sleep", Language: "en"},
	})
}

func TestExpandNonLatinScripts(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en"}, DefaultMaxVariants)
	got := expander.Expand("瞑想 フルート")
	assertVariants(t, got, []domain.QueryVariant{
		{Query: "瞑想 フルート"},
		{Query: "フルート 瞑想", Language: "ja"},
		{Query: "flute meditation", Language: "en"},
	})
}

func TestExpandBlankQuery(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en", "id"}, DefaultMaxVariants)
	if got := expander.Expand("   "); len(got) != 0 {
		t.Fatalf("expected no variants, got %+v", got)
	}
}

func TestExpandWithoutLexiconHits(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en", "id"}, DefaultMaxVariants)
	got := expander.Expand("lofi beats")
	assertVariants(t, got, []domain.QueryVariant{{Query: "lofi beats"}})
}

func TestExpandDeduplicatesCaseInsensitively(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en"}, DefaultMaxVariants)
	got := expander.Expand("Flute")
	assertVariants(t, got, []domain.QueryVariant{{Query: "Flute"}})
}

func TestExpandIsBounded(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"en", "id", "es", "hi", "ja", "ko"}, 2)
	if expander.MaxVariants() != 2 {
		t.Fatalf("expected max variants 2, got %d", expander.MaxVariants())
	}
	for _, query := range []string{"flute meditation", "gamelan jawa relaksasi", "x", "singing bowl tibetan healing"} {
		got := expander.Expand(query)
		if len(got) == 0 || len(got) > 2 {
			t.Fatalf("expand %q: expected 1..2 variants, got %d", query, len(got))
		}
		if got[0].Query != query || got[0].Language != "" {
			t.Fatalf("expand %q: first variant must be the original, got %+v", query, got[0])
		}
	}
}

func TestExpandPrefersLongestPhrase(t *testing.T) {
	expander := NewQueryExpander(DefaultLexicon(), []string{"es"}, DefaultMaxVariants)
	// "indian amerika" is one region term, not the indian concept.
	got := expander.Expand("indian amerika")
	assertVariants(t, got, []domain.QueryVariant{
		{Query: "indian amerika"},
		{Query: "nativo americano", Language: "es"},
	})
}

func TestExpandCustomLexicon(t *testing.T) {
	lexicon := Lexicon{Axes: []LexiconAxis{
		{Name: "genre", Concepts: []LexiconConcept{
			{Name: "rain", Terms: []LexiconTerms{
				{Language: "en", Words: []string{"rain sounds", "rain"}},
				{Language: "de", Words: []string{"regengeräusche", "regen"}},
			}},
		}},
	}}
	expander := NewQueryExpander(lexicon, []string{"de"}, 5)
	got := expander.Expand("Rain Sounds for study")
	assertVariants(t, got, []domain.QueryVariant{
		{Query: "Rain Sounds for study"},
		{Query: "rain sounds", Language: "en"},
		{Query: "regengeräusche", Language: "de"},
	})
}
