package research

import (
	"math"
	"sort"
	"time"

	"trendscout/researchservice/internal/domain"
)

// FullMatchBonus is added when every keyword token appears in the document.
const FullMatchBonus = 5

type Ranker struct {
	tokenizer *Tokenizer
}

func NewRanker(tokenizer *Tokenizer) *Ranker {
	if tokenizer == nil {
		tokenizer = NewTokenizer(DefaultLexicon().Stopwords, defaultMinTokenLength)
	}
	return &Ranker{tokenizer: tokenizer}
}

// RelevanceScore counts document tokens (with repetition) that belong to
// the keyword, plus FullMatchBonus when all keyword tokens are present.
func (r *Ranker) RelevanceScore(title, description, keyword string) int {
	keywordSet := r.tokenizer.TokenSet(keyword)
	if len(keywordSet) == 0 {
		return 0
	}
	docTokens := r.tokenizer.Tokens(title + " " + description)
	score := 0
	docSet := make(map[string]struct{}, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = struct{}{}
		if _, ok := keywordSet[token]; ok {
			score++
		}
	}
	for token := range keywordSet {
		if _, ok := docSet[token]; !ok {
			return score
		}
	}
	return score + FullMatchBonus
}

// Rank derives the display values of every video and orders them by the
// policy. Input order is the final tie-break.
func (r *Ranker) Rank(videos []domain.VideoRecord, keyword string, policy domain.RankingPolicy, now time.Time) []domain.RankedVideo {
	items := make([]domain.RankedVideo, 0, len(videos))
	for _, video := range videos {
		age, _ := AgeHours(video.PublishedAt, now)
		items = append(items, domain.RankedVideo{
			VideoRecord:  video,
			Format:       Classify(video),
			Relevance:    r.RelevanceScore(video.Title, video.Description, keyword),
			ViewsPerHour: ViewsPerHour(video.ViewCount, video.PublishedAt, now),
			AgeHours:     roundTo2(age),
			Recency:      RecencyBucket(video.PublishedAt, now),
			DurationText: FormatDuration(video.DurationSeconds),
			ViewsText:    CompactViews(video.ViewCount),
		})
	}
	SortRanked(items, policy)
	return items
}

// SortRanked sorts in place, descending on every key of the policy, and
// renumbers Rank from 1.
func SortRanked(items []domain.RankedVideo, policy domain.RankingPolicy) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareRanked(items[i], items[j], policy) > 0
	})
	for i := range items {
		items[i].Rank = i + 1
	}
}

func compareRanked(left, right domain.RankedVideo, policy domain.RankingPolicy) int {
	vph := func() int { return compareFloat64(left.ViewsPerHour, right.ViewsPerHour) }
	published := func() int { return compareInt64(publishedOrdinal(left), publishedOrdinal(right)) }
	views := func() int { return compareInt64(left.ViewCount, right.ViewCount) }
	relevance := func() int { return compareInt(left.Relevance, right.Relevance) }

	var keys []func() int
	switch policy {
	case domain.RankingPolicyNewest:
		keys = []func() int{published, vph, views, relevance}
	case domain.RankingPolicyMostViewed:
		keys = []func() int{views, vph, published, relevance}
	case domain.RankingPolicyRelevance:
		keys = []func() int{relevance, vph, published, views}
	default:
		keys = []func() int{vph, published, views, relevance}
	}
	for _, key := range keys {
		if cmp := key(); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// publishedOrdinal orders unknown timestamps below every known one,
// including dates before 1970.
func publishedOrdinal(item domain.RankedVideo) int64 {
	if item.PublishedAt == nil {
		return math.MinInt64
	}
	return item.PublishedAt.Unix()
}

func compareInt(left, right int) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func compareInt64(left, right int64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func compareFloat64(left, right float64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}
