package research

import (
	"math"
	"sort"
	"time"

	"trendscout/researchservice/internal/domain"
)

const (
	DefaultTopTokens = 12
	peakHourCount    = 3
)

// Summarizer computes the niche statistics over a ranked result set.
type Summarizer struct {
	tokenizer *Tokenizer
	location  *time.Location
	topTokens int
}

func NewSummarizer(tokenizer *Tokenizer, location *time.Location, topTokens int) *Summarizer {
	if tokenizer == nil {
		tokenizer = NewTokenizer(DefaultLexicon().Stopwords, defaultMinTokenLength)
	}
	if location == nil {
		location = time.UTC
	}
	if topTokens <= 0 {
		topTokens = DefaultTopTokens
	}
	return &Summarizer{tokenizer: tokenizer, location: location, topTokens: topTokens}
}

func (s *Summarizer) Summarize(items []domain.RankedVideo) domain.NicheSummary {
	summary := domain.NicheSummary{
		Timezone:         s.location.String(),
		TopTokens:        []domain.TokenCount{},
		PeakPublishHours: []int{},
	}
	if len(items) == 0 {
		return summary
	}

	subset := make([]domain.RankedVideo, 0, len(items))
	for _, item := range items {
		if item.Relevance > 0 {
			subset = append(subset, item)
		}
	}
	if len(subset) == 0 {
		subset = items
	} else {
		summary.RelevantOnly = true
	}
	summary.SampleCount = len(subset)

	for _, item := range subset {
		switch item.Format {
		case domain.ContentFormatShort:
			summary.Formats.Short++
		case domain.ContentFormatLive:
			summary.Formats.Live++
		default:
			summary.Formats.Regular++
		}
	}

	summary.TopTokens = s.topTokenCounts(subset)
	s.publishHours(subset, &summary)

	views := make([]int64, 0, len(subset))
	var viewSum int64
	var vphSum float64
	for _, item := range subset {
		views = append(views, item.ViewCount)
		viewSum += item.ViewCount
		vphSum += item.ViewsPerHour
	}
	summary.ViewsMean = viewSum / int64(len(views))
	summary.ViewsMedian = medianInt64(views)
	summary.VPHMean = roundTo2(vphSum / float64(len(subset)))
	return summary
}

func (s *Summarizer) topTokenCounts(items []domain.RankedVideo) []domain.TokenCount {
	counts := make(map[string]int)
	order := make([]string, 0, 64)
	for _, item := range items {
		for _, token := range s.tokenizer.Tokens(item.Title + " " + item.Description) {
			if _, seen := counts[token]; !seen {
				order = append(order, token)
			}
			counts[token]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > s.topTokens {
		order = order[:s.topTokens]
	}
	out := make([]domain.TokenCount, 0, len(order))
	for _, token := range order {
		out = append(out, domain.TokenCount{Token: token, Count: counts[token]})
	}
	return out
}

// publishHours builds the hour-of-day histogram in the target timezone.
// Records without a timestamp are left out of this statistic only.
func (s *Summarizer) publishHours(items []domain.RankedVideo, summary *domain.NicheSummary) {
	counts := make(map[int]int, 24)
	order := make([]int, 0, 24)
	total := 0
	for _, item := range items {
		if item.PublishedAt == nil {
			continue
		}
		hour := item.PublishedAt.In(s.location).Hour()
		if _, seen := counts[hour]; !seen {
			order = append(order, hour)
		}
		counts[hour]++
		total += hour
		summary.PublishHourSamples++
	}
	if summary.PublishHourSamples == 0 {
		return
	}
	mean := float64(total) / float64(summary.PublishHourSamples)
	summary.MeanPublishHour = int(math.Round(mean)) % 24

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > peakHourCount {
		order = order[:peakHourCount]
	}
	summary.PeakPublishHours = order
}

func medianInt64(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
