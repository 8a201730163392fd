package research

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"trendscout/researchservice/internal/domain"
)

const (
	DefaultTitleSuggestions = 5
	DefaultTagStringLimit   = 500
	tagSeparator            = ", "
	tagTrimChars            = "|,.-"
)

var ideaBulletPattern = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// SuggestTitles returns the titles of the best ranked videos.
func SuggestTitles(items []domain.RankedVideo, limit int) []string {
	if limit <= 0 {
		limit = DefaultTitleSuggestions
	}
	out := make([]string, 0, limit)
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		out = append(out, title)
	}
	return out
}

// BuildTagString joins the unique lower-cased title words of the result set
// into one comma separated tag list that fits the platform's tag field.
func BuildTagString(items []domain.RankedVideo, limit int) string {
	if limit <= 3 {
		limit = DefaultTagStringLimit
	}
	seen := make(map[string]struct{})
	words := make([]string, 0, 64)
	for _, item := range items {
		for _, field := range strings.Fields(strings.ToLower(item.Title)) {
			word := strings.Trim(field, tagTrimChars)
			if word == "" {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
		}
	}
	tags := strings.Join(words, tagSeparator)
	if utf8.RuneCountInString(tags) <= limit {
		return tags
	}
	runes := []rune(tags)
	return string(runes[:limit-3]) + "..."
}

// LocalIdeas derives content ideas from the niche statistics alone. It is
// the answer whenever the assistant is not available.
func LocalIdeas(keyword string, summary domain.NicheSummary) []string {
	topic := strings.TrimSpace(keyword)
	tokens := make([]string, 0, 3)
	for _, token := range summary.TopTokens {
		if len(tokens) == 3 {
			break
		}
		tokens = append(tokens, token.Token)
	}
	if topic == "" && len(tokens) > 0 {
		topic = tokens[0]
	}
	if topic == "" {
		topic = "this niche"
	}

	ideas := make([]string, 0, 5)
	if len(tokens) >= 2 {
		ideas = append(ideas, fmt.Sprintf("%s: a long-form mix built around %s and %s", titleCase(topic), tokens[0], tokens[1]))
	} else {
		ideas = append(ideas, fmt.Sprintf("%s: a long-form mix for background listening", titleCase(topic)))
	}

	switch dominantFormat(summary.Formats) {
	case domain.ContentFormatShort:
		ideas = append(ideas, fmt.Sprintf("A series of under-a-minute %s clips, since shorts dominate this result set", topic))
	case domain.ContentFormatLive:
		ideas = append(ideas, fmt.Sprintf("A 24/7 %s live stream, since live broadcasts dominate this result set", topic))
	default:
		ideas = append(ideas, fmt.Sprintf("A 1-hour %s session, with 30-second cut-downs as shorts to feed it", topic))
	}

	if summary.PublishHourSamples > 0 {
		peak := summary.MeanPublishHour
		if len(summary.PeakPublishHours) > 0 {
			peak = summary.PeakPublishHours[0]
		}
		ideas = append(ideas, fmt.Sprintf("Schedule uploads around %02d:00 %s, the busiest publishing hour among similar videos", peak, summary.Timezone))
	}
	if len(tokens) >= 3 {
		ideas = append(ideas, fmt.Sprintf("Title formula: %s + %s + a duration hook (e.g. \"3 hours\")", titleCase(tokens[0]), tokens[2]))
	}
	if summary.VPHMean > 0 {
		ideas = append(ideas, fmt.Sprintf("Benchmark: similar videos average %.2f views per hour; beat it within the first 48 hours", summary.VPHMean))
	}
	return ideas
}

func dominantFormat(formats domain.FormatDistribution) domain.ContentFormat {
	switch {
	case formats.Short > formats.Regular && formats.Short >= formats.Live:
		return domain.ContentFormatShort
	case formats.Live > formats.Regular && formats.Live > formats.Short:
		return domain.ContentFormatLive
	default:
		return domain.ContentFormatRegular
	}
}

func titleCase(value string) string {
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError {
		return value
	}
	return strings.ToUpper(string(r)) + value[size:]
}

func buildIdeasPrompt(keyword string, summary domain.NicheSummary, titles []string) string {
	var b strings.Builder
	topic := strings.TrimSpace(keyword)
	if topic == "" {
		topic = "currently trending videos"
	}
	fmt.Fprintf(&b, "Niche: %s\n", topic)
	fmt.Fprintf(&b, "Sample size: %d videos (short %d, live %d, regular %d)\n",
		summary.SampleCount, summary.Formats.Short, summary.Formats.Live, summary.Formats.Regular)
	if len(summary.TopTokens) > 0 {
		words := make([]string, 0, len(summary.TopTokens))
		for _, token := range summary.TopTokens {
			words = append(words, token.Token)
		}
		fmt.Fprintf(&b, "Frequent title words: %s\n", strings.Join(words, ", "))
	}
	if summary.PublishHourSamples > 0 {
		fmt.Fprintf(&b, "Mean publish hour: %02d:00 %s, peak hours: %v\n", summary.MeanPublishHour, summary.Timezone, summary.PeakPublishHours)
	}
	fmt.Fprintf(&b, "Views: mean %d, median %d; mean views per hour %.2f\n", summary.ViewsMean, summary.ViewsMedian, summary.VPHMean)
	if len(titles) > 0 {
		b.WriteString("Top titles:\n")
		for _, title := range titles {
			fmt.Fprintf(&b, "- %s\n", title)
		}
	}
	b.WriteString("Suggest 5 new video ideas for this niche, one per line, each with a working title.")
	return b.String()
}

// parseIdeas splits a generated answer into one idea per non-empty line,
// dropping list markers.
func parseIdeas(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		idea := strings.TrimSpace(ideaBulletPattern.ReplaceAllString(line, ""))
		if idea == "" {
			continue
		}
		out = append(out, idea)
	}
	return out
}
