package research

import "trendscout/researchservice/internal/domain"

const shortMaxDurationSeconds = 60

// Classify assigns exactly one format. A running broadcast is always live,
// whatever its reported duration. An unset status counts as none.
func Classify(video domain.VideoRecord) domain.ContentFormat {
	switch {
	case video.LiveStatus == domain.LiveStatusLive:
		return domain.ContentFormatLive
	case video.LiveStatus != domain.LiveStatusUpcoming && video.DurationSeconds <= shortMaxDurationSeconds:
		return domain.ContentFormatShort
	default:
		return domain.ContentFormatRegular
	}
}

// FilterByFormat keeps the relative order of the input. FormatFilterAll
// returns the input as is.
func FilterByFormat(videos []domain.VideoRecord, filter domain.FormatFilter) []domain.VideoRecord {
	var want domain.ContentFormat
	switch filter {
	case domain.FormatFilterShort:
		want = domain.ContentFormatShort
	case domain.FormatFilterLive:
		want = domain.ContentFormatLive
	case domain.FormatFilterRegular:
		want = domain.ContentFormatRegular
	default:
		return videos
	}
	out := make([]domain.VideoRecord, 0, len(videos))
	for _, video := range videos {
		if Classify(video) == want {
			out = append(out, video)
		}
	}
	return out
}

// formatHint is passed to the provider so that its own filtering narrows
// the search; local classification still decides membership.
func formatHint(filter domain.FormatFilter) domain.ContentFormat {
	switch filter {
	case domain.FormatFilterShort:
		return domain.ContentFormatShort
	case domain.FormatFilterLive:
		return domain.ContentFormatLive
	default:
		return ""
	}
}
