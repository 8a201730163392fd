package domain

import (
	"strings"
	"time"
)

type LiveStatus string

const (
	LiveStatusNone     LiveStatus = "none"
	LiveStatusLive     LiveStatus = "live"
	LiveStatusUpcoming LiveStatus = "upcoming"
)

// NormalizeLiveStatus maps the provider's broadcast marker onto a known
// status. Anything unrecognized is treated as a regular upload.
func NormalizeLiveStatus(raw string) LiveStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live":
		return LiveStatusLive
	case "upcoming":
		return LiveStatusUpcoming
	default:
		return LiveStatusNone
	}
}

type ContentFormat string

const (
	ContentFormatShort   ContentFormat = "short"
	ContentFormatLive    ContentFormat = "live"
	ContentFormatRegular ContentFormat = "regular"
)

type FormatFilter string

const (
	FormatFilterAll     FormatFilter = "all"
	FormatFilterRegular FormatFilter = "regular"
	FormatFilterShort   FormatFilter = "short"
	FormatFilterLive    FormatFilter = "live"
)

// NormalizeFormatFilter returns FormatFilterAll for an empty value and
// false for anything it does not know.
func NormalizeFormatFilter(raw string) (FormatFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "any":
		return FormatFilterAll, true
	case "regular", "video", "videos":
		return FormatFilterRegular, true
	case "short", "shorts":
		return FormatFilterShort, true
	case "live":
		return FormatFilterLive, true
	default:
		return "", false
	}
}

type RankingPolicy string

const (
	RankingPolicyRelevance  RankingPolicy = "relevance"
	RankingPolicyMostViewed RankingPolicy = "mostViewed"
	RankingPolicyNewest     RankingPolicy = "newest"
	RankingPolicyHighestVPH RankingPolicy = "highestVph"
)

const DefaultRankingPolicy = RankingPolicyHighestVPH

func NormalizeRankingPolicy(raw string) (RankingPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return DefaultRankingPolicy, true
	case "relevance", "relevant":
		return RankingPolicyRelevance, true
	case "mostviewed", "most_viewed", "views", "viewcount":
		return RankingPolicyMostViewed, true
	case "newest", "latest", "date":
		return RankingPolicyNewest, true
	case "highestvph", "highest_vph", "vph":
		return RankingPolicyHighestVPH, true
	default:
		return "", false
	}
}

// SearchOrder is the ordering hint passed to the provider's search call.
type SearchOrder string

const (
	SearchOrderRelevance SearchOrder = "relevance"
	SearchOrderDate      SearchOrder = "date"
	SearchOrderViewCount SearchOrder = "viewCount"
)

// SearchOrder picks the provider ordering that gives the policy the best
// recall. It only shapes which candidates come back; the final order is
// always recomputed locally.
func (p RankingPolicy) SearchOrder() SearchOrder {
	switch p {
	case RankingPolicyMostViewed:
		return SearchOrderViewCount
	case RankingPolicyNewest, RankingPolicyHighestVPH:
		return SearchOrderDate
	default:
		return SearchOrderRelevance
	}
}

// VideoRecord is one video as returned by the metadata provider after
// normalization. Records are never mutated once fetched.
type VideoRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	ChannelName     string     `json:"channelName"`
	ChannelID       string     `json:"channelId,omitempty"`
	Description     string     `json:"description"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	ViewCount       int64      `json:"viewCount"`
	DurationSeconds int64      `json:"durationSeconds"`
	LiveStatus      LiveStatus `json:"liveStatus"`
	ThumbnailURL    string     `json:"thumbnailUrl,omitempty"`
}

type QueryVariant struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
}

// SearchQuery is a single provider search call.
type SearchQuery struct {
	Query      string        `json:"query"`
	Language   string        `json:"language,omitempty"`
	Region     string        `json:"region,omitempty"`
	Order      SearchOrder   `json:"order"`
	MaxResults int           `json:"maxResults"`
	Format     ContentFormat `json:"format,omitempty"`
}
