package research

import (
	"context"
	"errors"

	"trendscout/researchservice/internal/domain"
)

var (
	ErrInvalidPolicy   = errors.New("unknown ranking policy")
	ErrInvalidFormat   = errors.New("unknown format filter")
	ErrQueryTooLong    = errors.New("query too long")
	ErrNoProvider      = errors.New("no video provider configured")
	ErrSessionNotFound = errors.New("session not found")
	ErrProviderBlocked = errors.New("provider temporarily blocked")
)

// VideoProvider is the video-metadata platform: keyword search returning
// ids, and batched detail lookup.
type VideoProvider interface {
	Name() string
	Search(ctx context.Context, query domain.SearchQuery) ([]string, error)
	// Details accepts at most MaxDetailBatch ids per call. Unknown ids are
	// simply absent from the result.
	Details(ctx context.Context, ids []string) ([]domain.VideoRecord, error)
}

// TrendingProvider is implemented by providers that can list the current
// most-popular chart for a region.
type TrendingProvider interface {
	Trending(ctx context.Context, region string, limit int) ([]string, error)
}
