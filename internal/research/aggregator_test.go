package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"trendscout/researchservice/internal/domain"
)

type fakeVideoProvider struct {
	mu          sync.Mutex
	results     map[string][]string
	failures    map[string]error
	records     map[string]domain.VideoRecord
	detailErr   error
	searches    []domain.SearchQuery
	detailCalls [][]string
	// onSearch runs inside every Search before it answers.
	onSearch func()
}

func newFakeVideoProvider() *fakeVideoProvider {
	return &fakeVideoProvider{
		results:  make(map[string][]string),
		failures: make(map[string]error),
		records:  make(map[string]domain.VideoRecord),
	}
}

func (p *fakeVideoProvider) Name() string { return "fake" }

func (p *fakeVideoProvider) Search(ctx context.Context, query domain.SearchQuery) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches = append(p.searches, query)
	if p.onSearch != nil {
		p.onSearch()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := p.failures[query.Query]; err != nil {
		return nil, err
	}
	return append([]string(nil), p.results[query.Query]...), nil
}

// Details answers in reverse order to prove the caller restores id order.
func (p *fakeVideoProvider) Details(ctx context.Context, ids []string) ([]domain.VideoRecord, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detailCalls = append(p.detailCalls, append([]string(nil), ids...))
	if p.detailErr != nil {
		return nil, p.detailErr
	}
	out := make([]domain.VideoRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if record, ok := p.records[ids[i]]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (p *fakeVideoProvider) addVideos(ids ...string) {
	for _, id := range ids {
		p.records[id] = domain.VideoRecord{ID: id, Title: "video " + id, ViewCount: 100, DurationSeconds: 300}
	}
}

type fakeTrendingProvider struct {
	*fakeVideoProvider
	trending []string
	regions  []string
	limit    int
}

func (p *fakeTrendingProvider) Trending(ctx context.Context, region string, limit int) ([]string, error) {
	_ = ctx
	p.regions = append(p.regions, region)
	p.limit = limit
	return append([]string(nil), p.trending...), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(provider VideoProvider, candidateCap, batch int) *Aggregator {
	return NewAggregator(provider, candidateCap, batch, RetryConfig{MaxAttempts: 1}, nil, newHealthTracker(), discardLogger())
}

func variants(queries ...string) []domain.QueryVariant {
	out := make([]domain.QueryVariant, 0, len(queries))
	for i, query := range queries {
		language := ""
		if i > 0 {
			language = "l" + string(rune('a'+i))
		}
		out = append(out, domain.QueryVariant{Query: query, Language: language})
	}
	return out
}

func videoIDs(videos []domain.VideoRecord) []string {
	ids := make([]string, 0, len(videos))
	for _, video := range videos {
		ids = append(ids, video.ID)
	}
	return ids
}

func TestAggregateMergesInFirstSeenOrder(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.results["one"] = []string{"a", "b", "c"}
	provider.results["two"] = []string{"b", "d", " "}
	provider.results["three"] = []string{"e", "a"}
	provider.addVideos("a", "b", "c", "d", "e")

	result := newTestAggregator(provider, 120, 50).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("one", "two", "three"),
		Order:    domain.SearchOrderDate,
		PerQuery: 15,
		Format:   domain.ContentFormatShort,
		Regions:  []string{"US", "ID"},
	}, nil)

	assertIDs(t, result.IDs, "a", "b", "c", "d", "e")
	assertIDs(t, videoIDs(result.Videos), "a", "b", "c", "d", "e")

	if len(provider.searches) != 3 {
		t.Fatalf("expected 3 searches, got %d", len(provider.searches))
	}
	wantRegions := []string{"US", "ID", "US"}
	for i, search := range provider.searches {
		if search.Region != wantRegions[i] {
			t.Fatalf("search %d: expected region %s, got %s", i, wantRegions[i], search.Region)
		}
		if search.Order != domain.SearchOrderDate || search.MaxResults != 15 || search.Format != domain.ContentFormatShort {
			t.Fatalf("search %d: unexpected parameters %+v", i, search)
		}
	}
	if provider.searches[0].Language != "" || provider.searches[1].Language != "lb" {
		t.Fatalf("language hints not forwarded: %+v", provider.searches)
	}

	if len(result.Providers) != 4 {
		t.Fatalf("expected 3 search statuses and 1 details status, got %+v", result.Providers)
	}
	if result.Providers[1].Count != 1 {
		t.Fatalf("expected variant two to add 1 new id, got %d", result.Providers[1].Count)
	}
	details := result.Providers[3]
	if details.Operation != opDetails || !details.OK || details.Count != 5 {
		t.Fatalf("unexpected details status: %+v", details)
	}
}

func TestAggregateSkipsFailedVariants(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.results["one"] = []string{"a"}
	provider.failures["two"] = errors.New("youtube search: status 400: bad request")
	provider.results["three"] = []string{"c"}
	provider.addVideos("a", "c")

	result := newTestAggregator(provider, 120, 50).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("one", "two", "three"),
	}, nil)

	assertIDs(t, videoIDs(result.Videos), "a", "c")
	failed := result.Providers[1]
	if failed.OK || !strings.Contains(failed.Error, "bad request") {
		t.Fatalf("expected failed status for variant two, got %+v", failed)
	}
	if !result.Providers[0].OK || !result.Providers[2].OK {
		t.Fatalf("expected other variants to succeed: %+v", result.Providers)
	}
}

func TestAggregateAllVariantsFail(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.failures["one"] = errors.New("boom")
	provider.failures["two"] = errors.New("boom")

	result := newTestAggregator(provider, 120, 50).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("one", "two"),
	}, nil)

	if len(result.IDs) != 0 || len(result.Videos) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if len(provider.detailCalls) != 0 {
		t.Fatalf("expected no detail lookups, got %d", len(provider.detailCalls))
	}
}

func TestAggregateStopsAtCandidateCap(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.results["one"] = []string{"a", "b"}
	provider.results["two"] = []string{"c", "d"}
	provider.results["three"] = []string{"e"}
	provider.addVideos("a", "b", "c", "d", "e")

	result := newTestAggregator(provider, 3, 50).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("one", "two", "three"),
	}, nil)

	assertIDs(t, result.IDs, "a", "b", "c")
	if len(provider.searches) != 2 {
		t.Fatalf("expected the third variant to be skipped once the cap is hit, got %d searches", len(provider.searches))
	}
}

func TestAggregateNeverExceedsCapOrRepeatsIDs(t *testing.T) {
	provider := newFakeVideoProvider()
	for i, query := range []string{"q1", "q2", "q3", "q4"} {
		ids := make([]string, 0, 40)
		for j := 0; j < 40; j++ {
			ids = append(ids, string(rune('A'+i))+string(rune('a'+j%26))+string(rune('0'+j/26)))
		}
		// Overlap with the previous query.
		if i > 0 {
			ids = append(ids, provider.results[[]string{"q1", "q2", "q3"}[i-1]][:10]...)
		}
		provider.results[query] = ids
	}

	result := newTestAggregator(provider, 100, 50).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("q1", "q2", "q3", "q4"),
	}, nil)

	if len(result.IDs) > 100 {
		t.Fatalf("expected at most 100 ids, got %d", len(result.IDs))
	}
	seen := make(map[string]struct{}, len(result.IDs))
	for _, id := range result.IDs {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestAggregateBatchesDetailsAndDropsMissing(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.results["one"] = []string{"a", "b", "c", "d", "e"}
	provider.addVideos("a", "b", "d", "e")

	var events []domain.ResearchProgress
	result := newTestAggregator(provider, 120, 2).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("one"),
	}, func(event domain.ResearchProgress) {
		events = append(events, event)
	})

	if len(provider.detailCalls) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(provider.detailCalls))
	}
	assertIDs(t, provider.detailCalls[2], "e")
	assertIDs(t, videoIDs(result.Videos), "a", "b", "d", "e")

	if len(events) != 4 {
		t.Fatalf("expected 1 search and 3 details events, got %d", len(events))
	}
	if events[0].Phase != domain.ResearchPhaseSearch || events[0].Collected != 5 {
		t.Fatalf("unexpected search event: %+v", events[0])
	}
	last := events[3]
	if last.Phase != domain.ResearchPhaseDetails || last.Step != 3 || last.Total != 3 || last.Collected != 4 {
		t.Fatalf("unexpected final event: %+v", last)
	}
}

func TestAggregateDetailFailureKeepsOtherBatches(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.results["one"] = []string{"a"}
	provider.addVideos("a")
	provider.detailErr = errors.New("status 500")

	result := newTestAggregator(provider, 120, 50).Aggregate(context.Background(), AggregateRequest{
		Variants: variants("one"),
	}, nil)
	if len(result.IDs) != 1 || len(result.Videos) != 0 {
		t.Fatalf("expected ids without videos, got %+v", result)
	}
	if result.Providers[1].OK {
		t.Fatalf("expected failed details status, got %+v", result.Providers[1])
	}
}

func TestAggregateBlocksProviderAfterRepeatedFailures(t *testing.T) {
	provider := newFakeVideoProvider()
	queries := []string{"q1", "q2", "q3", "q4", "q5"}
	for _, query := range queries {
		provider.failures[query] = errors.New("status 403: forbidden")
	}
	aggregator := newTestAggregator(provider, 120, 50)

	result := aggregator.Aggregate(context.Background(), AggregateRequest{Variants: variants(queries...)}, nil)

	if len(provider.searches) != providerFailureThreshold {
		t.Fatalf("expected %d provider calls before the breaker opens, got %d", providerFailureThreshold, len(provider.searches))
	}
	if !strings.Contains(result.Providers[4].Error, ErrProviderBlocked.Error()) {
		t.Fatalf("expected blocked status, got %+v", result.Providers[4])
	}
	diagnostics := aggregator.health.diagnostics()
	if len(diagnostics) != 1 || diagnostics[0].Name != "fake:search" || diagnostics[0].BlockedUntil == nil {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}
}

func TestAggregateCancellationLeavesBreakerClosed(t *testing.T) {
	provider := newFakeVideoProvider()
	provider.results["flute"] = []string{"a"}
	provider.addVideos("a")
	aggregator := newTestAggregator(provider, 120, 50)

	for i := 0; i < providerFailureThreshold+1; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		provider.onSearch = cancel
		result := aggregator.Aggregate(ctx, AggregateRequest{Variants: variants("flute", "seruling")}, nil)
		cancel()
		if len(result.Videos) != 0 || len(provider.detailCalls) != 0 {
			t.Fatalf("cancelled run must stop before details, got %+v", result)
		}
	}
	if items := aggregator.health.diagnostics(); len(items) != 0 {
		t.Fatalf("cancellations must not be recorded against the provider: %+v", items)
	}

	provider.onSearch = nil
	result := aggregator.Aggregate(context.Background(), AggregateRequest{Variants: variants("flute")}, nil)
	assertIDs(t, videoIDs(result.Videos), "a")
	if !result.Providers[0].OK {
		t.Fatalf("expected a healthy search after cancellations, got %+v", result.Providers[0])
	}
}

func TestTrendingUsesChart(t *testing.T) {
	provider := &fakeTrendingProvider{fakeVideoProvider: newFakeVideoProvider(), trending: []string{"x", "y", "x"}}
	provider.addVideos("x", "y")

	var phases []domain.ResearchPhase
	result := newTestAggregator(provider, 25, 50).Trending(context.Background(), "ID", func(event domain.ResearchProgress) {
		phases = append(phases, event.Phase)
	})

	assertIDs(t, videoIDs(result.Videos), "x", "y")
	if len(provider.regions) != 1 || provider.regions[0] != "ID" || provider.limit != 25 {
		t.Fatalf("unexpected trending call: regions=%v limit=%d", provider.regions, provider.limit)
	}
	if len(phases) != 2 || phases[0] != domain.ResearchPhaseTrending || phases[1] != domain.ResearchPhaseDetails {
		t.Fatalf("unexpected phases: %v", phases)
	}
}

func TestTrendingWithoutChartSupport(t *testing.T) {
	provider := newFakeVideoProvider()
	result := newTestAggregator(provider, 25, 50).Trending(context.Background(), "US", nil)
	if len(result.Videos) != 0 || len(result.Providers) != 1 || result.Providers[0].OK {
		t.Fatalf("expected a single failed status, got %+v", result)
	}
}
