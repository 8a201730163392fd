package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"trendscout/researchservice/internal/domain"
)

var serviceNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func publishedHoursAgo(h int) *time.Time {
	value := serviceNow.Add(-time.Duration(h) * time.Hour)
	return &value
}

// newNicheProvider serves a small flute/meditation niche: "flute meditation"
// and its Indonesian variant overlap on one video.
func newNicheProvider() *fakeTrendingProvider {
	provider := &fakeTrendingProvider{fakeVideoProvider: newFakeVideoProvider()}
	provider.results["flute meditation"] = []string{"a", "b", "c"}
	provider.results["seruling meditasi"] = []string{"c", "d"}
	provider.records["a"] = domain.VideoRecord{ID: "a", Title: "Flute Meditation for Sleep", ViewCount: 1000, DurationSeconds: 600, PublishedAt: publishedHoursAgo(10)}
	provider.records["b"] = domain.VideoRecord{ID: "b", Title: "Short flute", ViewCount: 50, DurationSeconds: 30, PublishedAt: publishedHoursAgo(1)}
	provider.records["c"] = domain.VideoRecord{ID: "c", Title: "Live flute radio", ViewCount: 10, LiveStatus: domain.LiveStatusLive, PublishedAt: publishedHoursAgo(2)}
	provider.records["d"] = domain.VideoRecord{ID: "d", Title: "Seruling meditasi", ViewCount: 20000, DurationSeconds: 3600, PublishedAt: publishedHoursAgo(100)}
	provider.trending = []string{"d", "a"}
	return provider
}

func newTestService(provider VideoProvider, opts ...ServiceOption) *Service {
	base := []ServiceOption{
		WithClock(func() time.Time { return serviceNow }),
		WithRetryConfig(RetryConfig{MaxAttempts: 1}),
		WithLogger(discardLogger()),
		WithAssistantRetryDelay(0),
	}
	return NewService(provider, ServiceConfig{
		DefaultLanguages: []string{"id"},
		Regions:          []string{"US", "ID"},
	}, append(base, opts...)...)
}

func TestResearchKeywordFlow(t *testing.T) {
	provider := newNicheProvider()
	svc := newTestService(provider)

	var events []domain.ResearchProgress
	response, err := svc.ResearchWithProgress(context.Background(), domain.ResearchRequest{Query: " flute meditation "}, func(event domain.ResearchProgress) {
		events = append(events, event)
	})
	if err != nil {
		t.Fatalf("research: %v", err)
	}

	if response.SessionID == "" || response.Mode != domain.ResearchModeKeyword || response.Query != "flute meditation" {
		t.Fatalf("unexpected response header: %+v", response)
	}
	if response.Policy != domain.RankingPolicyHighestVPH || response.Format != domain.FormatFilterAll {
		t.Fatalf("expected default view settings, got %s/%s", response.Policy, response.Format)
	}
	if len(response.Variants) != 2 || response.Variants[1].Query != "seruling meditasi" {
		t.Fatalf("unexpected variants: %+v", response.Variants)
	}
	if response.Candidates != 4 {
		t.Fatalf("expected 4 candidates, got %d", response.Candidates)
	}

	// VPH: d=200, a=100, b=50, c=5.
	assertIDs(t, rankedIDs(response.Items), "d", "a", "b", "c")
	if response.Items[0].Rank != 1 || response.Items[0].ViewsPerHour != 200 {
		t.Fatalf("unexpected top item: %+v", response.Items[0])
	}

	if len(provider.searches) != 2 {
		t.Fatalf("expected 2 searches, got %d", len(provider.searches))
	}
	if provider.searches[0].Region != "US" || provider.searches[1].Region != "ID" || provider.searches[1].Language != "id" {
		t.Fatalf("unexpected search parameters: %+v", provider.searches)
	}
	if provider.searches[0].Order != domain.SearchOrderDate {
		t.Fatalf("expected date order for the VPH policy, got %q", provider.searches[0].Order)
	}

	// "Seruling meditasi" shares no word with the keyword.
	if response.Summary.SampleCount != 3 || !response.Summary.RelevantOnly {
		t.Fatalf("unexpected summary: %+v", response.Summary)
	}
	if len(response.Titles) != 4 || response.Titles[0] != "Seruling meditasi" {
		t.Fatalf("unexpected titles: %v", response.Titles)
	}
	if !strings.HasPrefix(response.Tags, "seruling, meditasi, flute") {
		t.Fatalf("unexpected tags: %q", response.Tags)
	}
	if len(events) != 3 {
		t.Fatalf("expected 2 search and 1 details events, got %d", len(events))
	}
	if !response.GeneratedAt.Equal(serviceNow) {
		t.Fatalf("unexpected generatedAt %v", response.GeneratedAt)
	}
}

func TestResearchFormatFilterAndPolicy(t *testing.T) {
	provider := newNicheProvider()
	svc := newTestService(provider)

	response, err := svc.Research(context.Background(), domain.ResearchRequest{
		Query:  "flute meditation",
		Policy: "mostViewed",
		Format: "short",
	})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	assertIDs(t, rankedIDs(response.Items), "b")
	if provider.searches[0].Order != domain.SearchOrderViewCount || provider.searches[0].Format != domain.ContentFormatShort {
		t.Fatalf("unexpected provider hints: %+v", provider.searches[0])
	}
}

func TestRerankReusesSessionCandidates(t *testing.T) {
	provider := newNicheProvider()
	svc := newTestService(provider)
	ctx := context.Background()

	first, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	searches := len(provider.searches)

	reranked, err := svc.Rerank(ctx, first.SessionID, domain.RankingPolicyNewest, domain.FormatFilterAll)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	assertIDs(t, rankedIDs(reranked.Items), "b", "c", "a", "d")
	if reranked.Candidates != 4 || reranked.SessionID != first.SessionID {
		t.Fatalf("unexpected rerank response: %+v", reranked)
	}

	live, err := svc.Rerank(ctx, first.SessionID, "", "live")
	if err != nil {
		t.Fatalf("rerank live: %v", err)
	}
	assertIDs(t, rankedIDs(live.Items), "c")
	if live.Summary.Formats.Live != 1 || live.Summary.SampleCount != 1 {
		t.Fatalf("summary must follow the filtered set: %+v", live.Summary)
	}

	if len(provider.searches) != searches || len(provider.detailCalls) != 1 {
		t.Fatalf("rerank must not call the provider")
	}
}

func TestRerankErrors(t *testing.T) {
	svc := newTestService(newNicheProvider())
	ctx := context.Background()

	if _, err := svc.Rerank(ctx, "missing", "", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Rerank(ctx, "", "", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for blank id, got %v", err)
	}
	if _, err := svc.Rerank(ctx, "missing", "loudest", ""); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if _, err := svc.Rerank(ctx, "missing", "", "vertical"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestResearchValidation(t *testing.T) {
	svc := newTestService(newNicheProvider())
	ctx := context.Background()

	if _, err := svc.Research(ctx, domain.ResearchRequest{Query: strings.Repeat("x", MaxQueryLength+1)}); !errors.Is(err, ErrQueryTooLong) {
		t.Fatalf("expected ErrQueryTooLong, got %v", err)
	}
	if _, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute", Policy: "random"}); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if _, err := NewService(nil, ServiceConfig{}).Research(ctx, domain.ResearchRequest{Query: "flute"}); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestResearchBlankQueryListsTrending(t *testing.T) {
	provider := newNicheProvider()
	svc := newTestService(provider)

	response, err := svc.Research(context.Background(), domain.ResearchRequest{Query: "   "})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	if response.Mode != domain.ResearchModeTrending || len(response.Variants) != 0 {
		t.Fatalf("expected trending mode without variants, got %+v", response)
	}
	if len(provider.regions) != 1 || provider.regions[0] != "US" {
		t.Fatalf("expected the first region to be used, got %v", provider.regions)
	}
	if len(provider.searches) != 0 {
		t.Fatalf("trending must not run keyword searches")
	}
	assertIDs(t, rankedIDs(response.Items), "d", "a")
}

func TestResearchReplacesSessionResultsButKeepsAssistantState(t *testing.T) {
	provider := newNicheProvider()
	provider.results["piano"] = []string{"a"}
	svc := newTestService(provider)
	ctx := context.Background()

	first, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	session, _, _ := svc.sessions.Load(ctx, first.SessionID)
	session.AssistantBlocked = true
	_ = svc.sessions.Save(ctx, session)

	second, err := svc.Research(ctx, domain.ResearchRequest{SessionID: first.SessionID, Query: "piano"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected session to be reused")
	}
	assertIDs(t, rankedIDs(second.Items), "a")

	stored, ok, _ := svc.sessions.Load(ctx, first.SessionID)
	if !ok || !stored.AssistantBlocked || stored.Query != "piano" || len(stored.Candidates) != 1 {
		t.Fatalf("unexpected stored session: %+v", stored)
	}
}

func TestIdeasUsesAssistant(t *testing.T) {
	assistant := &scriptedAssistant{replies: []assistantReply{{text: "1. Flute at dawn\n2. Rain and flute"}}}
	svc := newTestService(newNicheProvider(), WithAssistant(assistant))
	ctx := context.Background()

	research, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	ideas, err := svc.Ideas(ctx, research.SessionID)
	if err != nil {
		t.Fatalf("ideas: %v", err)
	}
	if ideas.Source != domain.IdeaSourceAssistant {
		t.Fatalf("expected assistant ideas, got %+v", ideas)
	}
	assertIDs(t, ideas.Ideas, "Flute at dawn", "Rain and flute")

	if _, err := svc.Ideas(ctx, research.SessionID); err != nil {
		t.Fatalf("ideas again: %v", err)
	}
	if assistant.calls != 1 {
		t.Fatalf("expected cached answer on the second request, got %d calls", assistant.calls)
	}
}

func TestIdeasFallsBackAndBlocksForSession(t *testing.T) {
	assistant := &scriptedAssistant{replies: []assistantReply{{err: rateLimited}}}
	svc := newTestService(newNicheProvider(), WithAssistant(assistant))
	ctx := context.Background()

	research, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}

	first, err := svc.Ideas(ctx, research.SessionID)
	if err != nil {
		t.Fatalf("ideas: %v", err)
	}
	if first.Source != domain.IdeaSourceLocal || first.Notice == "" || len(first.Ideas) == 0 {
		t.Fatalf("expected local ideas with a notice, got %+v", first)
	}

	second, err := svc.Ideas(ctx, research.SessionID)
	if err != nil {
		t.Fatalf("ideas: %v", err)
	}
	if second.Notice != "" || assistant.calls != assistantMaxAttempts {
		t.Fatalf("expected silent fallback without further calls, notice=%q calls=%d", second.Notice, assistant.calls)
	}

	// A fresh session gets the assistant back.
	other, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	if _, err := svc.Ideas(ctx, other.SessionID); err != nil {
		t.Fatalf("ideas: %v", err)
	}
	if assistant.calls != 2*assistantMaxAttempts {
		t.Fatalf("expected a new session to call the assistant again, got %d calls", assistant.calls)
	}
}

func TestIdeasWithoutAssistantAndUnknownSession(t *testing.T) {
	svc := newTestService(newNicheProvider())
	ctx := context.Background()

	if _, err := svc.Ideas(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	research, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	ideas, err := svc.Ideas(ctx, research.SessionID)
	if err != nil {
		t.Fatalf("ideas: %v", err)
	}
	if ideas.Source != domain.IdeaSourceLocal || ideas.Notice != "" || len(ideas.Ideas) < 2 {
		t.Fatalf("unexpected local ideas: %+v", ideas)
	}
}

func TestProviderDiagnosticsAfterResearch(t *testing.T) {
	svc := newTestService(newNicheProvider())
	if items := svc.ProviderDiagnostics(); len(items) != 0 {
		t.Fatalf("expected no diagnostics before any call, got %+v", items)
	}
	if _, err := svc.Research(context.Background(), domain.ResearchRequest{Query: "flute meditation"}); err != nil {
		t.Fatalf("research: %v", err)
	}
	items := svc.ProviderDiagnostics()
	if len(items) != 2 || items[0].Name != "fake:details" || items[1].Name != "fake:search" {
		t.Fatalf("unexpected diagnostics: %+v", items)
	}
	if items[1].TotalRequests != 2 {
		t.Fatalf("expected 2 search requests, got %d", items[1].TotalRequests)
	}
}

func TestExpandQueryUsesConfiguredLexicon(t *testing.T) {
	lexicon := Lexicon{Axes: []LexiconAxis{{Name: "genre", Concepts: []LexiconConcept{
		{Name: "lofi", Terms: []LexiconTerms{{Language: "en", Words: []string{"lofi"}}, {Language: "id", Words: []string{"lofi santai"}}}},
	}}}}
	svc := newTestService(newNicheProvider(), WithLexicon(lexicon))
	got := svc.ExpandQuery("Lofi beats")
	if len(got) != 3 || got[2].Query != "lofi santai" {
		t.Fatalf("unexpected variants: %+v", got)
	}
}

func TestResearchCancelledKeepsPreviousResults(t *testing.T) {
	provider := newNicheProvider()
	svc := newTestService(provider)

	first, err := svc.Research(context.Background(), domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider.onSearch = cancel
	_, err = svc.Research(ctx, domain.ResearchRequest{SessionID: first.SessionID, Query: "piano"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	provider.onSearch = nil
	reranked, err := svc.Rerank(context.Background(), first.SessionID, "", "")
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if reranked.Query != "flute meditation" || reranked.Candidates != 4 {
		t.Fatalf("cancelled submission replaced the session: query=%q candidates=%d", reranked.Query, reranked.Candidates)
	}
	assertIDs(t, rankedIDs(reranked.Items), "d", "a", "b", "c")
}

func TestResearchCancellationsDoNotBlockOtherUsers(t *testing.T) {
	provider := newNicheProvider()
	svc := newTestService(provider)

	for i := 0; i < providerFailureThreshold; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		provider.onSearch = cancel
		if _, err := svc.Research(ctx, domain.ResearchRequest{Query: "flute meditation"}); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		cancel()
	}

	provider.onSearch = nil
	response, err := svc.Research(context.Background(), domain.ResearchRequest{Query: "flute meditation"})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	if len(response.Items) != 4 {
		t.Fatalf("expected a full result after other callers cancelled, got %d items: %+v", len(response.Items), response.Providers)
	}
}
