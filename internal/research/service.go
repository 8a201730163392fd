package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"trendscout/researchservice/internal/domain"
	"trendscout/researchservice/internal/metrics"
)

const (
	MaxQueryLength       = 500
	defaultMaxConcurrent = 4
	tracerName           = "trendscout/research"
)

var defaultRegions = []string{"US", "ID", "IN", "GB", "PH", "JP", "DE", "BR"}

type ServiceConfig struct {
	MaxVariants      int
	PerQueryResults  int
	CandidateCap     int
	DetailBatch      int
	Regions          []string
	DefaultLanguages []string
	Location         *time.Location
	TopTokens        int
	MaxConcurrent    int64
}

// Service is the research controller. Every submission runs synchronously
// on the caller's goroutine; the only state shared between requests is the
// session store and the provider circuit breaker.
type Service struct {
	provider   VideoProvider
	cfg        ServiceConfig
	lexicon    Lexicon
	expander   *QueryExpander
	aggregator *Aggregator
	ranker     *Ranker
	summarizer *Summarizer
	sessions   SessionStore
	guard      assistantGuard
	sem        *semaphore.Weighted
	retry      RetryConfig
	limiter    *rate.Limiter
	health     *healthTracker
	now        func() time.Time
	logger     *slog.Logger
}

type ServiceOption func(*Service)

func WithSessionStore(store SessionStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

func WithAssistant(assistant Assistant) ServiceOption {
	return func(s *Service) {
		s.guard.assistant = assistant
	}
}

func WithAssistantRetryDelay(delay time.Duration) ServiceOption {
	return func(s *Service) {
		s.guard.retryDelay = delay
	}
}

func WithLexicon(lexicon Lexicon) ServiceOption {
	return func(s *Service) {
		if len(lexicon.Axes) > 0 {
			s.lexicon = lexicon
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithProviderRateLimit paces provider calls to rps requests per second.
func WithProviderRateLimit(rps float64, burst int) ServiceOption {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewService(provider VideoProvider, cfg ServiceConfig, opts ...ServiceOption) *Service {
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = DefaultMaxVariants
	}
	if cfg.PerQueryResults <= 0 {
		cfg.PerQueryResults = DefaultPerQueryResults
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = DefaultCandidateCap
	}
	if cfg.DetailBatch <= 0 || cfg.DetailBatch > MaxDetailBatch {
		cfg.DetailBatch = MaxDetailBatch
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = append([]string(nil), defaultRegions...)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	svc := &Service{
		provider: provider,
		cfg:      cfg,
		lexicon:  DefaultLexicon(),
		sessions: NewMemorySessionStore(DefaultSessionMaxEntries, DefaultSessionTTL),
		guard:    assistantGuard{retryDelay: defaultAssistantRetryDelay},
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		retry:    DefaultRetryConfig(),
		health:   newHealthTracker(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.guard.logger = svc.logger

	tokenizer := NewTokenizer(svc.lexicon.Stopwords, defaultMinTokenLength)
	svc.expander = NewQueryExpander(svc.lexicon, cfg.DefaultLanguages, cfg.MaxVariants)
	svc.ranker = NewRanker(tokenizer)
	svc.summarizer = NewSummarizer(tokenizer, cfg.Location, cfg.TopTokens)
	if provider != nil {
		svc.aggregator = NewAggregator(provider, cfg.CandidateCap, cfg.DetailBatch, svc.retry, svc.limiter, svc.health, svc.logger)
	}
	return svc
}

func (s *Service) ExpandQuery(query string) []domain.QueryVariant {
	return s.expander.Expand(query)
}

func (s *Service) Research(ctx context.Context, request domain.ResearchRequest) (domain.ResearchResponse, error) {
	return s.ResearchWithProgress(ctx, request, nil)
}

// ResearchWithProgress runs one submission: expand, aggregate, filter, rank
// and summarize. The result replaces the session's previous result set.
// A blank query lists the trending chart instead.
func (s *Service) ResearchWithProgress(ctx context.Context, request domain.ResearchRequest, progress ProgressFunc) (domain.ResearchResponse, error) {
	if s.aggregator == nil {
		return domain.ResearchResponse{}, ErrNoProvider
	}
	policy, format, err := validateView(request.Policy, request.Format)
	if err != nil {
		return domain.ResearchResponse{}, err
	}
	keyword := strings.TrimSpace(request.Query)
	if utf8.RuneCountInString(keyword) > MaxQueryLength {
		return domain.ResearchResponse{}, fmt.Errorf("%w (max %d characters)", ErrQueryTooLong, MaxQueryLength)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return domain.ResearchResponse{}, err
	}
	defer s.sem.Release(1)

	startedAt := s.now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "research.submit")
	defer span.End()

	variants := s.expander.Expand(keyword)
	mode := domain.ResearchModeKeyword
	var result AggregateResult
	if len(variants) == 0 {
		mode = domain.ResearchModeTrending
		result = s.aggregator.Trending(ctx, s.cfg.Regions[0], progress)
	} else {
		metrics.QueryVariants.Observe(float64(len(variants)))
		result = s.aggregator.Aggregate(ctx, AggregateRequest{
			Variants: variants,
			Order:    policy.SearchOrder(),
			PerQuery: s.cfg.PerQueryResults,
			Format:   formatHint(format),
			Regions:  s.cfg.Regions,
		}, progress)
	}
	if err := ctx.Err(); err != nil {
		// A submission either completes or fails; partial results never
		// replace the session's current set.
		s.logger.Info("research cancelled",
			slog.String("session", request.SessionID),
			slog.String("query", keyword),
			slog.Int("candidates", len(result.IDs)),
		)
		return domain.ResearchResponse{}, err
	}
	metrics.SubmissionsTotal.WithLabelValues(string(mode)).Inc()
	span.SetAttributes(
		attribute.String("research.mode", string(mode)),
		attribute.Int("research.variants", len(variants)),
		attribute.Int("research.candidates", len(result.IDs)),
		attribute.Int("research.videos", len(result.Videos)),
	)

	session := s.loadOrCreateSession(ctx, request.SessionID)
	session.Query = keyword
	session.Mode = mode
	session.Policy = policy
	session.Format = format
	session.Variants = variants
	session.Candidates = result.Videos
	session.Providers = result.Providers

	response := s.buildResponse(&session)
	response.Candidates = len(result.IDs)
	response.ElapsedMS = s.now().Sub(startedAt).Milliseconds()
	s.saveSession(ctx, session)

	failed := 0
	for _, status := range result.Providers {
		if !status.OK {
			failed++
		}
	}
	s.logger.Info("research completed",
		slog.String("session", session.ID),
		slog.String("query", keyword),
		slog.String("mode", string(mode)),
		slog.Int("variants", len(variants)),
		slog.Int("candidates", len(result.IDs)),
		slog.Int("items", len(response.Items)),
		slog.Int("failedCalls", failed),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response, nil
}

// Rerank re-applies ranking and format filtering to the session's current
// result set without calling the provider.
func (s *Service) Rerank(ctx context.Context, sessionID string, policyRaw domain.RankingPolicy, formatRaw domain.FormatFilter) (domain.ResearchResponse, error) {
	policy, format, err := validateView(policyRaw, formatRaw)
	if err != nil {
		return domain.ResearchResponse{}, err
	}
	session, err := s.requireSession(ctx, sessionID)
	if err != nil {
		return domain.ResearchResponse{}, err
	}
	startedAt := s.now()
	session.Policy = policy
	session.Format = format
	response := s.buildResponse(&session)
	response.Candidates = len(session.Candidates)
	response.ElapsedMS = s.now().Sub(startedAt).Milliseconds()
	s.saveSession(ctx, session)
	return response, nil
}

// Ideas asks the assistant for content ideas about the session's niche and
// falls back to locally derived ones.
func (s *Service) Ideas(ctx context.Context, sessionID string) (domain.IdeasResponse, error) {
	session, err := s.requireSession(ctx, sessionID)
	if err != nil {
		return domain.IdeasResponse{}, err
	}

	ranked := s.rankSession(&session)
	prompt := buildIdeasPrompt(session.Query, session.Summary, SuggestTitles(ranked, DefaultTitleSuggestions))
	outcome := s.guard.generate(ctx, &session, prompt)
	s.saveSession(ctx, session)

	response := domain.IdeasResponse{
		SessionID: session.ID,
		Query:     session.Query,
		Source:    outcome.source,
		Notice:    outcome.notice,
	}
	if outcome.source == domain.IdeaSourceAssistant {
		response.Ideas = parseIdeas(outcome.text)
	}
	if len(response.Ideas) == 0 {
		response.Source = domain.IdeaSourceLocal
		response.Ideas = LocalIdeas(session.Query, session.Summary)
	}
	return response, nil
}

func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return s.health.diagnostics()
}

// rankSession filters and ranks the session's candidates by its current
// view settings and refreshes its summary.
func (s *Service) rankSession(session *domain.Session) []domain.RankedVideo {
	filtered := FilterByFormat(session.Candidates, session.Format)
	ranked := s.ranker.Rank(filtered, session.Query, session.Policy, s.now())
	session.Summary = s.summarizer.Summarize(ranked)
	return ranked
}

func (s *Service) buildResponse(session *domain.Session) domain.ResearchResponse {
	ranked := s.rankSession(session)
	variants := session.Variants
	if variants == nil {
		variants = []domain.QueryVariant{}
	}
	providers := session.Providers
	if providers == nil {
		providers = []domain.ProviderStatus{}
	}
	return domain.ResearchResponse{
		SessionID:   session.ID,
		Query:       session.Query,
		Mode:        session.Mode,
		Policy:      session.Policy,
		Format:      session.Format,
		Variants:    variants,
		Items:       ranked,
		Providers:   providers,
		Summary:     session.Summary,
		Titles:      SuggestTitles(ranked, DefaultTitleSuggestions),
		Tags:        BuildTagString(ranked, DefaultTagStringLimit),
		GeneratedAt: s.now().UTC(),
	}
}

func (s *Service) loadOrCreateSession(ctx context.Context, id string) domain.Session {
	now := s.now().UTC()
	if strings.TrimSpace(id) != "" {
		session, ok, err := s.sessions.Load(ctx, id)
		switch {
		case err != nil:
			metrics.SessionLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("session load failed, starting fresh", slog.String("session", id), slog.String("error", err.Error()))
		case ok:
			metrics.SessionLookupsTotal.WithLabelValues("hit").Inc()
			session.UpdatedAt = now
			return session
		default:
			metrics.SessionLookupsTotal.WithLabelValues("miss").Inc()
		}
	} else {
		id = NewSessionID()
	}
	return domain.Session{ID: strings.TrimSpace(id), CreatedAt: now, UpdatedAt: now}
}

func (s *Service) requireSession(ctx context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, ErrSessionNotFound
	}
	session, ok, err := s.sessions.Load(ctx, id)
	if err != nil {
		metrics.SessionLookupsTotal.WithLabelValues("error").Inc()
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		metrics.SessionLookupsTotal.WithLabelValues("miss").Inc()
		return domain.Session{}, ErrSessionNotFound
	}
	metrics.SessionLookupsTotal.WithLabelValues("hit").Inc()
	session.UpdatedAt = s.now().UTC()
	return session, nil
}

func (s *Service) saveSession(ctx context.Context, session domain.Session) {
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("session save failed", slog.String("session", session.ID), slog.String("error", err.Error()))
	}
}

func validateView(policyRaw domain.RankingPolicy, formatRaw domain.FormatFilter) (domain.RankingPolicy, domain.FormatFilter, error) {
	policy, ok := domain.NormalizeRankingPolicy(string(policyRaw))
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPolicy, policyRaw)
	}
	format, ok := domain.NormalizeFormatFilter(string(formatRaw))
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFormat, formatRaw)
	}
	return policy, format, nil
}
