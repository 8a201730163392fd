package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trendscout/researchservice/internal/domain"
	"trendscout/researchservice/internal/metrics"
)

const (
	DefaultCandidateCap    = 120
	DefaultPerQueryResults = 15
	MaxDetailBatch         = 50

	opSearch   = "search"
	opDetails  = "details"
	opTrending = "trending"
)

type AggregateRequest struct {
	Variants []domain.QueryVariant
	Order    domain.SearchOrder
	PerQuery int
	Format   domain.ContentFormat
	Regions  []string
}

type AggregateResult struct {
	IDs       []string
	Videos    []domain.VideoRecord
	Providers []domain.ProviderStatus
}

type ProgressFunc func(domain.ResearchProgress)

// Aggregator fans one submission out into sequential provider calls and
// folds the answers into a single de-duplicated candidate set.
type Aggregator struct {
	provider  VideoProvider
	cap       int
	batchSize int
	retry     RetryConfig
	limiter   *rate.Limiter
	health    *healthTracker
	logger    *slog.Logger
}

func NewAggregator(provider VideoProvider, candidateCap, batchSize int, retry RetryConfig, limiter *rate.Limiter, health *healthTracker, logger *slog.Logger) *Aggregator {
	if candidateCap <= 0 {
		candidateCap = DefaultCandidateCap
	}
	if batchSize <= 0 || batchSize > MaxDetailBatch {
		batchSize = MaxDetailBatch
	}
	if health == nil {
		health = newHealthTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		provider:  provider,
		cap:       candidateCap,
		batchSize: batchSize,
		retry:     retry,
		limiter:   limiter,
		health:    health,
		logger:    logger,
	}
}

// Aggregate runs one search per variant, in order, with regions assigned
// round-robin by variant position. A failing variant is recorded in the
// provider statuses and skipped. Once the candidate cap is full the
// remaining variants are not searched, since their ids would be cut anyway.
// A cancelled ctx stops the run early; callers must check ctx.Err before
// using the result.
func (a *Aggregator) Aggregate(ctx context.Context, request AggregateRequest, progress ProgressFunc) AggregateResult {
	var result AggregateResult
	seen := make(map[string]struct{}, a.cap)
	perQuery := request.PerQuery
	if perQuery <= 0 {
		perQuery = DefaultPerQueryResults
	}

	for index, variant := range request.Variants {
		if ctx.Err() != nil || len(result.IDs) >= a.cap {
			break
		}
		region := ""
		if len(request.Regions) > 0 {
			region = request.Regions[index%len(request.Regions)]
		}
		status := domain.ProviderStatus{
			Name:      a.provider.Name(),
			Operation: opSearch,
			Query:     variant.Query,
			Language:  variant.Language,
			Region:    region,
		}

		var found []string
		err := a.call(ctx, opSearch, variant.Query, func(callCtx context.Context) error {
			ids, err := a.provider.Search(callCtx, domain.SearchQuery{
				Query:      variant.Query,
				Language:   variant.Language,
				Region:     region,
				Order:      request.Order,
				MaxResults: perQuery,
				Format:     request.Format,
			})
			found = ids
			return err
		})
		if err != nil {
			status.Error = err.Error()
			a.logger.Warn("variant search failed",
				slog.String("query", variant.Query),
				slog.String("language", variant.Language),
				slog.String("region", region),
				slog.String("error", err.Error()),
			)
		} else {
			status.OK = true
			status.Count = mergeIDs(&result.IDs, seen, found, a.cap)
		}
		result.Providers = append(result.Providers, status)
		report(progress, domain.ResearchProgress{
			Phase:     domain.ResearchPhaseSearch,
			Step:      index + 1,
			Total:     len(request.Variants),
			Status:    status,
			Collected: len(result.IDs),
		})
	}

	metrics.CandidatesCollected.Observe(float64(len(result.IDs)))
	a.collectDetails(ctx, &result, progress)
	return result
}

// Trending lists the most-popular chart of one region and fetches its
// details the same way a keyword search would.
func (a *Aggregator) Trending(ctx context.Context, region string, progress ProgressFunc) AggregateResult {
	var result AggregateResult
	status := domain.ProviderStatus{Name: a.provider.Name(), Operation: opTrending, Region: region}

	trending, ok := a.provider.(TrendingProvider)
	if !ok {
		status.Error = "provider has no trending chart"
		result.Providers = append(result.Providers, status)
		return result
	}

	var found []string
	err := a.call(ctx, opTrending, region, func(callCtx context.Context) error {
		ids, err := trending.Trending(callCtx, region, a.cap)
		found = ids
		return err
	})
	if err != nil {
		status.Error = err.Error()
		a.logger.Warn("trending lookup failed", slog.String("region", region), slog.String("error", err.Error()))
	} else {
		status.OK = true
		status.Count = mergeIDs(&result.IDs, make(map[string]struct{}, a.cap), found, a.cap)
	}
	result.Providers = append(result.Providers, status)
	report(progress, domain.ResearchProgress{
		Phase:     domain.ResearchPhaseTrending,
		Step:      1,
		Total:     1,
		Status:    status,
		Collected: len(result.IDs),
	})

	metrics.CandidatesCollected.Observe(float64(len(result.IDs)))
	a.collectDetails(ctx, &result, progress)
	return result
}

// collectDetails looks up ids in fixed-size batches. Output follows the id
// order; ids the provider does not return are dropped.
func (a *Aggregator) collectDetails(ctx context.Context, result *AggregateResult, progress ProgressFunc) {
	total := (len(result.IDs) + a.batchSize - 1) / a.batchSize
	for start, step := 0, 1; start < len(result.IDs); start, step = start+a.batchSize, step+1 {
		if ctx.Err() != nil {
			return
		}
		end := min(start+a.batchSize, len(result.IDs))
		chunk := result.IDs[start:end]
		status := domain.ProviderStatus{
			Name:      a.provider.Name(),
			Operation: opDetails,
			Query:     fmt.Sprintf("batch %d/%d", step, total),
		}

		var records []domain.VideoRecord
		err := a.call(ctx, opDetails, strings.Join(chunk, ","), func(callCtx context.Context) error {
			items, err := a.provider.Details(callCtx, chunk)
			records = items
			return err
		})
		if err != nil {
			status.Error = err.Error()
			a.logger.Warn("detail batch failed",
				slog.Int("batch", step),
				slog.Int("ids", len(chunk)),
				slog.String("error", err.Error()),
			)
		} else {
			byID := make(map[string]domain.VideoRecord, len(records))
			for _, record := range records {
				if _, dup := byID[record.ID]; !dup {
					byID[record.ID] = record
				}
			}
			for _, id := range chunk {
				if record, ok := byID[id]; ok {
					result.Videos = append(result.Videos, record)
					status.Count++
				}
			}
			status.OK = true
		}
		result.Providers = append(result.Providers, status)
		report(progress, domain.ResearchProgress{
			Phase:     domain.ResearchPhaseDetails,
			Step:      step,
			Total:     total,
			Status:    status,
			Collected: len(result.Videos),
		})
	}
}

// call wraps a provider operation with the circuit breaker, the pacing
// limiter and transient-error retries.
func (a *Aggregator) call(ctx context.Context, operation, query string, fn func(context.Context) error) error {
	name := a.provider.Name() + ":" + operation
	now := time.Now()
	if blocked, until, lastErr := a.health.isBlocked(name, now); blocked {
		return fmt.Errorf("%w: %s until %s (%s)", ErrProviderBlocked, name, until.Format(time.RFC3339), lastErr)
	}

	startedAt := time.Now()
	err := RetryWithBackoff(ctx, a.retry, func() error {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
	if ctx.Err() != nil {
		// The caller went away; the provider is not at fault.
		return err
	}
	a.health.record(name, query, err, time.Since(startedAt), time.Now())
	return err
}

func mergeIDs(dst *[]string, seen map[string]struct{}, ids []string, limit int) int {
	added := 0
	for _, raw := range ids {
		if len(*dst) >= limit {
			break
		}
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		*dst = append(*dst, id)
		added++
	}
	return added
}

func report(progress ProgressFunc, event domain.ResearchProgress) {
	if progress != nil {
		progress(event)
	}
}
