package research

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"trendscout/researchservice/internal/domain"
	"trendscout/researchservice/internal/metrics"
)

const (
	providerFailureThreshold = 3
	providerBlockBase        = 2 * time.Minute
	providerBlockMax         = 15 * time.Minute
)

type providerHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastQuery           string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

// healthTracker is a circuit breaker keyed by provider operation
// (e.g. "youtube:search").
type healthTracker struct {
	mu    sync.Mutex
	state map[string]*providerHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{state: make(map[string]*providerHealth)}
}

func (h *healthTracker) isBlocked(name string, now time.Time) (bool, time.Time, string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return false, time.Time{}, ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.state[key]
	if state == nil {
		return false, time.Time{}, ""
	}
	if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (h *healthTracker) record(name, query string, err error, latency time.Duration, now time.Time) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.state[key]
	if state == nil {
		state = &providerHealth{}
		h.state[key] = state
	}
	state.totalRequests++
	state.lastQuery = strings.TrimSpace(query)
	if latency > 0 {
		state.lastLatency = latency
		metrics.ProviderRequestDuration.WithLabelValues(key).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.ProviderRequestsTotal.WithLabelValues(key, "ok").Inc()
		metrics.ProviderAvailable.WithLabelValues(key).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(key, status).Inc()

	if state.consecutiveFailures >= providerFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.ProviderAvailable.WithLabelValues(key).Set(0)
	}
}

// exponentialBlockDuration is base × 2^(failures - threshold), capped.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - providerFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := providerBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > providerBlockMax {
			return providerBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (h *healthTracker) diagnostics() []domain.ProviderDiagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()

	items := make([]domain.ProviderDiagnostics, 0, len(h.state))
	for name, state := range h.state {
		item := domain.ProviderDiagnostics{
			Name:                name,
			ConsecutiveFailures: state.consecutiveFailures,
			LastError:           state.lastError,
			LastLatencyMS:       state.lastLatency.Milliseconds(),
			LastTimeout:         state.lastTimeout,
			LastQuery:           state.lastQuery,
			TotalRequests:       state.totalRequests,
			TotalFailures:       state.totalFailures,
			TimeoutCount:        state.timeoutCount,
		}
		if !state.blockedUntil.IsZero() {
			blockedUntil := state.blockedUntil
			item.BlockedUntil = &blockedUntil
		}
		if !state.lastSuccessAt.IsZero() {
			lastSuccessAt := state.lastSuccessAt
			item.LastSuccessAt = &lastSuccessAt
		}
		if !state.lastFailureAt.IsZero() {
			lastFailureAt := state.lastFailureAt
			item.LastFailureAt = &lastFailureAt
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
