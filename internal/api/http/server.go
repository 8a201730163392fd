package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trendscout/researchservice/internal/domain"
	"trendscout/researchservice/internal/research"
)

const sessionHeader = "X-Session-ID"

type ResearchService interface {
	Research(ctx context.Context, request domain.ResearchRequest) (domain.ResearchResponse, error)
	ResearchWithProgress(ctx context.Context, request domain.ResearchRequest, progress research.ProgressFunc) (domain.ResearchResponse, error)
	Rerank(ctx context.Context, sessionID string, policy domain.RankingPolicy, format domain.FormatFilter) (domain.ResearchResponse, error)
	Ideas(ctx context.Context, sessionID string) (domain.IdeasResponse, error)
	ExpandQuery(query string) []domain.QueryVariant
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type Server struct {
	research  ResearchService
	logger    *slog.Logger
	rateLimit float64
	rateBurst int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimit sets the global request budget. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimit = rps
		s.rateBurst = burst
	}
}

func NewServer(researchService ResearchService, options ...ServerOption) *Server {
	server := &Server{
		research:  researchService,
		logger:    slog.Default(),
		rateLimit: 20,
		rateBurst: 40,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/research/stream", s.handleResearchStream)
	mux.HandleFunc("/research/rerank", s.handleRerank)
	mux.HandleFunc("/research/ideas", s.handleIdeas)
	mux.HandleFunc("/research/expand", s.handleExpand)
	mux.HandleFunc("/research/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/research", s.handleResearch)
	var handler http.Handler = otelhttp.NewHandler(mux, "research",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !probePaths[r.URL.Path]
		}),
	)
	if s.rateLimit > 0 {
		handler = rateLimitMiddleware(s.rateLimit, s.rateBurst, handler)
	}
	return recoveryMiddleware(s.logger, accessMiddleware(s.logger, handler))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/research" {
		http.NotFound(w, r)
		return
	}
	if !s.ready(w, r) {
		return
	}

	request := parseResearchRequest(r)
	response, err := s.research.Research(r.Context(), request)
	if err != nil {
		s.writeServiceError(w, "research request failed", request.Query, err)
		return
	}
	w.Header().Set(sessionHeader, response.SessionID)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleResearchStream(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/research/stream" {
		http.NotFound(w, r)
		return
	}
	if !s.ready(w, r) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming is not supported")
		return
	}

	request := parseResearchRequest(r)
	if request.SessionID == "" {
		request.SessionID = research.NewSessionID()
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(sessionHeader, request.SessionID)

	if err := writeSSEEvent(w, flusher, "bootstrap", map[string]any{
		"sessionId": request.SessionID,
		"query":     request.Query,
		"variants":  s.research.ExpandQuery(request.Query),
		"status":    "started",
	}); err != nil {
		return // Client disconnected
	}

	disconnected := false
	response, err := s.research.ResearchWithProgress(r.Context(), request, func(event domain.ResearchProgress) {
		if disconnected {
			return
		}
		if writeErr := writeSSEEvent(w, flusher, "progress", event); writeErr != nil {
			disconnected = true
		}
	})
	if disconnected {
		return
	}
	if err != nil {
		s.logger.Warn("research stream failed", slog.String("query", truncate(request.Query, 80)), slog.String("error", err.Error()))
		_ = writeSSEEvent(w, flusher, "error", map[string]any{"message": err.Error()})
		_ = writeSSEEvent(w, flusher, "done", map[string]any{"final": true})
		return
	}
	if err := writeSSEEvent(w, flusher, "result", response); err != nil {
		return
	}
	_ = writeSSEEvent(w, flusher, "done", map[string]any{"final": true})
}

func (s *Server) handleRerank(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/research/rerank" {
		http.NotFound(w, r)
		return
	}
	if !s.ready(w, r) {
		return
	}
	sessionID := sessionFromRequest(r)
	q := r.URL.Query()
	response, err := s.research.Rerank(r.Context(), sessionID,
		domain.RankingPolicy(strings.TrimSpace(q.Get("policy"))),
		domain.FormatFilter(strings.TrimSpace(q.Get("format"))),
	)
	if err != nil {
		s.writeServiceError(w, "rerank failed", sessionID, err)
		return
	}
	w.Header().Set(sessionHeader, response.SessionID)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/research/ideas" {
		http.NotFound(w, r)
		return
	}
	if !s.ready(w, r) {
		return
	}
	sessionID := sessionFromRequest(r)
	response, err := s.research.Ideas(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, "ideas request failed", sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/research/expand" {
		http.NotFound(w, r)
		return
	}
	if !s.ready(w, r) {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len([]rune(query)) > research.MaxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("query too long (max %d characters)", research.MaxQueryLength))
		return
	}
	variants := s.research.ExpandQuery(query)
	if variants == nil {
		variants = []domain.QueryVariant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    query,
		"variants": variants,
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w, r) {
		return
	}
	items := s.research.ProviderDiagnostics()
	if items == nil {
		items = []domain.ProviderDiagnostics{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ready rejects anything but GET and guards against a missing service.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if s.research == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "research service is not configured")
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, message, subject string, err error) {
	s.logger.Warn(message,
		slog.String("subject", truncate(subject, 80)),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, research.ErrInvalidPolicy),
		errors.Is(err, research.ErrInvalidFormat),
		errors.Is(err, research.ErrQueryTooLong):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, research.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, research.ErrNoProvider):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "research failed")
	}
}

func parseResearchRequest(r *http.Request) domain.ResearchRequest {
	q := r.URL.Query()
	return domain.ResearchRequest{
		SessionID: sessionFromRequest(r),
		Query:     strings.TrimSpace(q.Get("q")),
		Policy:    domain.RankingPolicy(strings.TrimSpace(q.Get("policy"))),
		Format:    domain.FormatFilter(strings.TrimSpace(q.Get("format"))),
	}
}

func sessionFromRequest(r *http.Request) string {
	if value := strings.TrimSpace(r.URL.Query().Get("session")); value != "" {
		return value
	}
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
