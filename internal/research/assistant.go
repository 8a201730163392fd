package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"trendscout/researchservice/internal/domain"
	"trendscout/researchservice/internal/metrics"
)

var (
	ErrAssistantRateLimited = errors.New("assistant rate limited")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)

const (
	assistantMaxAttempts       = 2
	defaultAssistantRetryDelay = 2 * time.Second
	assistantBlockedNotice     = "The idea assistant hit its usage limit; showing locally generated ideas for the rest of this session."
)

// Assistant generates free text for a prompt. Implementations return an
// error wrapping ErrAssistantRateLimited when the provider signals quota
// or rate limiting.
type Assistant interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type assistantOutcome struct {
	text   string
	source domain.IdeaSource
	notice string
}

// assistantGuard applies the session policy around the assistant: a rate
// limit is retried once, and a second one blocks the assistant for the
// rest of the session.
type assistantGuard struct {
	assistant  Assistant
	retryDelay time.Duration
	logger     *slog.Logger
}

func (g assistantGuard) generate(ctx context.Context, session *domain.Session, prompt string) assistantOutcome {
	local := assistantOutcome{source: domain.IdeaSourceLocal}
	if g.assistant == nil {
		return local
	}
	if session.AssistantBlocked {
		metrics.AssistantCallsTotal.WithLabelValues("blocked").Inc()
		local.notice = g.noticeOnce(session)
		return local
	}
	if cached, ok := session.AssistantCache[prompt]; ok {
		metrics.AssistantCallsTotal.WithLabelValues("cached").Inc()
		return assistantOutcome{text: cached, source: domain.IdeaSourceAssistant}
	}

	for attempt := 1; attempt <= assistantMaxAttempts; attempt++ {
		text, err := g.assistant.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(text) != "" {
			metrics.AssistantCallsTotal.WithLabelValues("ok").Inc()
			if session.AssistantCache == nil {
				session.AssistantCache = make(map[string]string)
			}
			session.AssistantCache[prompt] = text
			return assistantOutcome{text: text, source: domain.IdeaSourceAssistant}
		}
		if err == nil {
			err = ErrAssistantUnavailable
		}
		if !errors.Is(err, ErrAssistantRateLimited) {
			metrics.AssistantCallsTotal.WithLabelValues("error").Inc()
			g.logger.Warn("assistant call failed, using local ideas", slog.String("error", err.Error()))
			return local
		}
		metrics.AssistantCallsTotal.WithLabelValues("rate_limited").Inc()
		g.logger.Info("assistant rate limited",
			slog.String("session", session.ID),
			slog.Int("attempt", attempt),
		)
		if attempt < assistantMaxAttempts && !sleepContext(ctx, g.retryDelay) {
			return local
		}
	}

	session.AssistantBlocked = true
	local.notice = g.noticeOnce(session)
	return local
}

func (g assistantGuard) noticeOnce(session *domain.Session) string {
	if session.NoticeShown {
		return ""
	}
	session.NoticeShown = true
	return assistantBlockedNotice
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
