package research

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"trendscout/researchservice/internal/domain"
)

const (
	DefaultSessionTTL        = 2 * time.Hour
	DefaultSessionMaxEntries = 1000
)

// SessionStore keeps per-user research state for the lifetime of a
// session. Nothing in it is meant to outlive the TTL.
type SessionStore interface {
	Load(ctx context.Context, id string) (domain.Session, bool, error)
	Save(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context, id string) error
}

func NewSessionID() string {
	return uuid.NewString()
}

type memorySession struct {
	session   domain.Session
	expiresAt time.Time
}

// MemorySessionStore is a bounded in-process store; the least recently used
// session is evicted once the capacity is reached.
type MemorySessionStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, memorySession]
	ttl   time.Duration
	now   func() time.Time
}

func NewMemorySessionStore(maxEntries int, ttl time.Duration) *MemorySessionStore {
	if maxEntries <= 0 {
		maxEntries = DefaultSessionMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cache, err := lru.New[string, memorySession](maxEntries)
	if err != nil {
		// Only returned for a non-positive size, which is ruled out above.
		panic(err)
	}
	return &MemorySessionStore{cache: cache, ttl: ttl, now: time.Now}
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (domain.Session, bool, error) {
	key := strings.TrimSpace(id)
	if key == "" {
		return domain.Session{}, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache.Get(key)
	if !ok {
		return domain.Session{}, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.cache.Remove(key)
		return domain.Session{}, false, nil
	}
	return cloneSession(entry.session), true, nil
}

func (m *MemorySessionStore) Save(_ context.Context, session domain.Session) error {
	key := strings.TrimSpace(session.ID)
	if key == "" {
		return ErrSessionNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(key, memorySession{session: cloneSession(session), expiresAt: m.now().Add(m.ttl)})
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(strings.TrimSpace(id))
	return nil
}

// cloneSession copies the parts of a session that callers may mutate.
func cloneSession(session domain.Session) domain.Session {
	out := session
	out.Variants = append([]domain.QueryVariant(nil), session.Variants...)
	out.Candidates = append([]domain.VideoRecord(nil), session.Candidates...)
	out.Providers = append([]domain.ProviderStatus(nil), session.Providers...)
	if session.AssistantCache != nil {
		out.AssistantCache = make(map[string]string, len(session.AssistantCache))
		for key, value := range session.AssistantCache {
			out.AssistantCache[key] = value
		}
	}
	return out
}
