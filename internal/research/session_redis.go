package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trendscout/researchservice/internal/domain"
)

const redisSessionPrefix = "research:session:"

// RedisSessionStore keeps sessions in Redis as JSON with a TTL that is
// refreshed on every save.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Load(ctx context.Context, id string) (domain.Session, bool, error) {
	key := strings.TrimSpace(id)
	if key == "" {
		return domain.Session{}, false, nil
	}
	data, err := r.client.Get(ctx, redisSessionPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.Session{}, false, err
	}
	return session, true, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, session domain.Session) error {
	key := strings.TrimSpace(session.ID)
	if key == "" {
		return ErrSessionNotFound
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisSessionPrefix+key, data, r.ttl).Err()
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisSessionPrefix+strings.TrimSpace(id)).Err()
}

func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
