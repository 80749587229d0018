package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionTTL        = 30 * time.Minute
	maxSessionContext = 3900
)

// SessionRepo keeps the previous exchange's context per chat client in
// Redis. It is the relay's only conversation memory: the browser never
// stores history, and a page reload starts from a clean view.
type SessionRepo struct {
	redis *redis.Client
}

func NewSessionRepo(redisClient *redis.Client) *SessionRepo {
	return &SessionRepo{redis: redisClient}
}

func sessionKey(clientKey string) string {
	return fmt.Sprintf("session_context:%s", clientKey)
}

// LastContext returns the stored context for the client, or "" when none
// exists or Redis is unreachable (the assistant degrades to a fresh
// exchange either way).
func (r *SessionRepo) LastContext(ctx context.Context, clientKey string) string {
	val, err := r.redis.Get(ctx, sessionKey(clientKey)).Result()
	if err != nil {
		return ""
	}
	return val
}

// SaveContext stores the context used for this exchange, truncated so a
// follow-up prompt stays inside the model's budget.
func (r *SessionRepo) SaveContext(ctx context.Context, clientKey, text string) error {
	if len(text) > maxSessionContext {
		text = text[:maxSessionContext]
	}
	return r.redis.Set(ctx, sessionKey(clientKey), text, sessionTTL).Err()
}
