package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/redis/go-redis/v9"
)

// TokenCache stores access tokens until shortly before they expire.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, token string, ttl time.Duration)
}

type cachedToken struct {
	token   string
	expires time.Time
}

// memoryTokenCache is the process-local cache used when Redis is not configured.
type memoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]cachedToken
}

func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{tokens: map[string]cachedToken{}}
}

func (c *memoryTokenCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[key]
	if !ok || !time.Now().Before(t.expires) {
		return "", false
	}
	return t.token, true
}

func (c *memoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) {
	c.mu.Lock()
	c.tokens[key] = cachedToken{token: token, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// redisTokenCache shares tokens between seed-service replicas.
type redisTokenCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTokenCache(rdb *redis.Client) TokenCache {
	return &redisTokenCache{rdb: rdb, prefix: "headstart:token:"}
}

func (c *redisTokenCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *redisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) {
	_ = c.rdb.Set(ctx, c.prefix+key, token, ttl).Err()
}

// tokenSkew is subtracted from every token lifetime so a cached token is never used at its edge.
const tokenSkew = 30 * time.Second

// tokenTTL returns how long an access token may be cached. It prefers the JWT exp claim and
// falls back to the expires_in value returned alongside the token.
func tokenTTL(raw string, expiresIn int, now time.Time) (time.Duration, error) {
	ttl := time.Duration(expiresIn) * time.Second
	if tok, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false)); err == nil {
		if exp := tok.Expiration(); !exp.IsZero() {
			ttl = exp.Sub(now)
		}
	}
	ttl -= tokenSkew
	if ttl <= 0 {
		return 0, errors.New("access token already expired")
	}
	return ttl, nil
}
