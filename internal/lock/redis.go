package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"pantrynotify/internal/types"
)

const redisKeyPrefix = "pantrynotify:lock:"

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisClient is the subset of redis.Cmdable used by RedisLocker.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker holds leases as SET NX PX keys. Used when REDIS_URL is set.
type RedisLocker struct {
	client   RedisClient
	newToken func() string
	now      func() time.Time
}

func NewRedisLocker(client RedisClient) *RedisLocker {
	return &RedisLocker{
		client:   client,
		newToken: newToken,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "invalid REDIS_URL", err)
	}
	return redis.NewClient(opts), nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire redis lock", err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{Key: key, Token: token, ExpiresAt: l.now().Add(ttl)}, nil
}

func (l *RedisLocker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	if err := l.client.Eval(ctx, releaseScript, []string{redisKeyPrefix + lease.Key}, lease.Token).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release redis lock", err)
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
