package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another checkout of the same user is in
// flight.
var ErrLockHeld = errors.New("checkout already in progress")

// CheckoutLock serialises checkouts of a single user. The release function
// is always safe to call.
type CheckoutLock interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// releaseIfMatch deletes the lock only while it still holds our token, so
// a slow request can never free a lock taken over after its TTL expired.
const releaseIfMatch = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type RedisCheckoutLock struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisCheckoutLock(client redisClient, ttl time.Duration) *RedisCheckoutLock {
	return &RedisCheckoutLock{client: client, ttl: ttl}
}

func CheckoutLockKey(userID string) string {
	return "grocery:checkout:lock:" + userID
}

func (l *RedisCheckoutLock) Acquire(ctx context.Context, userID string) (func(), error) {
	key := CheckoutLockKey(userID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return func() {}, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return func() {}, ErrLockHeld
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.client.Eval(ctx, releaseIfMatch, []string{key}, token).Err()
	}, nil
}

// NoopCheckoutLock never blocks. It is used when Redis is not configured.
type NoopCheckoutLock struct{}

func (NoopCheckoutLock) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
