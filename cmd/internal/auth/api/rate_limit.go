package authapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Limiter counts failed logins per key. Each failure extends the window, so a
// key stays blocked until window has passed since its last failure.
type Limiter interface {
	// Blocked reports whether key has reached the failure limit, and for how long it stays blocked.
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	// Fail records one failure for key.
	Fail(ctx context.Context, key string) error
	// Reset forgets key.
	Reset(ctx context.Context, key string) error
}

// RedisLimiter shares failure counters across instances.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter returns a limiter storing counters under "<prefix>:<key>".
func NewRedisLimiter(client *redis.Client, max int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "memorybook:login"
	}
	return &RedisLimiter{client: client, max: max, window: window, prefix: prefix}
}

func (l *RedisLimiter) key(k string) string { return fmt.Sprintf("%s:%s", l.prefix, k) }

func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.max <= 0 {
		return false, 0, nil
	}
	n, err := l.client.Get(ctx, l.key(key)).Int()
	if err == redis.Nil {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if n < l.max {
		return false, 0, nil
	}
	ttl, err := l.client.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return true, l.window, err
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return true, ttl, nil
}

// Fail increments the counter and restarts its expiry in one MULTI block.
func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := l.key(key)
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

// LocalLimiter keeps counters in a bounded in-process cache.
type LocalLimiter struct {
	mu     sync.Mutex
	cache  *lru.LRU[string, failures]
	max    int
	window time.Duration
	now    func() time.Time
}

type failures struct {
	count int
	last  time.Time
}

var _ Limiter = (*LocalLimiter)(nil)

// NewLocalLimiter tracks at most size keys.
func NewLocalLimiter(size, max int, window time.Duration) *LocalLimiter {
	if size <= 0 {
		size = 10_000
	}
	return &LocalLimiter{
		cache:  lru.NewLRU[string, failures](size, nil, window),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (l *LocalLimiter) Blocked(_ context.Context, key string) (bool, time.Duration, error) {
	if l.max <= 0 {
		return false, 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.current(key)
	if !ok || f.count < l.max {
		return false, 0, nil
	}
	return true, f.last.Add(l.window).Sub(l.now()), nil
}

func (l *LocalLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, _ := l.current(key)
	f.count++
	f.last = l.now()
	l.cache.Add(key, f)
	return nil
}

func (l *LocalLimiter) Reset(_ context.Context, key string) error {
	l.cache.Remove(key)
	return nil
}

func (l *LocalLimiter) current(key string) (failures, bool) {
	f, ok := l.cache.Get(key)
	if !ok {
		return failures{}, false
	}
	if !l.now().Before(f.last.Add(l.window)) {
		l.cache.Remove(key)
		return failures{}, false
	}
	return f, true
}
