package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RootLockKey guards operations on files that live directly in the root.
const RootLockKey = "."

var ErrLockTimeout = errors.New("timed out waiting for folder lock")

// PathLocker serializes mutating requests per top-level folder. It is an
// advisory lock: only callers that take it are excluded from each other.
type PathLocker interface {
	// Lock acquires the keys for all given paths and returns a release
	// function. Keys are taken in sorted order.
	Lock(ctx context.Context, paths ...string) (func(), error)
}

// LockKeys maps root-relative paths to their sorted, unique lock keys: the
// first path segment, or RootLockKey for the root itself.
func LockKeys(paths ...string) []string {
	seen := make(map[string]bool, len(paths))
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.Trim(strings.TrimPrefix(p, PublicPrefix), "/")
		key := RootLockKey
		if p != "" {
			key, _, _ = strings.Cut(p, "/")
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// NOOP
// =============================================================================

type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, paths ...string) (func(), error) {
	return func() {}, nil
}

// =============================================================================
// MEMORY
// =============================================================================

// MemoryLocker holds one binary semaphore per key inside the process.
type MemoryLocker struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{sems: make(map[string]chan struct{})}
}

func (l *MemoryLocker) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[key] = s
	}
	return s
}

func (l *MemoryLocker) Lock(ctx context.Context, paths ...string) (func(), error) {
	keys := LockKeys(paths...)
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		s := l.sem(key)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w %q: %v", ErrLockTimeout, key, ctx.Err())
		}
	}
	return release, nil
}

// =============================================================================
// REDIS
// =============================================================================

const redisLockPrefix = "uploads:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between several API instances. Each key expires
// after ttl so that a crashed holder cannot block a folder forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	logger *logrus.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, retry: 50 * time.Millisecond, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, paths ...string) (func(), error) {
	keys := LockKeys(paths...)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	release := func() {
		// The request context may already be done when we release.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(rctx, l.client, []string{held[i]}, token).Err(); err != nil {
				l.logger.WithError(err).WithField("key", held[i]).Warn("Failed to release folder lock")
			}
		}
	}

	for _, key := range keys {
		redisKey := redisLockPrefix + key
		if err := l.acquire(ctx, redisKey, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, redisKey)
	}
	return release, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w %q: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
