// Package ratelimit implements per-key fixed window request limits.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter decides whether a request identified by key is within quota.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisFixedWindow counts requests per window slot in Redis so every replica
// shares the same quota.
type RedisFixedWindow struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisFixedWindow creates a distributed limiter on an existing client.
func NewRedisFixedWindow(client redis.Scripter, prefix string, limit int, window time.Duration) (*RedisFixedWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "relay:ratelimit"
	}
	return &RedisFixedWindow{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}, nil
}

// Allow increments the key's counter for the current window.
func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, normalizeKey(key), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return count <= int64(l.limit), nil
}

type localWindow struct {
	slot  int64
	count int
}

// LocalFixedWindow keeps counters in process memory.
type LocalFixedWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*localWindow
}

// NewLocalFixedWindow creates an in-process limiter.
func NewLocalFixedWindow(limit int, window time.Duration) (*LocalFixedWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &LocalFixedWindow{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*localWindow),
	}, nil
}

// Allow increments the key's counter for the current window.
func (l *LocalFixedWindow) Allow(_ context.Context, key string) (bool, error) {
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()
	key = normalizeKey(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.slot != slot {
		if len(l.windows) > 4096 {
			l.purge(slot)
		}
		w = &localWindow{slot: slot}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit, nil
}

func (l *LocalFixedWindow) purge(current int64) {
	for k, w := range l.windows {
		if w.slot != current {
			delete(l.windows, k)
		}
	}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
