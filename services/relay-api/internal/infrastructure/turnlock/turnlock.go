// Package turnlock serialises publish attempts on a relay session.
package turnlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
)

// RedisLocker is a redsync mutex per session, shared by every replica.
type RedisLocker struct {
	client redis.UniversalClient
	rs     *redsync.Redsync
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisLocker builds a locker on an existing client. ttl bounds how long a
// crashed publisher can hold a turn.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "turn-lock").Logger(),
	}
}

// Acquire tries the lock once.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	name := l.prefix + ":" + key
	mutex := l.rs.NewMutex(name, redsync.WithExpiry(l.ttl), redsync.WithTries(1))

	if err := mutex.TryLockContext(ctx); err != nil {
		if l.held(ctx, name, err) {
			return nil, fmt.Errorf("%w: %s", relay.ErrTurnLocked, key)
		}
		return nil, fmt.Errorf("acquire publish lock: %w", err)
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return fmt.Errorf("release publish lock: %w", err)
		}
		if !ok {
			l.log.Warn().Str("lock", name).Msg("publish lock expired before release")
		}
		return nil
	}, nil
}

func (l *RedisLocker) held(ctx context.Context, name string, err error) bool {
	var taken *redsync.ErrTaken
	var nodeTaken *redsync.ErrNodeTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) || errors.As(err, &nodeTaken) {
		return true
	}
	n, existsErr := l.client.Exists(ctx, name).Result()
	return existsErr == nil && n > 0
}

// LocalLocker is an in-process try-lock for single replica deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker returns an empty locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire takes key if free.
func (l *LocalLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, fmt.Errorf("%w: %s", relay.ErrTurnLocked, key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

var (
	_ relay.TurnLocker = (*RedisLocker)(nil)
	_ relay.TurnLocker = (*LocalLocker)(nil)
)
