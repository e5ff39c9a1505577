package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "teetime/internal/errors"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

type Config struct {
	Addr    string
	LockTTL time.Duration
}

// Locker guards an idempotency key while a request for it is in flight.
// Acquire returns ErrIdempotencyInFlight when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const keyPrefix = "teetime:idem:"

// Release only deletes the lock if it still carries our token.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ValkeyLocker is a Locker shared by all API replicas.
type ValkeyLocker struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewValkeyLocker(cfg Config) (*ValkeyLocker, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ValkeyLocker{client: client, ttl: ttl}, nil
}

func (l *ValkeyLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	k := keyPrefix + key

	cmd := l.client.B().Set().Key(k).Value(token).Nx().PxMilliseconds(l.ttl.Milliseconds()).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, apperrors.ErrIdempotencyInFlight
		}
		return nil, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Exec(ctx, l.client, []string{k}, []string{token}).Error()
	}
	return release, nil
}

func (l *ValkeyLocker) Close() {
	l.client.Close()
}

// LocalLocker is a Locker for a single process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, apperrors.ErrIdempotencyInFlight
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// IsInFlight reports whether err came from a held lock.
func IsInFlight(err error) bool {
	return errors.Is(err, apperrors.ErrIdempotencyInFlight)
}
