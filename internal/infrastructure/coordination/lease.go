// Package coordination serializes pipeline runs, in-process or across
// instances through Redis.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"LearningCurator/internal/ports"
)

// DefaultLeaseTTL bounds how long a crashed holder can block other runs.
// A live holder renews the lease, so a run may outlast it.
const DefaultLeaseTTL = 15 * time.Minute

// ErrLeaseNotHeld means the lease expired or was taken over before release.
var ErrLeaseNotHeld = errors.New("run lease not held")

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// renewScript resets the expiry only when the key still carries our token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// LocalLease allows one run at a time within this process.
type LocalLease struct {
	mu sync.Mutex
}

var _ ports.RunLease = (*LocalLease)(nil)

// NewLocalLease returns an unheld lease.
func NewLocalLease() *LocalLease {
	return &LocalLease{}
}

// Acquire never blocks: a held lease yields ErrRunInProgress.
func (l *LocalLease) Acquire(context.Context) (func(context.Context) error, error) {
	if !l.mu.TryLock() {
		return nil, ports.ErrRunInProgress
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}

// leaseClient is the part of the Redis API the lease needs.
type leaseClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLease is a SET NX lease with a per-acquisition token, so one
// instance cannot release another's run. While held it is renewed every
// third of its TTL, so only a crashed holder lets it expire.
type RedisLease struct {
	client     leaseClient
	key        string
	ttl        time.Duration
	renewEvery time.Duration
}

var _ ports.RunLease = (*RedisLease)(nil)

// NewRedisLease builds a lease on key with the given time-to-live.
func NewRedisLease(client leaseClient, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	renewEvery := ttl / 3
	if renewEvery <= 0 {
		renewEvery = ttl
	}
	return &RedisLease{client: client, key: key, ttl: ttl, renewEvery: renewEvery}
}

// Acquire tries once to take the lease.
func (l *RedisLease) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, ports.ErrRunInProgress
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(token, stop, stopped)

	var once sync.Once
	return func(ctx context.Context) error {
		err := ErrLeaseNotHeld
		once.Do(func() {
			close(stop)
			<-stopped
			err = l.release(ctx, token)
		})
		return err
	}, nil
}

func (l *RedisLease) release(ctx context.Context, token string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// renew pushes the expiry out by a full TTL if token still owns the key.
func (l *RedisLease) renew(ctx context.Context, token string) error {
	result, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("renew lease %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// keepAlive renews the lease until stop closes or the lease is lost.
// A failed renewal is retried on the next tick.
func (l *RedisLease) keepAlive(token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.renewEvery)
			err := l.renew(ctx, token)
			cancel()
			if errors.Is(err, ErrLeaseNotHeld) {
				return
			}
		}
	}
}

// NewRedisClient connects and pings the Redis server at addr.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
