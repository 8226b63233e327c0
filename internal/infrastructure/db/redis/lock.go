package redis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/userhub/user-service/internal/core/domain"
)

const (
	defaultLockTTL = 2 * time.Minute
	baseRetryDelay = 50 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-key mutual exclusion lock shared by every replica
// pointing at the same Redis.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	prefix string
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithWait makes Acquire retry for up to d while another holder owns the
// key. Zero means a single attempt.
func WithWait(d time.Duration) LockerOption {
	return func(l *Locker) { l.wait = d }
}

func NewLocker(client redis.UniversalClient, ttl time.Duration, opts ...LockerOption) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	l := &Locker{client: client, ttl: ttl, prefix: "lock:"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes the lock with SET NX, polling with exponential backoff for
// up to the configured wait. It returns domain.ErrLockNotAcquired when the
// key is still held once the wait runs out.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	k := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, domain.ErrLockNotAcquired
		}
		timer := time.NewTimer(min(retryDelay(attempt), remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}

// retryDelay doubles from baseRetryDelay up to maxRetryDelay, with jitter so
// replicas started together do not poll in step.
func retryDelay(attempt int) time.Duration {
	delay := maxRetryDelay
	if attempt < 6 {
		delay = min(baseRetryDelay<<attempt, maxRetryDelay)
	}
	return delay + rand.N(baseRetryDelay)
}
