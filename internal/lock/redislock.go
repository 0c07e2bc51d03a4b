// Package lock single-flights background jobs, such as the cart sweep,
// across worker replicas with a Redis lease.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another replica already holds the lease. Periodic
// jobs treat it as "someone else is on it" and skip the tick.
var ErrHeld = errors.New("lock: held by another worker")

const defaultLease = 30 * time.Second

// releaseScript deletes the lease only when it still carries our token, so a
// job that outlived its TTL cannot release a lease re-acquired elsewhere.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker hands out single-flight leases.
type Locker struct {
	R *redis.Client
}

// WithLock runs job while holding the lease for key, or returns ErrHeld when
// another replica got there first. The lease is released when job returns;
// ttl bounds how long a crashed replica can block the others.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, job func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if job == nil {
		return errors.New("lock: job not provided")
	}
	if ttl <= 0 {
		ttl = defaultLease
	}

	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer l.release(key, token)

	return job(ctx)
}

func (l Locker) release(key, token string) {
	// Release on a fresh context so a cancelled job still lets go of the lease.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.R.Eval(ctx, releaseScript, []string{key}, token).Err()
}
