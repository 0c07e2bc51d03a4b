// Package ratelimit throttles abuse-prone storefront endpoints, checkout
// first of all, with a Redis sliding window keyed by client IP.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "rl:"

// SlidingWindow counts recent events per key in a Redis sorted set scored by
// nanosecond timestamps. Entries older than the window are trimmed on every
// call, so the quota slides instead of resetting on a fixed boundary.
type SlidingWindow struct {
	R      *redis.Client
	Prefix string
}

// Decision is the outcome of one Take call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Take records one event for the key unless the window is already full.
// Rejected attempts are not recorded: a customer hammering the checkout
// button must not push their own reset further out.
func (s SlidingWindow) Take(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	if s.R == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, ResetAt: time.Now().Add(window)}, nil
	}

	now := time.Now()
	bucket := s.bucketFor(key)
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	trim := s.R.TxPipeline()
	trim.ZRemRangeByScore(ctx, bucket, "-inf", cutoff)
	countCmd := trim.ZCard(ctx, bucket)
	oldestCmd := trim.ZRangeWithScores(ctx, bucket, 0, 0)
	if _, err := trim.Exec(ctx); err != nil {
		return Decision{}, err
	}

	// ResetAt is when the oldest surviving event leaves the window.
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}

	count := int(countCmd.Val())
	if count >= max {
		return Decision{Remaining: 0, ResetAt: resetAt}, nil
	}

	// The check and the insert are separate round trips; requests racing
	// each other may overshoot the limit by the degree of concurrency.
	record := s.R.TxPipeline()
	record.ZAdd(ctx, bucket, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString(),
	})
	record.Expire(ctx, bucket, window)
	if _, err := record.Exec(ctx); err != nil {
		return Decision{}, err
	}

	return Decision{Allowed: true, Remaining: max - count - 1, ResetAt: resetAt}, nil
}

func (s SlidingWindow) bucketFor(key string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + key
}
