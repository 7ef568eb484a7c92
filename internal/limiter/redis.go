package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared Limiter backing deployments with more than one
// instance. Failure counts and lock flags live under short TTL keys, so a
// restart of redis just resets the counters.
type Redis struct {
	client      redis.UniversalClient
	maxFailures int
	lockout     time.Duration
}

// NewRedis creates a redis-backed limiter. maxFailures <= 0 disables
// limiting.
func NewRedis(client redis.UniversalClient, maxFailures int, lockout time.Duration) *Redis {
	return &Redis{client: client, maxFailures: maxFailures, lockout: lockout}
}

func (r *Redis) Allow(ctx context.Context, username, ip string) (bool, error) {
	if r.maxFailures <= 0 {
		return true, nil
	}

	_, err := r.client.Get(ctx, r.lockKey(username, ip)).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("limiter lock lookup: %w", err)
	}
	return false, nil
}

func (r *Redis) Failure(ctx context.Context, username, ip string) error {
	if r.maxFailures <= 0 {
		return nil
	}

	countKey := r.countKey(username, ip)
	count, err := r.client.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("limiter incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, countKey, r.lockout).Err(); err != nil {
			return fmt.Errorf("limiter expire: %w", err)
		}
	}
	if count >= int64(r.maxFailures) {
		if err := r.client.Set(ctx, r.lockKey(username, ip), "1", r.lockout).Err(); err != nil {
			return fmt.Errorf("limiter lock: %w", err)
		}
		if err := r.client.Del(ctx, countKey).Err(); err != nil {
			return fmt.Errorf("limiter reset count: %w", err)
		}
	}
	return nil
}

func (r *Redis) Success(ctx context.Context, username, ip string) error {
	if err := r.client.Del(ctx, r.countKey(username, ip), r.lockKey(username, ip)).Err(); err != nil {
		return fmt.Errorf("limiter clear: %w", err)
	}
	return nil
}

func (r *Redis) countKey(username, ip string) string {
	return "authgate:login:fail:" + key(username, ip)
}

func (r *Redis) lockKey(username, ip string) string {
	return "authgate:login:lock:" + key(username, ip)
}
