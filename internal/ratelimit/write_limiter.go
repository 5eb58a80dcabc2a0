package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/campus/internal/config"
)

const (
	keyRegistration = "campus:ratelimit:registration:%s"
	keyAllocation   = "campus:ratelimit:allocation:%s"

	lockScopeAllocation = "allocation"
)

// WriteLimiter throttles the registration and allocation write endpoints per
// caller. It is advisory only: correctness of the underlying invariants comes
// from the database guards, never from Redis.
type WriteLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker
	policy *config.PolicyHolder
}

func NewWriteLimiter(cfg config.Config, policy *config.PolicyHolder) *WriteLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &WriteLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		policy:  policy,
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WriteLimiter) AllowRegistration(ctx context.Context, callerKey string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	policy := l.policy.Get()
	return l.bucket.Allow(ctx,
		fmt.Sprintf(keyRegistration, strings.TrimSpace(callerKey)),
		policy.RegistrationRate, policy.RegistrationBurst)
}

func (l *WriteLimiter) AllowAllocation(ctx context.Context, callerKey string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	policy := l.policy.Get()
	return l.bucket.Allow(ctx,
		fmt.Sprintf(keyAllocation, strings.TrimSpace(callerKey)),
		policy.AllocationRate, policy.AllocationBurst)
}

// TryLockStudentAllocation takes a short advisory lock around a student's
// allocation request to shed duplicate submits before they hit the database.
func (l *WriteLimiter) TryLockStudentAllocation(ctx context.Context, studentID string, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, LockKey(lockScopeAllocation, studentID), ttl)
}

func (l *WriteLimiter) ReleaseStudentAllocation(ctx context.Context, studentID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, LockKey(lockScopeAllocation, studentID), token)
}
