package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/tendant/simple-otp/pkg/clock"
)

// TokenBucket implements the token bucket algorithm for request throttling
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	clock      clock.Clock
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket.
// capacity is the burst size, refillRate the sustained requests per second.
func NewTokenBucket(capacity int, refillRate float64, c clock.Clock) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: c.Now(),
		clock:      c,
	}
}

// Take consumes one token. When the bucket is empty it returns false and the
// time until the next token is available.
func (tb *TokenBucket) Take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()
	tb.refill(now)

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, 0
	}
	if tb.refillRate <= 0 {
		return false, math.MaxInt64
	}
	wait := (1.0 - tb.tokens) / tb.refillRate
	return false, time.Duration(wait * float64(time.Second))
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}
}

// Tokens returns the current number of available tokens
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(tb.clock.Now())
	return tb.tokens
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// KeyedLimiter keeps one token bucket per key (IP, user, route).
type KeyedLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration
	clock      clock.Clock
	mu         sync.Mutex
}

// NewKeyedLimiter creates a limiter whose buckets are dropped after ttl of
// inactivity by Prune. A zero ttl keeps them forever.
func NewKeyedLimiter(capacity int, refillRate float64, ttl time.Duration, c clock.Clock) *KeyedLimiter {
	return &KeyedLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		clock:      c,
	}
}

// Take consumes a token from key's bucket.
func (kl *KeyedLimiter) Take(key string) (bool, time.Duration) {
	kl.mu.Lock()
	bucket, ok := kl.buckets[key]
	if !ok {
		bucket = NewTokenBucket(kl.capacity, kl.refillRate, kl.clock)
		kl.buckets[key] = bucket
	}
	kl.mu.Unlock()

	return bucket.Take()
}

// Remove forgets key.
func (kl *KeyedLimiter) Remove(key string) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	delete(kl.buckets, key)
}

// Prune drops buckets idle for longer than the ttl and returns how many went.
func (kl *KeyedLimiter) Prune() int {
	if kl.ttl <= 0 {
		return 0
	}
	now := kl.clock.Now()

	kl.mu.Lock()
	defer kl.mu.Unlock()
	removed := 0
	for key, bucket := range kl.buckets {
		if now.Sub(bucket.idleSince()) > kl.ttl {
			delete(kl.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.buckets)
}
