// Package ratelimit shares a per-key token bucket across API replicas through
// Redis.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter refills limit tokens evenly over window for every key.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string

	// OnReject runs for each rejected request before the 429 is written.
	OnReject func(c *gin.Context)
}

// Result is the outcome of taking one token.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// New returns a Limiter. Keys are stored under "rl:"+prefix.
func New(rdb *redis.Client, limit int, window time.Duration, prefix string) *Limiter {
	if !strings.HasPrefix(prefix, "rl:") {
		prefix = "rl:" + prefix
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

// Take consumes a token for key. Without Redis or a limit everything passes.
func (l *Limiter) Take(ctx context.Context, key string) (Result, error) {
	if l.rdb == nil || l.limit <= 0 {
		return Result{Allowed: true, Remaining: -1}, nil
	}
	interval := max(l.interval().Milliseconds(), 1)
	vals, err := bucket.Run(ctx, l.rdb, []string{l.prefix + key}, l.limit, interval, time.Now().UnixMilli()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(vals) != 3 {
		return Result{Allowed: true, Remaining: -1}, nil
	}
	return Result{
		Allowed:    vals[0] == 1,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Middleware limits requests by keyFunc. Redis failures let the request
// through.
func (l *Limiter) Middleware(keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		res, err := l.Take(c.Request.Context(), key)
		if err != nil {
			log.Ctx(c.Request.Context()).Warn().Err(err).Str("key", key).Msg("rate limit check")
			c.Next()
			return
		}
		if res.Remaining >= 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			if l.OnReject != nil {
				l.OnReject(c)
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{"code": "rate_limited", "message": "too many report requests"}})
			return
		}
		c.Next()
	}
}

func (l *Limiter) interval() time.Duration {
	if l.limit <= 0 {
		return 0
	}
	return l.window / time.Duration(l.limit)
}

// UserKey keys the limiter on the authenticated user id, then the client IP.
func UserKey(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// bucket keeps {tokens, ts} in a hash per key and returns
// {allowed, remaining, wait_ms}. The hash expires once a full bucket would
// have refilled.
var bucket = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local data = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  ts = now
else
  local add = math.floor((now - ts) / interval)
  if add > 0 then
    tokens = math.min(tokens + add, capacity)
    ts = ts + add * interval
  end
end
local allowed = 0
local wait = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
else
  wait = ts + interval - now
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], interval * capacity)
return {allowed, tokens, wait}
`)
