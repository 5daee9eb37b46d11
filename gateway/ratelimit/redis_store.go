package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// admitScript prunes, counts and conditionally records in one atomic step so
// concurrent gateway instances cannot over-admit against a shared limit.
var admitScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)
	local recorded = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
		count = count + 1
		recorded = 1
	end
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {count, oldest[2] or '0', recorded}
`)

// RedisStore keeps the sliding-window ledger in Redis sorted sets keyed by
// ratelimit:<key>, scored by request time in milliseconds.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	logger  *zap.Logger
	failing atomic.Bool
}

// NewRedisStore wraps client as a shared ledger. All keys are namespaced
// under "ratelimit:". logger may be nil.
func NewRedisStore(client redis.UniversalClient, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: "ratelimit:", logger: logger}
}

// Increment implements Store.
func (s *RedisStore) Increment(key string, now time.Time, window time.Duration, limit int) (int, time.Time, bool) {
	member := fmt.Sprintf("%d", now.UnixNano())
	res, err := admitScript.Run(context.Background(), s.client,
		[]string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, member).Slice()
	if err != nil || len(res) != 3 {
		// Redis unavailable: fail open rather than block all traffic.
		// Logged once per outage, not per request.
		if s.failing.CompareAndSwap(false, true) {
			s.logger.Warn("redis ledger unavailable, admitting traffic unthrottled",
				zap.String("key", key), zap.Error(err))
		}
		return 0, now, true
	}
	if s.failing.CompareAndSwap(true, false) {
		s.logger.Info("redis ledger recovered")
	}

	count, _ := res[0].(int64)
	recorded, _ := res[2].(int64)
	oldest := now
	if raw, ok := res[1].(string); ok {
		var ms float64
		if _, err := fmt.Sscanf(raw, "%f", &ms); err == nil && ms > 0 {
			oldest = time.UnixMilli(int64(ms))
		}
	}
	return int(count), oldest, recorded == 1
}

// Reset implements Store.
func (s *RedisStore) Reset(prefix string) {
	ctx := context.Background()
	iter := s.client.Scan(ctx, 0, s.prefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		s.client.Del(ctx, iter.Val())
	}
}

// Sweep implements Store. Redis expires ledger keys on its own via PEXPIRE,
// so there is nothing to do here.
func (s *RedisStore) Sweep(time.Time) {}
