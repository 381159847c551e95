package ratelimit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sliding-window counters in a shared Redis instance so
// several API server replicas enforce one budget. Each key is a sorted set
// of request timestamps scored by unix nanoseconds.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
	seq    atomic.Int64
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

const redisKeyPrefix = "ratelimit:"

// allowScript trims expired timestamps, checks the count, and records the
// request in one atomic step. Trim, count, and add must not interleave
// across callers: two replicas reading the same pre-insert count would both
// admit, overshooting the budget.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Allow reports whether the request fits the window. Rejected requests are
// not recorded, so repeated rejections keep failing until the window slides.
func (s *RedisStore) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	now := s.now()
	cutoff := now.Add(-window).UnixNano()

	// Member carries a sequence number so two requests landing on the same
	// nanosecond still count twice.
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatInt(s.seq.Add(1), 10)

	admitted, err := allowScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		cutoff,
		maxRequests,
		now.UnixNano(),
		member,
		window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return admitted == 1, nil
}
