package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mediagate:rl:"

// RedisStore keeps each client's timestamps in a sorted set scored by time, so
// every instance behind a load balancer shares one window.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and returns a Store implementation.
func NewRedisStore(addr string) (*RedisStore, error) {
	opt := &redis.Options{
		Addr: addr,
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// slidingWindowLua implements prune + count + append atomically.
var slidingWindowLua = redis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local cutoff = ARGV[2]
local window = ARGV[3]
local limit = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
local oldest = tonumber(now)
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
  oldest = tonumber(head[2])
end
redis.call('PEXPIRE', key, window)
return {allowed, oldest, count}
`)

func (r *RedisStore) Record(ctx context.Context, key string, now, windowMs, limit int64) (bool, int64, int64, error) {
	res, err := slidingWindowLua.Run(ctx, r.client, []string{keyPrefix + key},
		now, now-windowMs, windowMs, limit, member(now)).Result()
	if err != nil {
		return false, 0, 0, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 3 {
		return false, 0, 0, fmt.Errorf("unexpected redis response: %v", res)
	}
	vals := make([]int64, 3)
	for i := range vals {
		v, err := toInt64(arr[i])
		if err != nil {
			return false, 0, 0, err
		}
		vals[i] = v
	}
	return vals[0] == 1, vals[1], vals[2], nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]int64, error) {
	zs, err := r.client.ZRangeWithScores(ctx, keyPrefix+key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(zs))
	for _, z := range zs {
		out = append(out, int64(z.Score))
	}
	return out, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, timestamps []int64, ttl time.Duration) error {
	zkey := keyPrefix + key
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, zkey)
	if len(timestamps) > 0 {
		zs := make([]redis.Z, 0, len(timestamps))
		for _, ts := range timestamps {
			zs = append(zs, redis.Z{Score: float64(ts), Member: member(ts)})
		}
		pipe.ZAdd(ctx, zkey, zs...)
		if ttl > 0 {
			pipe.PExpire(ctx, zkey, ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// member makes sorted-set members unique so two requests in the same
// millisecond are both counted.
func member(ts int64) string {
	return strconv.FormatInt(ts, 10) + "-" + uuid.NewString()
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		// redis may return string
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis value %T", v)
	}
}
