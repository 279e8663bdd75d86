package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
)

const defaultPrefix = "invoicepro:ratelimit"

var _ httprate.LimitCounter = (*RedisCounter)(nil)

// RedisCounter keeps httprate's sliding-window counters in Redis so all
// instances behind the load balancer share one budget per client.
type RedisCounter struct {
	client       redis.Cmdable
	prefix       string
	timeout      time.Duration
	windowLength time.Duration
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client, prefix: defaultPrefix, timeout: time.Second}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	k := c.key(key, currentWindow)
	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	// two windows: the sliding estimate reads the previous one
	pipe.Expire(ctx, k, 2*c.windowLength)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment rate counter: %w", err)
	}
	return nil
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	vals, err := c.client.MGet(ctx, c.key(key, currentWindow), c.key(key, previousWindow)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read rate counters: %w", err)
	}
	if len(vals) != 2 {
		return 0, 0, errors.New("read rate counters: unexpected reply length")
	}
	curr, err := toCount(vals[0])
	if err != nil {
		return 0, 0, err
	}
	prev, err := toCount(vals[1])
	if err != nil {
		return 0, 0, err
	}
	return curr, prev, nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, key, window.Unix())
}

// toCount converts an MGET element; missing keys come back as nil.
func toCount(v any) (int, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("parse rate counter %q: %w", s, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected rate counter type %T", v)
	}
}
