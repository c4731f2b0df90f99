package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/IshaanChat/ubiquitous-octo-pancake/resilience"
)

// admitScript prunes, counts and records in one atomic step.
// Returns {1, 0} when admitted, {0, wait_ms} otherwise.
var admitScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then
  wait = 1
end
return {0, wait}
`)

// SlidingWindow is a sliding-window limiter whose state lives in a Redis
// sorted set, so every process using the same key shares one window.
// Timestamps come from the local clock in milliseconds.
type SlidingWindow struct {
	rdb    *goredis.Client
	key    string
	config resilience.WindowConfig
	now    func() time.Time
}

var _ resilience.Admitter = (*SlidingWindow)(nil)

// NewSlidingWindow creates a limiter on client. The key is the client's
// KeyPrefix joined with config.Name.
func NewSlidingWindow(client *Client, config resilience.WindowConfig) *SlidingWindow {
	config.ApplyDefaults()
	return &SlidingWindow{
		rdb:    client.rdb,
		key:    client.cfg.KeyPrefix + ":" + config.Name,
		config: config,
		now:    time.Now,
	}
}

// Key returns the sorted-set key holding the window.
func (w *SlidingWindow) Key() string {
	return w.key
}

// Admit waits until admission is granted. It fails with
// resilience.ErrAdmissionTimeout when the minimal wait would exceed MaxWait,
// with ctx.Err() on cancellation, and with a wrapped error if Redis fails.
func (w *SlidingWindow) Admit(ctx context.Context) error {
	deadline := w.now().Add(w.config.MaxWait)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, wait, err := w.TryAdmit(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if w.config.MaxWait < 0 || w.now().Add(wait).After(deadline) {
			return fmt.Errorf("%w: %s at capacity (%d per %v), next slot in %v",
				resilience.ErrAdmissionTimeout, w.key, w.config.MaxRequests, w.config.Window, wait)
		}
		if w.config.OnLimit != nil {
			w.config.OnLimit(w.config.Name, wait)
		}
		if err := resilience.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAdmit records an admission if capacity allows. Otherwise it returns
// false and the minimal delay until the oldest entry leaves the window.
func (w *SlidingWindow) TryAdmit(ctx context.Context) (bool, time.Duration, error) {
	res, err := admitScript.Run(ctx, w.rdb, []string{w.key},
		w.now().UnixMilli(),
		w.config.Window.Milliseconds(),
		w.config.MaxRequests,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis sliding window %s: %w", w.key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis sliding window %s: unexpected reply %v", w.key, res)
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// InWindow returns the number of admissions in the current window.
func (w *SlidingWindow) InWindow(ctx context.Context) (int64, error) {
	after := fmt.Sprintf("(%d", w.now().Add(-w.config.Window).UnixMilli())
	return w.rdb.ZCount(ctx, w.key, after, "+inf").Result()
}
