// Package redis shares the outbound rate limit between processes.
//
// SlidingWindow keeps admission timestamps in a sorted set and prunes,
// counts and records them in a single Lua script, so the window ceiling
// holds across every process that uses the same key. Pass it to the HTTP
// client in place of the in-process window:
//
//	rc, err := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	limiter := redis.NewSlidingWindow(rc, cfg.HTTP.RateLimit)
//	client, err := httpclient.New(cfg.HTTP, httpclient.WithLimiter(limiter))
package redis
