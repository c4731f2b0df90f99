// Package resilience provides the admission and retry primitives used by
// the REST client.
//
// This package includes:
//   - Backoff: exponential retry delays with jitter and server hints
//   - SlidingWindow: rolling-window admission control with bounded waits
//   - Bulkhead: a hard ceiling on concurrent in-flight work
//
// The primitives compose around a single network attempt:
//
//	window := resilience.NewSlidingWindow(resilience.WindowConfig{MaxRequests: 100, Window: time.Minute})
//	pool := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 10})
//	policy := resilience.NewBackoff(resilience.DefaultBackoffConfig())
//
//	if err := window.Admit(ctx); err != nil {
//	    return err
//	}
//	release, err := pool.Acquire(ctx)
//	...
//	time.Sleep(policy.Next(attempt, retryAfter))
package resilience
