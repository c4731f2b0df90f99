package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/IshaanChat/ubiquitous-octo-pancake/observability"
)

// RefreshHook observes each refresh actually performed against the provider.
type RefreshHook func(ctx context.Context, err error, elapsed time.Duration)

// Coordinator serializes credential refreshes for one client.
//
// Every successful refresh advances a generation counter. Headers reports
// the generation its credentials belong to; Refresh(seen) refreshes only if
// seen is still current, so a burst of rejections for the same credentials
// triggers exactly one provider refresh and every caller then retries with
// the new credentials.
type Coordinator struct {
	provider Provider
	onDone   RefreshHook
	group    singleflight.Group

	mu  sync.Mutex
	gen uint64
}

// NewCoordinator wraps p. hook may be nil.
func NewCoordinator(p Provider, hook RefreshHook) *Coordinator {
	return &Coordinator{provider: p, onDone: hook}
}

// Provider returns the wrapped provider.
func (c *Coordinator) Provider() Provider {
	return c.provider
}

// Generation returns the current credential generation.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Headers returns the current credential headers and their generation.
func (c *Coordinator) Headers(ctx context.Context) (map[string]string, uint64, error) {
	// Read the generation first: a refresh landing in between only makes the
	// headers newer than reported, which costs at most a no-op Refresh.
	gen := c.Generation()
	h, err := c.provider.CurrentHeaders(ctx)
	return h, gen, err
}

// Refresh replaces credentials of generation seen. If they were already
// replaced it returns nil at once; if a refresh is in flight it waits for
// that one. Abandoning the wait through ctx does not cancel the refresh.
func (c *Coordinator) Refresh(ctx context.Context, seen uint64) error {
	if c.Generation() != seen {
		return nil
	}

	// One flight per generation: a caller rejected with newer credentials
	// must not join a flight that is finishing for older ones.
	ch := c.group.DoChan(strconv.FormatUint(seen, 10), func() (any, error) {
		if c.Generation() != seen {
			return nil, nil
		}
		rctx, span := observability.StartSpan(context.WithoutCancel(ctx), observability.SpanAuthRefresh)
		start := time.Now()
		err := c.provider.Refresh(rctx)
		observability.EndSpan(span, err)
		if err == nil {
			c.mu.Lock()
			c.gen++
			c.mu.Unlock()
		}
		if c.onDone != nil {
			c.onDone(rctx, err, time.Since(start))
		}
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}
