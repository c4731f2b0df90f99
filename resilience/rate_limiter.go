package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrAdmissionTimeout is returned when admission cannot be granted within MaxWait.
var ErrAdmissionTimeout = errors.New("rate limit admission timeout")

// Admitter grants permission to proceed with one network attempt.
type Admitter interface {
	// Admit blocks until admission is granted, ctx is done, or the
	// implementation's wait bound is exceeded (ErrAdmissionTimeout).
	Admit(ctx context.Context) error
}

// WindowConfig configures a sliding-window rate limiter.
type WindowConfig struct {
	// Name identifies this limiter for logging.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxRequests is the number of admissions allowed in any trailing Window.
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests" validate:"gte=0"`
	// Window is the length of the rolling window.
	Window time.Duration `yaml:"window" mapstructure:"window" validate:"gte=0"`
	// MaxWait bounds how long Admit may wait. Zero means one Window;
	// negative means never wait.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
	// Burst enables token-bucket pacing at MaxRequests/Window when positive.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	// OnLimit is called when a caller has to wait for capacity.
	OnLimit func(name string, wait time.Duration) `yaml:"-" mapstructure:"-"`
}

// DefaultWindowConfig returns sensible defaults.
func DefaultWindowConfig(name string) WindowConfig {
	return WindowConfig{
		Name:        name,
		MaxRequests: 100,
		Window:      time.Minute,
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *WindowConfig) ApplyDefaults() {
	if c.MaxRequests <= 0 {
		c.MaxRequests = 100
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.MaxWait == 0 {
		c.MaxWait = c.Window
	}
}

// SlidingWindow admits at most MaxRequests in any trailing Window.
// All state is guarded by a single mutex; admission is recorded in the
// same critical section that checks capacity.
type SlidingWindow struct {
	config WindowConfig
	pacer  *rate.Limiter
	now    func() time.Time

	mu     sync.Mutex
	stamps []time.Time
}

var _ Admitter = (*SlidingWindow)(nil)

// NewSlidingWindow creates a new sliding-window limiter.
func NewSlidingWindow(config WindowConfig) *SlidingWindow {
	config.ApplyDefaults()

	w := &SlidingWindow{
		config: config,
		now:    time.Now,
		stamps: make([]time.Time, 0, config.MaxRequests),
	}
	if config.Burst > 0 {
		perSecond := float64(config.MaxRequests) / config.Window.Seconds()
		w.pacer = rate.NewLimiter(rate.Limit(perSecond), config.Burst)
	}
	return w
}

// Admit waits until admission is granted. It fails with ErrAdmissionTimeout
// as soon as the minimal wait would exceed MaxWait, and with ctx.Err() on
// cancellation. Nothing is recorded unless admission is granted.
func (w *SlidingWindow) Admit(ctx context.Context) (err error) {
	start := w.now()
	deadline := start.Add(w.config.MaxWait)

	if w.pacer != nil {
		r := w.pacer.ReserveN(start, 1)
		d := r.DelayFrom(start)
		// Cancel at the reservation's own time so the token is restored
		// even when the clock has moved past it.
		act := start.Add(d)
		defer func() {
			if err != nil {
				r.CancelAt(act)
			}
		}()
		if d > 0 {
			if w.config.MaxWait < 0 || d > w.config.MaxWait {
				return fmt.Errorf("%w: %s pacing needs %v", ErrAdmissionTimeout, w.config.Name, d)
			}
			if err := Sleep(ctx, d); err != nil {
				return err
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, wait := w.TryAdmit()
		if ok {
			return nil
		}
		if w.config.MaxWait < 0 || w.now().Add(wait).After(deadline) {
			return fmt.Errorf("%w: %s at capacity (%d per %v), next slot in %v",
				ErrAdmissionTimeout, w.config.Name, w.config.MaxRequests, w.config.Window, wait)
		}
		if w.config.OnLimit != nil {
			w.config.OnLimit(w.config.Name, wait)
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAdmit records an admission if capacity allows. Otherwise it returns
// false and the minimal delay until the oldest entry leaves the window.
func (w *SlidingWindow) TryAdmit() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)

	if len(w.stamps) < w.config.MaxRequests {
		w.stamps = append(w.stamps, now)
		return true, 0
	}

	wait := w.stamps[0].Add(w.config.Window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// InWindow returns the number of admissions in the current window.
func (w *SlidingWindow) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

// MaxRequests returns the window ceiling.
func (w *SlidingWindow) MaxRequests() int {
	return w.config.MaxRequests
}

// Window returns the window length.
func (w *SlidingWindow) Window() time.Duration {
	return w.config.Window
}

// prune drops entries that have left the window. Caller holds mu.
func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.config.Window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
