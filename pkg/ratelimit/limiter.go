package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces successive upstream calls
type Limiter interface {
	// Wait blocks until the next call may start or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets previous calls
	Reset()
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FixedDelay keeps at least Delay between the start of consecutive calls.
// The first call is never delayed.
type FixedDelay struct {
	delay time.Duration
	last  time.Time
	now   func() time.Time
	sleep SleepFunc
	mu    sync.Mutex
}

// NewFixedDelay creates a limiter enforcing delay between calls
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay, now: time.Now, sleep: Sleep}
}

// WithClock replaces the time source and sleeper, for tests
func (f *FixedDelay) WithClock(now func() time.Time, sleep SleepFunc) *FixedDelay {
	f.now = now
	f.sleep = sleep
	return f
}

func (f *FixedDelay) Wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.last.IsZero() {
		if remaining := f.delay - f.now().Sub(f.last); remaining > 0 {
			if err := f.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	f.last = f.now()
	return ctx.Err()
}

func (f *FixedDelay) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = time.Time{}
}

// Unlimited never waits
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// ThresholdPause sleeps Delay after an item of a batch, but only when the
// batch holds more than Threshold items. Small batches run unpaced.
type ThresholdPause struct {
	Delay     time.Duration
	Threshold int
	Sleep     SleepFunc
}

// After is called once an item of a batch of size total completes
func (p ThresholdPause) After(ctx context.Context, total int) error {
	if p.Delay <= 0 || total <= p.Threshold {
		return nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, p.Delay)
}
