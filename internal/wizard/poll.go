package wizard

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// poll calls cond every interval until it returns true, ctx ends, or timeout
// elapses on the monotonic clock. cond always runs at least once and gets a
// context that ends at the poll deadline, so a stalled check cannot outlive it.
func poll(ctx context.Context, interval, timeout time.Duration, cond func(ctx context.Context) bool) bool {
	deadline := time.Now().Add(timeout)
	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if cond(cctx) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// sleep waits d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pauser sleeps a random human-looking interval between form actions.
type pauser struct {
	mu   sync.Mutex
	rand *rand.Rand
	min  time.Duration
	max  time.Duration
}

func newPauser(min, max time.Duration) *pauser {
	return &pauser{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		min:  min,
		max:  max,
	}
}

func (p *pauser) pause(ctx context.Context) {
	if p == nil || p.max <= 0 {
		return
	}
	d := p.min
	if p.max > p.min {
		p.mu.Lock()
		d += time.Duration(p.rand.Int63n(int64(p.max - p.min + 1)))
		p.mu.Unlock()
	}
	_ = sleep(ctx, d)
}
