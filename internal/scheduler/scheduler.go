// Package scheduler runs booking or polling attempts round after round until a
// booking succeeds, the round budget or deadline is spent, or the context ends.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"thsrbook/internal/clock"
	"thsrbook/internal/logger"
	"thsrbook/internal/models"
)

// Attempter runs one round. Implementations own and close their browser session.
type Attempter interface {
	Attempt(ctx context.Context, round int, proxy string) models.AttemptResult
}

// Reason says why the scheduler gave up.
type Reason string

const (
	ReasonMaxRounds Reason = "max_rounds"
	ReasonDeadline  Reason = "deadline"
)

// NotifyTimeout bounds each terminal notification.
const NotifyTimeout = 30 * time.Second

// Run describes one scheduler invocation for logs and notifications.
type Run struct {
	ID      string
	Started time.Time
	Rounds  int
}

// Reporter delivers the terminal notifications. Errors are logged, never fatal.
type Reporter interface {
	Booked(ctx context.Context, run Run, res models.AttemptResult) error
	Exhausted(ctx context.Context, run Run, reason Reason, last models.AttemptResult) error
}

type Options struct {
	// MaxRounds of 0 means unlimited.
	MaxRounds int
	// Deadline zero means none.
	Deadline        time.Time
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	Proxies         []string
	NotifyExhausted bool
}

// Summary is what Run returns.
type Summary struct {
	Run    Run
	Booked bool
	Reason Reason
	Last   models.AttemptResult
}

type Scheduler struct {
	attempter Attempter
	reporter  Reporter
	opts      Options

	clock clock.Clock
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	rand *rand.Rand

	proxyIdx int
}

type Option func(*Scheduler)

func WithClock(c clock.Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = f }
}

func WithRand(r *rand.Rand) Option { return func(s *Scheduler) { s.rand = r } }

func New(attempter Attempter, reporter Reporter, opts Options, options ...Option) *Scheduler {
	s := &Scheduler{
		attempter: attempter,
		reporter:  reporter,
		opts:      opts,
		clock:     clock.System{},
		sleep:     sleepCtx,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run loops until a round books, the limits are hit, or ctx is cancelled. A
// cancelled context returns ctx.Err() without a final notification.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	run := Run{ID: uuid.NewString(), Started: s.clock.Now()}
	sum := Summary{Run: run}
	logger.Info("[%s] starting: max_rounds=%d deadline=%s backoff=%v..%v proxies=%d",
		short(run.ID), s.opts.MaxRounds, formatDeadline(s.opts.Deadline),
		s.opts.BackoffMin, s.opts.BackoffMax, len(s.opts.Proxies))

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			sum.Run = run
			return sum, err
		}
		if r, ok := s.resyncer(); ok {
			r.Resync(ctx)
		}

		if reason, done := s.exhausted(round); done {
			sum.Run, sum.Reason = run, reason
			logger.Info("[%s] stopping after %d rounds: %s", short(run.ID), run.Rounds, reason)
			if s.opts.NotifyExhausted && s.reporter != nil {
				nctx, cancel := notifyContext(ctx)
				if err := s.reporter.Exhausted(nctx, run, reason, sum.Last); err != nil {
					logger.Error("[%s] exhausted notification failed: %v", short(run.ID), err)
				}
				cancel()
			}
			return sum, nil
		}

		proxy := s.nextProxy()
		logger.Info("[%s] round %d proxy=%s", short(run.ID), round, orDash(proxy))

		res := s.attempt(ctx, round, proxy)
		run.Rounds = round
		sum.Run, sum.Last = run, res
		logger.Info("[%s] round %d: %s (%s)", short(run.ID), round, res.Outcome, res.Cause)

		if res.Terminal() {
			sum.Booked = true
			if s.reporter != nil {
				nctx, cancel := notifyContext(ctx)
				if err := s.reporter.Booked(nctx, run, res); err != nil {
					logger.Error("[%s] booked notification failed: %v", short(run.ID), err)
				}
				cancel()
			}
			return sum, nil
		}

		// The next check would stop on the round budget; no point waiting for it.
		if s.opts.MaxRounds > 0 && round >= s.opts.MaxRounds {
			continue
		}
		wait := s.Backoff()
		logger.Info("[%s] next round in %v", short(run.ID), wait.Round(time.Second))
		if err := s.sleep(ctx, wait); err != nil {
			return sum, err
		}
	}
}

// notifyContext survives cancellation of the run so that a booking made just
// before SIGINT is still reported.
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), NotifyTimeout)
}

func (s *Scheduler) exhausted(round int) (Reason, bool) {
	if s.opts.MaxRounds > 0 && round > s.opts.MaxRounds {
		return ReasonMaxRounds, true
	}
	if !s.opts.Deadline.IsZero() && !s.clock.Now().Before(s.opts.Deadline) {
		return ReasonDeadline, true
	}
	return "", false
}

// attempt converts a panic escaping the attempter into an Exception result.
func (s *Scheduler) attempt(ctx context.Context, round int, proxy string) (res models.AttemptResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("round %d panicked: %v\n%s", round, r, debug.Stack())
			res = models.AttemptResult{
				Outcome: models.OutcomeException,
				Cause:   fmt.Sprintf("panic: %v", r),
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return s.attempter.Attempt(ctx, round, proxy)
}

// Backoff draws a wait uniformly from [BackoffMin, BackoffMax], both inclusive,
// at one-second granularity when the bounds are whole seconds.
func (s *Scheduler) Backoff() time.Duration {
	min, max := s.opts.BackoffMin, s.opts.BackoffMax
	if max <= min {
		return min
	}
	unit := time.Duration(1)
	if min%time.Second == 0 && max%time.Second == 0 {
		unit = time.Second
	}
	span := int64((max-min)/unit) + 1

	s.mu.Lock()
	n := s.rand.Int63n(span)
	s.mu.Unlock()
	return min + time.Duration(n)*unit
}

func (s *Scheduler) nextProxy() string {
	if len(s.opts.Proxies) == 0 {
		return ""
	}
	p := s.opts.Proxies[s.proxyIdx%len(s.opts.Proxies)]
	s.proxyIdx++
	return p
}

type resyncer interface {
	Resync(ctx context.Context)
}

func (s *Scheduler) resyncer() (resyncer, bool) {
	r, ok := s.clock.(resyncer)
	return r, ok
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
