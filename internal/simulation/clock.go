package simulation

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultTickInterval = 100 * time.Millisecond // 10 tick/s
	DefaultInitialDelay = 10 * time.Millisecond
)

// Stepper advances the simulation by delta.
type Stepper interface {
	Step(delta time.Duration)
}

// TickReport describes one executed tick.
type TickReport struct {
	Seq       uint64
	Delta     time.Duration // simulated time applied in this tick
	Elapsed   time.Duration // wall time spent in Step
	NextDelay time.Duration // delay before the next tick, also its delta
}

// NextDelay is what remains of the target interval after elapsed, never negative.
func NextDelay(target, elapsed time.Duration) time.Duration {
	if d := target - elapsed; d > 0 {
		return d
	}
	return 0
}

// Clock drives a Stepper with a drift-compensating loop: after each tick it waits
// target-elapsed and feeds that realized delay to the next tick as its delta.
// States are only Stopped and Running.
type Clock struct {
	stepper      Stepper
	target       time.Duration
	initialDelay time.Duration
	now          func() time.Time
	observers    []func(TickReport)

	// lifecycle serializes Start and Stop, so at most one loop exists at a time.
	lifecycle sync.Mutex
	running   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	seq       uint64 // only touched by the goroutine running ticks
}

type ClockOption func(*Clock)

func WithInitialDelay(d time.Duration) ClockOption {
	return func(c *Clock) {
		if d >= 0 {
			c.initialDelay = d
		}
	}
}

// WithNow replaces the time source used to measure tick duration.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTickObserver registers fn to be called after every tick, on the tick goroutine.
// fn must not call Stop.
func WithTickObserver(fn func(TickReport)) ClockOption {
	return func(c *Clock) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

func NewClock(stepper Stepper, target time.Duration, opts ...ClockOption) *Clock {
	if target <= 0 {
		target = DefaultTickInterval
	}
	c := &Clock{
		stepper:      stepper,
		target:       target,
		initialDelay: DefaultInitialDelay,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Clock) Running() bool { return c.running.Load() }

// Start moves the clock to Running and executes the first tick right away with the
// initial nominal delay. It reports false if the clock was already running.
func (c *Clock) Start() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.running.Load() {
		return false
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.running.Store(true)

	next, _ := c.tick(stop, c.initialDelay)
	go c.loop(stop, done, next)
	return true
}

// Stop moves the clock to Stopped. The pending tick is cancelled and an in-flight tick
// is waited for, so nothing is mutated once Stop returns. It reports false if the
// clock was already stopped.
func (c *Clock) Stop() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if !c.running.Load() {
		return false
	}
	c.running.Store(false)
	close(c.stop)
	<-c.done
	return true
}

func (c *Clock) loop(stop <-chan struct{}, done chan<- struct{}, delay time.Duration) {
	defer close(done)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		next, ok := c.tick(stop, delay)
		if !ok {
			return
		}
		delay = next
		timer.Reset(delay)
	}
}

// tick runs one update pass with lastDelay as delta. A stopped clock makes it a no-op.
func (c *Clock) tick(stop <-chan struct{}, lastDelay time.Duration) (time.Duration, bool) {
	select {
	case <-stop:
		return 0, false
	default:
	}

	t0 := c.now()
	c.stepper.Step(lastDelay)
	elapsed := c.now().Sub(t0)
	next := NextDelay(c.target, elapsed)

	c.seq++
	report := TickReport{Seq: c.seq, Delta: lastDelay, Elapsed: elapsed, NextDelay: next}
	for _, fn := range c.observers {
		fn(report)
	}
	return next, true
}
