// Package countdown shows a customer how long their slot hold has left.
// It is advisory only; the server decides expiry on its own clock.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"fishcharter/internal/clock"
)

// Ticker delivers one value per tick until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// NewSystemTicker wraps time.NewTicker.
func NewSystemTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type Option func(*Countdown)

// WithTicker replaces the ticker factory.
func WithTicker(f func(time.Duration) Ticker) Option {
	return func(c *Countdown) { c.newTicker = f }
}

// Countdown decrements a whole-second counter once per tick. Ticks and
// callbacks run on one goroutine per Start.
type Countdown struct {
	clock     clock.Clock
	newTicker func(time.Duration) Ticker

	mu        sync.Mutex
	remaining int
	running   bool
	gen       uint64
	stop      chan struct{}
	onTick    func(remaining int)
	onExpire  func()
}

func New(clk clock.Clock, opts ...Option) *Countdown {
	if clk == nil {
		clk = clock.NewSystem()
	}
	c := &Countdown{clock: clk, newTicker: NewSystemTicker}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnTick sets the callback run after each decrement.
func (c *Countdown) OnTick(fn func(remaining int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// OnExpire sets the callback run once when the counter reaches zero.
func (c *Countdown) OnExpire(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpire = fn
}

// Start counts down to expiresAt, replacing any running countdown. The
// initial value is the remaining time rounded up to whole seconds. A deadline
// already passed expires without waiting for a tick.
func (c *Countdown) Start(expiresAt time.Time) {
	c.mu.Lock()
	c.stopLocked()

	c.remaining = ceilSeconds(expiresAt.Sub(c.clock.Now()))
	c.running = true
	c.gen++
	c.stop = make(chan struct{})
	gen, stop := c.gen, c.stop
	t := c.newTicker(time.Second)
	c.mu.Unlock()

	go c.run(gen, t, stop)
}

// Stop cancels the countdown and zeroes it. Ticks that arrive afterwards run
// no callback. Calling it again is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = 0
}

func (c *Countdown) stopLocked() {
	if !c.running {
		return
	}
	c.running = false
	c.gen++
	close(c.stop)
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(gen uint64, t Ticker, stop <-chan struct{}) {
	defer t.Stop()

	if c.step(gen, true) {
		return
	}
	for {
		select {
		case <-stop:
			return
		case <-t.C():
		}
		if c.step(gen, false) {
			return
		}
	}
}

// step applies one tick. With onlyIfDue set it only acts on a counter that is
// already at zero. It reports whether the loop should exit.
func (c *Countdown) step(gen uint64, onlyIfDue bool) bool {
	c.mu.Lock()
	if c.gen != gen || !c.running {
		c.mu.Unlock()
		return true
	}
	if onlyIfDue && c.remaining > 0 {
		c.mu.Unlock()
		return false
	}

	expired := c.remaining <= 1
	if expired {
		c.remaining = 0
		c.running = false
	} else {
		c.remaining--
	}
	remaining, onTick, onExpire := c.remaining, c.onTick, c.onExpire
	c.mu.Unlock()

	if expired {
		if onExpire != nil {
			onExpire()
		}
		return true
	}
	if onTick != nil {
		onTick(remaining)
	}
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Format renders seconds as m:ss.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
