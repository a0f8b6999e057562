package app

import (
	"math"
	"sync"
	"time"
)

// Countdown is the single session-wide deadline. It emits whole-second
// remaining values for display and closes Expired exactly once at zero.
// There are no per-question timers.
type Countdown struct {
	remaining chan int
	expired   chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
}

func startCountdown(total, tick time.Duration) *Countdown {
	c := &Countdown{
		remaining: make(chan int, 4),
		expired:   make(chan struct{}),
		stop:      make(chan struct{}),
	}
	go c.run(total, tick)
	return c
}

func (c *Countdown) run(total, tick time.Duration) {
	deadline := time.Now().Add(total)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			// Stop wins over a simultaneously expiring tick.
			select {
			case <-c.stop:
				return
			default:
			}
			secs := int(math.Ceil(deadline.Sub(now).Seconds()))
			if secs <= 0 {
				close(c.expired)
				return
			}
			// Drop the tick rather than block if nobody is reading.
			select {
			case c.remaining <- secs:
			default:
			}
		}
	}
}

// Remaining streams whole seconds left; ticks are dropped if not consumed.
func (c *Countdown) Remaining() <-chan int { return c.remaining }

// Expired is closed when the countdown reaches zero. It never closes after Stop.
func (c *Countdown) Expired() <-chan struct{} { return c.expired }

// Stop halts the countdown; safe to call more than once.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
