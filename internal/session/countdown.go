package session

import (
	"sync"
	"time"
)

// Countdown ticks toward a fixed deadline. Remaining time is recomputed
// from the deadline on every tick rather than decremented, so a stalled
// host cannot drift the clock. Expiry fires exactly once; nothing is
// emitted afterwards.
type Countdown struct {
	deadline time.Time
	clock    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// StartCountdown launches the ticking goroutine. onTick receives the
// floor-rounded remaining seconds once per interval; onExpire runs once
// when remaining reaches zero. Stop cancels future emissions.
func StartCountdown(deadline time.Time, clock func() time.Time, interval time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}
	c := &Countdown{
		deadline: deadline,
		clock:    clock,
		stop:     make(chan struct{}),
	}
	go c.run(interval, onTick, onExpire)
	return c
}

// Remaining returns the floor-rounded seconds until the deadline, never
// negative.
func (c *Countdown) Remaining() int {
	left := c.deadline.Sub(c.clock())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Stop cancels the countdown. Safe to call multiple times and after
// expiry; a tick already queued before Stop observes the closed channel
// and emits nothing.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Countdown) run(interval time.Duration, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			select {
			case <-c.stop:
				return
			default:
			}
			remaining := c.Remaining()
			onTick(remaining)
			if remaining <= 0 {
				onExpire()
				return
			}
		}
	}
}
