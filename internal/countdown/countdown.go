// Package countdown runs cancellable deadline timers that report the time left on a fixed tick.
package countdown

import (
	"sync"
	"time"
)

// DefaultInterval is used when Start receives a non-positive interval.
const DefaultInterval = time.Second

// Timer counts down to a deadline. Remaining time is always derived from the clock, so a timer
// restored from a persisted deadline resumes where it left off.
type Timer struct {
	deadline time.Time
	clock    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	expired bool
}

// Start launches a timer. onTick receives the remaining duration on every tick while time is
// left; onDone runs once when the deadline passes. Neither callback may call Stop on the same timer.
func Start(deadline time.Time, clock func() time.Time, interval time.Duration, onTick func(time.Duration), onDone func()) *Timer {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Timer{
		deadline: deadline,
		clock:    clock,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run(interval, onTick, onDone)
	return t
}

func (t *Timer) run(interval time.Duration, onTick func(time.Duration), onDone func()) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		default:
		}

		remaining := t.Remaining()
		if remaining <= 0 {
			t.mu.Lock()
			t.expired = true
			t.mu.Unlock()
			if onDone != nil {
				onDone()
			}
			return
		}
		if onTick != nil {
			onTick(remaining)
		}

		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the timer and waits for its goroutine to exit. It is safe to call more than once.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	<-t.done
}

// Remaining returns the time left, clamped at zero.
func (t *Timer) Remaining() time.Duration {
	if t == nil {
		return 0
	}
	left := t.deadline.Sub(t.clock())
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether onDone has been reached.
func (t *Timer) Expired() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Done is closed once the timer goroutine has exited, whether by expiry or Stop.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}
