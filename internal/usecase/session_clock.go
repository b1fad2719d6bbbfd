package usecase

import (
	"sync"
	"time"

	"cuecard/internal/domain"
)

const defaultTickInterval = time.Second

// SessionClock tracks elapsed session time against a SessionBudget. Each tick
// recomputes the reading and runs the expiry check in the same critical
// section; the expiry callback fires at most once per budget.
type SessionClock struct {
	interval time.Duration
	now      func() time.Time
	onTick   func(domain.ClockReading)
	onExpire func()

	mu      sync.Mutex
	budget  domain.SessionBudget
	started bool
	expired bool
	stop    chan struct{}
}

func NewSessionClock(interval time.Duration, onTick func(domain.ClockReading), onExpire func()) *SessionClock {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &SessionClock{
		interval: interval,
		now:      time.Now,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start begins ticking against budget. Restarting with the same budget keeps
// the baseline and expiry state. A zero StartedAt keeps the running baseline
// when the allowance is unchanged and means now otherwise.
func (c *SessionClock) Start(budget domain.SessionBudget) {
	c.mu.Lock()
	if budget.StartedAt.IsZero() {
		if c.started && c.budget.DurationSeconds == budget.DurationSeconds && c.budget.UsedSecondsAtStart == budget.UsedSecondsAtStart {
			budget.StartedAt = c.budget.StartedAt
		} else {
			budget.StartedAt = c.now()
		}
	}
	same := c.started && c.budget == budget
	if same && c.stop != nil {
		c.mu.Unlock()
		return
	}
	if c.stop != nil {
		close(c.stop)
	}
	if !same {
		c.expired = false
	}
	c.budget = budget
	c.started = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.loop(stop)
}

// Stop cancels ticking. Safe to call repeatedly and from within callbacks.
func (c *SessionClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Tick recomputes the reading and fires expiry at most once.
func (c *SessionClock) Tick() domain.ClockReading {
	reading, _ := c.tick(nil)
	return reading
}

// tick skips the update when run is set and is no longer the live ticking
// loop, so a tick racing Stop emits nothing.
func (c *SessionClock) tick(run chan struct{}) (domain.ClockReading, bool) {
	c.mu.Lock()
	if run != nil && c.stop != run {
		c.mu.Unlock()
		return domain.ClockReading{}, false
	}
	reading := c.readingLocked(c.now())
	fire := false
	if reading.Expired && !c.expired {
		c.expired = true
		fire = true
	}
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(reading)
	}
	if fire && c.onExpire != nil {
		c.onExpire()
	}
	return reading, true
}

// Reading returns the current reading without firing callbacks.
func (c *SessionClock) Reading() domain.ClockReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readingLocked(c.now())
}

// Expired reports whether a bounded budget has been consumed.
func (c *SessionClock) Expired() bool {
	return c.Reading().Expired
}

// Budget returns the budget the clock was started with.
func (c *SessionClock) Budget() domain.SessionBudget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

func (c *SessionClock) readingLocked(now time.Time) domain.ClockReading {
	if !c.started {
		return domain.ClockReading{Unbounded: true}
	}
	elapsed := c.budget.Elapsed(now)
	reading := domain.ClockReading{ElapsedSeconds: elapsed}
	if c.budget.DurationSeconds <= 0 {
		reading.Unbounded = true
		return reading
	}
	reading.RemainingSeconds = c.budget.DurationSeconds - elapsed
	if reading.RemainingSeconds <= 0 {
		reading.RemainingSeconds = 0
		reading.Expired = true
	}
	return reading
}

func (c *SessionClock) loop(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick(stop)
		}
	}
}
