package clock

import (
	"sync"
	"time"
)

// Clock is the elapsed-time source shared by every device in a session.
type Clock interface {
	// Start sets the time origin. Calling it again resets the origin.
	Start()
	// ElapsedMs returns whole milliseconds since the last Start. Never negative.
	ElapsedMs() int64
}

// Monotonic reads Go's monotonic clock, so wall clock adjustments do not
// skew the readings.
type Monotonic struct {
	start time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (c *Monotonic) Start() { c.start = time.Now() }

func (c *Monotonic) ElapsedMs() int64 {
	ms := time.Since(c.start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// Manual is a scripted clock. If readings are queued, each ElapsedMs call
// consumes the next one; once exhausted the last value repeats.
type Manual struct {
	mu       sync.Mutex
	now      int64
	readings []int64
	starts   int
}

func NewManual(readings ...int64) *Manual {
	return &Manual{readings: readings}
}

func (c *Manual) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if len(c.readings) == 0 {
		c.now = 0
	}
}

func (c *Manual) ElapsedMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readings) > 0 {
		c.now = c.readings[0]
		c.readings = c.readings[1:]
	}
	if c.now < 0 {
		return 0
	}
	return c.now
}

func (c *Manual) Set(ms int64) {
	c.mu.Lock()
	c.now = ms
	c.mu.Unlock()
}

func (c *Manual) Advance(ms int64) {
	c.mu.Lock()
	c.now += ms
	c.mu.Unlock()
}

// Starts reports how many times Start was called.
func (c *Manual) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}
