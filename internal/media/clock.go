package media

import (
	"sync"
	"time"
)

// Clock is a simulated player: the position advances with wall-clock time
// while playing. It backs the terminal UI when no browser bridge is attached.
type Clock struct {
	mu       sync.Mutex
	now      func() time.Time
	base     float64
	anchor   time.Time
	playing  bool
	duration float64
	obs      Observer
}

// NewClock returns a paused clock at position zero. A positive duration caps
// the position and pauses the clock when it runs out.
func NewClock(duration time.Duration) *Clock {
	return &Clock{now: time.Now, duration: duration.Seconds()}
}

func (c *Clock) SetObserver(o Observer) {
	c.mu.Lock()
	c.obs = o
	c.mu.Unlock()
}

func (c *Clock) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	if c.duration > 0 && c.base >= c.duration {
		c.base = 0
	}
	c.anchor = c.now()
	c.playing = true
	obs := c.obs
	c.mu.Unlock()

	if obs != nil {
		obs.Played()
	}
}

func (c *Clock) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.base = c.positionLocked()
	c.playing = false
	obs := c.obs
	c.mu.Unlock()

	if obs != nil {
		obs.Paused()
	}
}

func (c *Clock) Seek(t float64) {
	c.mu.Lock()
	t = c.clamp(t)
	c.base = t
	c.anchor = c.now()
	obs := c.obs
	c.mu.Unlock()

	if obs != nil {
		obs.Seeked(t)
	}
}

// SeekBy moves the position by delta seconds.
func (c *Clock) SeekBy(delta float64) {
	c.Seek(c.Position() + delta)
}

// Toggle flips between playing and paused.
func (c *Clock) Toggle() {
	if c.Paused() {
		c.Play()
	} else {
		c.Pause()
	}
}

func (c *Clock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing && c.duration > 0 && c.positionLocked() >= c.duration {
		c.base = c.duration
		c.playing = false
	}
	return !c.playing
}

// Duration returns the configured length in seconds, zero when unbounded.
func (c *Clock) Duration() float64 {
	return c.duration
}

func (c *Clock) positionLocked() float64 {
	pos := c.base
	if c.playing {
		pos += c.now().Sub(c.anchor).Seconds()
	}
	return c.clamp(pos)
}

func (c *Clock) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if c.duration > 0 && t > c.duration {
		return c.duration
	}
	return t
}
