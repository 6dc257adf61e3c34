package portstest

import (
	"sync"
	"time"
)

// Clock is a manually advanced wall clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// PlaybackClock is a settable ports.PlaybackClock.
type PlaybackClock struct {
	mu  sync.Mutex
	sec float64
}

// CurrentTimeSec implements ports.PlaybackClock.
func (p *PlaybackClock) CurrentTimeSec() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sec
}

// SetMs sets the reported position in milliseconds.
func (p *PlaybackClock) SetMs(ms int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sec = float64(ms) / 1000
}
