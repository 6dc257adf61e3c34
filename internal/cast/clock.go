package cast

import "sync"

// ReportedClock holds the last playback position reported by the host. It
// implements ports.PlaybackClock for the scheduler.
type ReportedClock struct {
	mu  sync.RWMutex
	sec float64
}

// CurrentTimeSec returns the last reported position in seconds.
func (c *ReportedClock) CurrentTimeSec() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sec
}

// Set records a reported position in seconds.
func (c *ReportedClock) Set(sec float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sec = sec
}
