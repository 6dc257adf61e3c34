package scheduler

import "time"

// clockEstimator smooths a coarse host clock by free-running on wall time
// between host samples. It resyncs when the host jumps ahead of the
// projection, or falls behind it by more than threshold while still moving.
type clockEstimator struct {
	thresholdMs int64

	anchored       bool
	anchorWall     time.Time
	anchorReported int64
	lastReported   int64
}

// estimate returns the play time in ms and updates the anchors.
func (c *clockEstimator) estimate(now time.Time, reportedMs int64, playing bool) int64 {
	t, reanchor := c.project(now, reportedMs, playing)
	if reanchor {
		c.anchored = true
		c.anchorWall = now
		c.anchorReported = reportedMs
	}
	c.lastReported = reportedMs
	return t
}

// peek returns what estimate would return without changing any state.
func (c *clockEstimator) peek(now time.Time, reportedMs int64, playing bool) int64 {
	t, _ := c.project(now, reportedMs, playing)
	return t
}

func (c *clockEstimator) project(now time.Time, reportedMs int64, playing bool) (int64, bool) {
	if !c.anchored || !playing {
		return reportedMs, true
	}
	projected := now.Sub(c.anchorWall).Milliseconds() + c.anchorReported
	drift := projected - reportedMs
	if drift < 0 || (drift > c.thresholdMs && reportedMs != c.lastReported) {
		return reportedMs, true
	}
	return projected, false
}

func (c *clockEstimator) reset() {
	*c = clockEstimator{thresholdMs: c.thresholdMs}
}
