package scheduler

import (
	"fmt"
	"time"

	"github.com/bft-labs/subcast/internal/domain"
)

// Config holds the scheduler tuning knobs.
type Config struct {
	// PreloadAhead is how far ahead of play time frame assets are preloaded.
	PreloadAhead time.Duration

	// TimeShift is added to every frame time before comparing it with play
	// time. Negative values show frames early to hide channel latency.
	TimeShift time.Duration

	// BufferAhead is the window requested from the sender each time the
	// buffered horizon runs low.
	BufferAhead time.Duration

	// DriftAheadThreshold is how far the projected clock may run ahead of
	// the host clock before the scheduler resyncs to the host.
	DriftAheadThreshold time.Duration

	// MaxPreloadCount bounds concurrent asset loads.
	MaxPreloadCount int
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		PreloadAhead:        1500 * time.Millisecond,
		TimeShift:           0,
		BufferAhead:         3000 * time.Millisecond,
		DriftAheadThreshold: 250 * time.Millisecond,
		MaxPreloadCount:     20,
	}
}

// withDefaults replaces unset fields with defaults. TimeShift is kept as is
// since zero and negative shifts are both meaningful.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PreloadAhead <= 0 {
		c.PreloadAhead = d.PreloadAhead
	}
	if c.BufferAhead <= 0 {
		c.BufferAhead = d.BufferAhead
	}
	if c.DriftAheadThreshold <= 0 {
		c.DriftAheadThreshold = d.DriftAheadThreshold
	}
	if c.MaxPreloadCount <= 0 {
		c.MaxPreloadCount = d.MaxPreloadCount
	}
	return c
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.PreloadAhead < 0 {
		return fmt.Errorf("%w: preload ahead must not be negative", domain.ErrInvalidConfig)
	}
	if c.BufferAhead < 0 {
		return fmt.Errorf("%w: buffer ahead must not be negative", domain.ErrInvalidConfig)
	}
	if c.DriftAheadThreshold < 0 {
		return fmt.Errorf("%w: drift threshold must not be negative", domain.ErrInvalidConfig)
	}
	if c.MaxPreloadCount < 0 {
		return fmt.Errorf("%w: max preload count must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}
