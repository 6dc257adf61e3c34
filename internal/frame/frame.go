// Package frame models one timestamped screen mutation.
//
// A Frame collects caption and clear-region fragments that share a time.
// It becomes ready once the expected number of fragments has arrived and
// every caption asset has been preloaded; only then can it be shown.
package frame

import (
	"github.com/bft-labs/subcast/internal/ports"
)

// Preloader is the asset preloading dependency of a frame.
type Preloader interface {
	Preload(src string, done func(ports.Asset, error))
	Aborted() bool
}

// ErrorFunc receives asset load failures of captions.
type ErrorFunc func(c *Caption, err error)

// Frame is one screen mutation at Time.
type Frame struct {
	Time        int64
	ChangeCount int
	ResX        int
	ResY        int

	captions         []*Caption
	regions          []ClearRegion
	preloadRequested bool
	preloader        Preloader
	onError          ErrorFunc
}

// New creates a frame. A changeCount of 0 makes a wipe frame.
func New(time int64, changeCount, resX, resY int) *Frame {
	if resX < 0 {
		resX = 0
	}
	if resY < 0 {
		resY = 0
	}
	return &Frame{Time: time, ChangeCount: changeCount, ResX: resX, ResY: resY}
}

// NewWipe creates a frame that clears the entire surface.
func NewWipe(time int64) *Frame {
	return New(time, 0, 0, 0)
}

// IsWipe reports whether the frame clears the entire surface.
func (f *Frame) IsWipe() bool {
	return f.ChangeCount == 0
}

// Fragments returns the number of captions and clear regions received.
func (f *Frame) Fragments() int {
	return len(f.captions) + len(f.regions)
}

// Captions returns the frame's captions in arrival order.
func (f *Frame) Captions() []*Caption {
	return f.captions
}

// Regions returns the frame's clear regions in arrival order.
func (f *Frame) Regions() []ClearRegion {
	return f.regions
}

// Ready reports whether the frame can be shown.
func (f *Frame) Ready() bool {
	if f.IsWipe() {
		return true
	}
	if f.Fragments() < f.ChangeCount {
		return false
	}
	for _, c := range f.captions {
		if !c.Preloaded() {
			return false
		}
	}
	return true
}

// Add appends a caption. If the frame already started preloading, the new
// caption starts preloading immediately.
func (f *Frame) Add(x, y int, data string) *Caption {
	c := newCaption(x, y, data)
	f.captions = append(f.captions, c)
	if f.preloadRequested {
		c.preload(f.preloader, f.onError)
	}
	return c
}

// AddClearRegion appends a rectangle to clear.
func (f *Frame) AddClearRegion(x, y, w, h int) {
	f.regions = append(f.regions, ClearRegion{X: x, Y: y, W: w, H: h})
}

// Preload starts preloading every caption once. Later captions preload as
// they are added.
func (f *Frame) Preload(p Preloader, onError ErrorFunc) {
	if f.preloadRequested {
		return
	}
	f.preloadRequested = true
	f.preloader = p
	f.onError = onError
	for _, c := range f.captions {
		c.preload(p, onError)
	}
}

// PreloadRequested reports whether Preload was called.
func (f *Frame) PreloadRequested() bool {
	return f.preloadRequested
}

// Show paints the frame if it is ready and reports whether it did.
// Captions release their assets after painting, so a second Show draws no
// captions.
func (f *Frame) Show(s ports.Surface) (bool, error) {
	if !f.Ready() {
		return false, nil
	}
	if f.IsWipe() {
		s.Clear()
		return true, nil
	}
	if f.ResX > 0 && f.ResY > 0 {
		w, h := s.Size()
		if w != f.ResX || h != f.ResY {
			if err := s.Resize(f.ResX, f.ResY); err != nil {
				return false, err
			}
		}
	}
	for _, r := range f.regions {
		r.Show(s)
	}
	for _, c := range f.captions {
		c.Show(s)
	}
	return true, nil
}

// ClearRegion is a rectangle cleared before a frame's captions are drawn.
type ClearRegion struct {
	X, Y, W, H int
}

// Show clears the rectangle.
func (r ClearRegion) Show(s ports.Surface) {
	s.ClearRect(r.X, r.Y, r.W, r.H)
}
