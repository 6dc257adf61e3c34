// Package portstest provides in-memory implementations of the ports
// interfaces for tests.
package portstest

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/bft-labs/subcast/internal/ports"
)

// Op is one recorded surface call.
type Op struct {
	Kind  string
	X, Y  int
	W, H  int
	Image ports.Asset
}

// String formats the op for test failure output.
func (o Op) String() string {
	switch o.Kind {
	case "draw":
		return fmt.Sprintf("draw(%d,%d)", o.X, o.Y)
	case "clearRect", "fill":
		return fmt.Sprintf("%s(%d,%d,%d,%d)", o.Kind, o.X, o.Y, o.W, o.H)
	case "resize":
		return fmt.Sprintf("resize(%d,%d)", o.W, o.H)
	default:
		return o.Kind
	}
}

// Surface records every call made to it.
type Surface struct {
	mu     sync.Mutex
	width  int
	height int
	ops    []Op
}

// NewSurface returns a recording surface of the given size.
func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height}
}

// Size implements ports.Surface.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Resize implements ports.Surface.
func (s *Surface) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid size %dx%d", width, height)
	}
	s.width, s.height = width, height
	s.ops = append(s.ops, Op{Kind: "resize", W: width, H: height})
	return nil
}

// Clear implements ports.Surface.
func (s *Surface) Clear() {
	s.record(Op{Kind: "clear"})
}

// ClearRect implements ports.Surface.
func (s *Surface) ClearRect(x, y, width, height int) {
	s.record(Op{Kind: "clearRect", X: x, Y: y, W: width, H: height})
}

// DrawImage implements ports.Surface.
func (s *Surface) DrawImage(img ports.Asset, x, y int) {
	s.record(Op{Kind: "draw", X: x, Y: y, Image: img})
}

// FillRect implements ports.Filler.
func (s *Surface) FillRect(x, y, width, height int, _ color.Color, _ float64) {
	s.record(Op{Kind: "fill", X: x, Y: y, W: width, H: height})
}

// Ops returns a copy of the recorded calls.
func (s *Surface) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Count returns how many recorded calls have the given kind.
func (s *Surface) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
}

func (s *Surface) record(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
}

// Image returns a solid test image of the given size.
func Image(width, height int) ports.Asset {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

var (
	_ ports.Surface = (*Surface)(nil)
	_ ports.Filler  = (*Surface)(nil)
)
