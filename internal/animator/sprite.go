package animator

import (
	"time"

	"github.com/bft-labs/subcast/internal/ports"
)

// AssetPreloader loads assets asynchronously; done runs on the caller's
// event loop.
type AssetPreloader interface {
	Preload(src string, done func(ports.Asset, error))
}

// Sprite is a looping image animation: a base image with one overlay frame
// drawn on top at an offset.
type Sprite struct {
	surface ports.Surface
	x, y    int
	frameX  int
	frameY  int
	step    time.Duration
	opts    []Option

	base   ports.Asset
	frames []ports.Asset
	anim   *Animator
}

// NewSprite creates a sprite drawing its base at (x, y) and its frames at
// (x+offsetX, y+offsetY), advancing one frame per step.
func NewSprite(surface ports.Surface, x, y, offsetX, offsetY int, step time.Duration, opts ...Option) *Sprite {
	return &Sprite{
		surface: surface,
		x:       x,
		y:       y,
		frameX:  x + offsetX,
		frameY:  y + offsetY,
		step:    step,
		opts:    opts,
	}
}

// SetImages installs the decoded base and frame images.
func (s *Sprite) SetImages(base ports.Asset, frames []ports.Asset) {
	if base == nil || len(frames) == 0 {
		return
	}
	s.base = base
	s.frames = frames
	s.anim = New(len(frames), s.step, true, s.drawFrame, s.opts...)
}

// Preload loads srcs (base first, then frames) and installs them once all
// have loaded. A failed or empty load leaves the sprite inert.
func (s *Sprite) Preload(p AssetPreloader, srcs []string, onErr func(error)) {
	if len(srcs) < 2 {
		return
	}
	images := make([]ports.Asset, len(srcs))
	pending := len(srcs)
	failed := false
	for i, src := range srcs {
		p.Preload(src, func(img ports.Asset, err error) {
			pending--
			switch {
			case err != nil:
				if !failed && onErr != nil {
					onErr(err)
				}
				failed = true
			case img == nil:
				failed = true
			default:
				images[i] = img
			}
			if pending == 0 && !failed {
				s.SetImages(images[0], images[1:])
			}
		})
	}
}

// Ready reports whether images are installed.
func (s *Sprite) Ready() bool {
	return s.anim != nil
}

// Update advances the animation. When force is set and no step fired, the
// current frame is drawn again.
func (s *Sprite) Update(force bool) bool {
	if s.anim == nil {
		return false
	}
	changed := s.anim.Update()
	if !changed && force {
		s.drawFrame(s.anim.Index(), s.anim.Steps())
	}
	return changed
}

// Reset restarts the animation from the first frame.
func (s *Sprite) Reset() {
	if s.anim != nil {
		s.anim.Reset()
	}
}

func (s *Sprite) drawFrame(index, _ int) {
	if index < 0 || index >= len(s.frames) {
		return
	}
	s.drawImage(s.base, s.x, s.y)
	s.drawImage(s.frames[index], s.frameX, s.frameY)
}

func (s *Sprite) drawImage(img ports.Asset, x, y int) {
	b := img.Bounds()
	s.surface.ClearRect(x, y, b.Dx(), b.Dy())
	s.surface.DrawImage(img, x, y)
}
