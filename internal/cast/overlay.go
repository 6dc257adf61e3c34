package cast

import (
	"image/color"
	"time"

	"github.com/bft-labs/subcast/internal/animator"
	"github.com/bft-labs/subcast/internal/ports"
)

// Loading screen geometry, in overlay pixels.
const (
	fadeSteps = 40
	fadeStep  = 20 * time.Millisecond

	progressTop    = 400
	progressHeight = 100
	barHeight      = 20

	spriteWidth   = 367
	spriteHeight  = 484
	spriteOffsetX = 82
	spriteOffsetY = 196
	spriteStep    = 120 * time.Millisecond
)

var (
	overlayBackground = color.Black
	barTrack          = color.Gray{Y: 0x40}
	barFill           = color.White
)

// Overlay draws the stream loading screen on its own surface: a black fade
// in, a progress bar and an optional sprite animation.
type Overlay struct {
	surface  ports.Surface
	filler   ports.Filler
	fade     *animator.Animator
	sprite   *animator.Sprite
	alpha    float64
	progress int
	active   bool
}

// NewOverlay creates an overlay on surface. Fills are skipped when the
// surface does not implement ports.Filler.
func NewOverlay(surface ports.Surface, opts ...animator.Option) *Overlay {
	o := &Overlay{surface: surface}
	o.filler, _ = surface.(ports.Filler)
	o.fade = animator.New(fadeSteps, fadeStep, false, func(index, count int) {
		o.alpha = float64(index) / float64(count)
	}, opts...)

	w, h := surface.Size()
	o.sprite = animator.NewSprite(surface, (w-spriteWidth)/2, h-spriteHeight,
		spriteOffsetX, spriteOffsetY, spriteStep, opts...)
	return o
}

// LoadSprite loads the sprite base image followed by its frames.
func (o *Overlay) LoadSprite(p animator.AssetPreloader, srcs []string, onErr func(error)) {
	o.sprite.Preload(p, srcs, onErr)
}

// Start restarts the fade and resets progress.
func (o *Overlay) Start() {
	o.fade.Reset()
	o.sprite.Reset()
	o.progress = 0
	o.alpha = 0
	o.active = true
}

// Update advances the fade and the sprite. A fade step repaints the whole
// overlay.
func (o *Overlay) Update() {
	if o.fade.Update() {
		w, h := o.surface.Size()
		o.surface.ClearRect(0, 0, w, h)
		o.fill(0, 0, w, h, overlayBackground)
		o.drawProgress()
		o.sprite.Update(true)
		return
	}
	o.sprite.Update(false)
}

// SetProgress records buffering progress in percent and optionally redraws
// the progress bar.
func (o *Overlay) SetProgress(percent int, redraw bool) {
	o.progress = percent
	if redraw {
		o.drawProgress()
	}
}

// Progress returns the last recorded progress.
func (o *Overlay) Progress() int {
	return o.progress
}

// Active reports whether the loading screen is showing.
func (o *Overlay) Active() bool {
	return o.active
}

// Clear removes the loading screen.
func (o *Overlay) Clear() {
	o.active = false
	w, h := o.surface.Size()
	o.surface.ClearRect(0, 0, w, h)
}

func (o *Overlay) drawProgress() {
	w, _ := o.surface.Size()
	o.surface.ClearRect(0, progressTop, w, progressHeight)
	if o.active {
		o.fill(0, progressTop, w, progressHeight, overlayBackground)
	}

	pct := min(max(o.progress, 0), 99)
	barX := w / 4
	barW := w / 2
	barY := progressTop + (progressHeight-barHeight)/2
	o.fill(barX, barY, barW, barHeight, barTrack)
	if filled := barW * pct / 100; filled > 0 {
		o.fill(barX, barY, filled, barHeight, barFill)
	}
}

func (o *Overlay) fill(x, y, w, h int, c color.Color) {
	if o.filler == nil {
		return
	}
	o.filler.FillRect(x, y, w, h, c, o.alpha)
}
