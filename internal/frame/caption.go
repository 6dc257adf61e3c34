package frame

import "github.com/bft-labs/subcast/internal/ports"

// Caption is one asset placed at (X, Y).
type Caption struct {
	X, Y int

	data      string
	image     ports.Asset
	requested bool
	preloaded bool
	err       error
}

func newCaption(x, y int, data string) *Caption {
	return &Caption{X: x, Y: y, data: data}
}

// Data returns the raw payload. It is empty once the caption preloaded.
func (c *Caption) Data() string {
	return c.data
}

// Preloaded reports whether the asset finished loading.
func (c *Caption) Preloaded() bool {
	return c.preloaded
}

// Err returns the load failure, if any.
func (c *Caption) Err() error {
	return c.err
}

func (c *Caption) preload(p Preloader, onError ErrorFunc) {
	if c.requested || c.preloaded || p == nil {
		return
	}
	c.requested = true
	p.Preload(c.data, func(img ports.Asset, err error) {
		if err != nil {
			c.err = err
			if onError != nil {
				onError(c, err)
			}
			return
		}
		if img == nil || p.Aborted() {
			return
		}
		c.image = img
		c.preloaded = true
		c.data = ""
	})
}

// Show draws the asset once and releases it.
func (c *Caption) Show(s ports.Surface) {
	if !c.preloaded || c.image == nil {
		return
	}
	s.DrawImage(c.image, c.X, c.Y)
	c.image = nil
}
