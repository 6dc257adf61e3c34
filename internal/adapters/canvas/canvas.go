// Package canvas implements the paint surface on a gg software context.
package canvas

import (
	"image"
	"image/color"
	"io"

	"github.com/gogpu/gg"

	"github.com/bft-labs/subcast/internal/ports"
)

// Canvas is a ports.Surface backed by a gg.Context. It is confined to the
// event loop like every other surface.
type Canvas struct {
	dc    *gg.Context
	dirty bool
}

// New creates a transparent canvas of the given size.
func New(width, height int) *Canvas {
	return &Canvas{dc: gg.NewContext(width, height)}
}

// Size implements ports.Surface.
func (c *Canvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

// Resize implements ports.Surface. The new surface is transparent.
func (c *Canvas) Resize(width, height int) error {
	if width == c.dc.Width() && height == c.dc.Height() {
		c.Clear()
		return nil
	}
	if err := c.dc.Resize(width, height); err != nil {
		return err
	}
	c.dirty = true
	return nil
}

// Clear implements ports.Surface.
func (c *Canvas) Clear() {
	c.dc.Clear()
	c.dirty = true
}

// ClearRect implements ports.Surface. The rectangle is clipped to the
// surface.
func (c *Canvas) ClearRect(x, y, width, height int) {
	r := image.Rect(x, y, x+width, y+height).Intersect(image.Rect(0, 0, c.dc.Width(), c.dc.Height()))
	if r.Empty() {
		return
	}
	pm := c.dc.ResizeTarget()
	data := pm.Data()
	stride := pm.Width() * 4
	for row := r.Min.Y; row < r.Max.Y; row++ {
		start := row*stride + r.Min.X*4
		clear(data[start : start+r.Dx()*4])
	}
	c.dirty = true
}

// DrawImage implements ports.Surface.
func (c *Canvas) DrawImage(img ports.Asset, x, y int) {
	if img == nil {
		return
	}
	c.dc.DrawImage(gg.ImageBufFromImage(img), float64(x), float64(y))
	c.dirty = true
}

// FillRect implements ports.Filler. alpha scales the colour's own alpha.
func (c *Canvas) FillRect(x, y, width, height int, col color.Color, alpha float64) {
	rgba := gg.FromColor(col)
	c.dc.SetRGBA(rgba.R, rgba.G, rgba.B, rgba.A*alpha)
	c.dc.DrawRectangle(float64(x), float64(y), float64(width), float64(height))
	_ = c.dc.Fill()
	c.dirty = true
}

// Image returns a copy of the current pixels.
func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}

// Dirty reports whether the canvas changed since the last snapshot.
func (c *Canvas) Dirty() bool {
	return c.dirty
}

// EncodePNG writes the canvas as PNG and marks it clean.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Close releases the drawing context.
func (c *Canvas) Close() error {
	return c.dc.Close()
}

var (
	_ ports.Surface = (*Canvas)(nil)
	_ ports.Filler  = (*Canvas)(nil)
)
