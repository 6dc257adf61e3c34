package ports

import (
	"image"
	"image/color"
)

// Asset is a decoded caption image.
type Asset = image.Image

// Surface is the paint target owned by the scheduler. All methods are called
// from the event loop goroutine.
type Surface interface {
	// Size returns the current surface dimensions.
	Size() (width, height int)

	// Resize changes the surface dimensions and clears it.
	Resize(width, height int) error

	// Clear clears the entire surface.
	Clear()

	// ClearRect clears a rectangle.
	ClearRect(x, y, width, height int)

	// DrawImage draws an asset with its top-left corner at (x, y).
	DrawImage(img Asset, x, y int)
}

// Filler is implemented by surfaces that can fill rectangles with a colour.
// The loading overlay uses it when available.
type Filler interface {
	FillRect(x, y, width, height int, c color.Color, alpha float64)
}
