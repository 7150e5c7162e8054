package vision

import "github.com/xkilldash9x/webpilot-cli/api/schemas"

// Mapper converts points from the model's normalized image space into
// viewport device pixels. It tracks the most recently normalized (width,
// height) used for the screenshot shown to the model.
//
// Mapper is owned and driven by a single run; it is not safe for concurrent
// use and does not need to be.
type Mapper struct {
	viewportWidth  float64
	viewportHeight float64
	normWidth      float64
	normHeight     float64
}

// NewMapper creates a mapper for a fixed viewport.
func NewMapper(viewportWidth, viewportHeight int) *Mapper {
	return &Mapper{
		viewportWidth:  float64(viewportWidth),
		viewportHeight: float64(viewportHeight),
	}
}

// SetNormalized records the normalized dimensions of the frame presented to
// the model in the current round.
func (m *Mapper) SetNormalized(width, height int) {
	m.normWidth = float64(width)
	m.normHeight = float64(height)
}

// ToViewport scales a normalized-space point into viewport pixels,
// independently per axis. Before the first normalized size is recorded it
// returns the input unchanged; that identity fallback can only occur before
// the first round completes and is deliberate, not an error.
func (m *Mapper) ToViewport(p schemas.Point) schemas.Point {
	if m.normWidth == 0 || m.normHeight == 0 {
		return p
	}
	return schemas.Point{
		X: p.X * (m.viewportWidth / m.normWidth),
		Y: p.Y * (m.viewportHeight / m.normHeight),
	}
}

// ToNormalized is the inverse of ToViewport, with the same identity fallback.
func (m *Mapper) ToNormalized(p schemas.Point) schemas.Point {
	if m.normWidth == 0 || m.normHeight == 0 {
		return p
	}
	return schemas.Point{
		X: p.X * (m.normWidth / m.viewportWidth),
		Y: p.Y * (m.normHeight / m.viewportHeight),
	}
}
