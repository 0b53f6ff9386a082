// Package camera provides the 2D map camera.
package camera

import "image"

// DefaultSpeed is the pan distance in pixels per frame.
const DefaultSpeed = 4

// Camera is a viewport over world space. Pos is the world point shown at
// the top-left screen corner.
type Camera struct {
	Pos   image.Point
	Speed int

	// View is the viewport size.
	View image.Point

	// Bounds limits panning. An empty rectangle disables clamping.
	Bounds image.Rectangle
}

// New creates a camera for a viewport of w x h pixels.
func New(w, h, speed int) *Camera {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	return &Camera{Speed: speed, View: image.Pt(w, h)}
}

// Resize changes the viewport size and re-applies the bounds.
func (c *Camera) Resize(w, h int) {
	c.View = image.Pt(w, h)
	c.clamp()
}

// Pan moves the camera by dx, dy steps of Speed pixels.
func (c *Camera) Pan(dx, dy int) {
	c.Pos = c.Pos.Add(image.Pt(dx*c.Speed, dy*c.Speed))
	c.clamp()
}

// Frame sets new bounds and centers the viewport on them.
func (c *Camera) Frame(bounds image.Rectangle) {
	c.Bounds = bounds
	center := bounds.Min.Add(bounds.Size().Div(2))
	c.Pos = center.Sub(c.View.Div(2))
	c.clamp()
}

// Rect returns the visible world rectangle.
func (c *Camera) Rect() image.Rectangle {
	return image.Rectangle{Min: c.Pos, Max: c.Pos.Add(c.View)}
}

// clamp keeps the viewport inside Bounds. A bounds axis smaller than the
// view centers the view on that axis.
func (c *Camera) clamp() {
	if c.Bounds.Empty() {
		return
	}
	c.Pos.X = clampAxis(c.Pos.X, c.Bounds.Min.X, c.Bounds.Max.X, c.View.X)
	c.Pos.Y = clampAxis(c.Pos.Y, c.Bounds.Min.Y, c.Bounds.Max.Y, c.View.Y)
}

func clampAxis(pos, lo, hi, view int) int {
	if hi-lo <= view {
		return lo + (hi-lo)/2 - view/2
	}
	if pos < lo {
		return lo
	}
	if pos+view > hi {
		return hi - view
	}
	return pos
}
