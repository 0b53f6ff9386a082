// Package sprite holds placed map sprites: canvases (one frame each),
// instances cycling through canvases, and z-ordered layers of instances.
package sprite

import (
	"image"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Frame defaults.
const (
	DefaultDelay = 120
	OpaqueAlpha  = 255
)

// Canvas is one frame of an instance. The image is shared with the asset
// cache and never modified.
type Canvas struct {
	Image  *image.NRGBA
	Width  int
	Height int
	Z      int

	// Unflipped origin and canvas-local foothold points.
	origin    image.Point
	footholds []image.Point

	delay   int
	alpha0  int
	alpha1  int
	flipped bool
	fade    *gween.Tween
}

// NewCanvas creates an opaque canvas with the default delay.
func NewCanvas(img *image.NRGBA, origin image.Point, z int) *Canvas {
	c := &Canvas{
		Image:  img,
		Z:      z,
		origin: origin,
		delay:  DefaultDelay,
		alpha0: OpaqueAlpha,
		alpha1: OpaqueAlpha,
	}
	if img != nil {
		c.Width, c.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}
	return c
}

// Flip mirrors the canvas horizontally. Origin and footholds are mirrored
// with it; flipping twice restores the original.
func (c *Canvas) Flip() {
	c.flipped = !c.flipped
}

// Flipped reports whether the canvas is drawn mirrored.
func (c *Canvas) Flipped() bool {
	return c.flipped
}

// Origin returns the pivot inside the canvas, mirrored if flipped.
func (c *Canvas) Origin() image.Point {
	return c.mirror(c.origin)
}

// SetDelay sets how long the frame stays on screen in milliseconds.
// Non-positive values fall back to DefaultDelay.
func (c *Canvas) SetDelay(ms int) {
	if ms <= 0 {
		ms = DefaultDelay
	}
	c.delay = ms
	c.rebuildFade()
}

// Delay returns the frame delay in milliseconds.
func (c *Canvas) Delay() int {
	return c.delay
}

func (c *Canvas) frameDelay() float32 {
	if c.delay <= 0 {
		return DefaultDelay
	}
	return float32(c.delay)
}

// SetAlpha sets the opacity at the start and the end of the frame, 0..255.
func (c *Canvas) SetAlpha(a0, a1 int) {
	c.alpha0, c.alpha1 = clampAlpha(a0), clampAlpha(a1)
	c.rebuildFade()
}

// AlphaRange returns the start and end opacity.
func (c *Canvas) AlphaRange() (int, int) {
	return c.alpha0, c.alpha1
}

// AddFoothold adds one point of the walkable line. p is relative to the
// origin, as stored with the sprite.
func (c *Canvas) AddFoothold(p image.Point) {
	c.footholds = append(c.footholds, p.Add(c.origin))
}

// Footholds returns the canvas-local foothold points, mirrored if flipped.
func (c *Canvas) Footholds() []image.Point {
	out := make([]image.Point, len(c.footholds))
	for i, p := range c.footholds {
		out[i] = c.mirror(p)
	}
	return out
}

// Alpha returns the opacity, 0..1, elapsed milliseconds into the frame.
func (c *Canvas) Alpha(elapsed float32) float32 {
	if c.fade == nil {
		return float32(c.alpha0) / OpaqueAlpha
	}
	v, _ := c.fade.Set(elapsed)
	return v / OpaqueAlpha
}

func (c *Canvas) rebuildFade() {
	if c.alpha0 == c.alpha1 {
		c.fade = nil
		return
	}
	c.fade = gween.New(float32(c.alpha0), float32(c.alpha1), float32(c.delay), ease.Linear)
}

func (c *Canvas) mirror(p image.Point) image.Point {
	if c.flipped {
		p.X = c.Width - p.X
	}
	return p
}

func clampAlpha(a int) int {
	switch {
	case a < 0:
		return 0
	case a > OpaqueAlpha:
		return OpaqueAlpha
	}
	return a
}
