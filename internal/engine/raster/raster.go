// Package raster draws sprite layers into an in-memory RGBA image. It is
// used for headless rendering and map thumbnails.
package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Faultbox/maplemap/internal/engine/sprite"
)

// Target is a sprite.Target compositing into an RGBA image. World
// coordinates are translated by the camera position.
type Target struct {
	Dst    *image.RGBA
	Camera image.Point

	// Draws counts blits that touched the image.
	Draws int
}

// New creates a target of the given size with the camera at the origin.
func New(w, h int) *Target {
	return &Target{Dst: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// NewForView creates a target covering the world rectangle view.
func NewForView(view image.Rectangle) *Target {
	t := New(view.Dx(), view.Dy())
	t.Camera = view.Min
	return t
}

// Clear fills the image with c.
func (t *Target) Clear(c color.Color) {
	draw.Draw(t.Dst, t.Dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawImage implements sprite.Target.
func (t *Target) DrawImage(img *image.NRGBA, op sprite.DrawOp) {
	if img == nil || op.Alpha <= 0 {
		return
	}
	size := img.Bounds().Size()
	x, y := op.X-t.Camera.X, op.Y-t.Camera.Y
	dr := image.Rect(x, y, x+size.X, y+size.Y)
	if !dr.Overlaps(t.Dst.Bounds()) {
		return
	}

	var mask image.Image
	if op.Alpha < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(op.Alpha*255 + 0.5)})
	}

	if op.FlipX {
		// Mirror around the vertical center of the destination rectangle.
		s2d := f64.Aff3{
			-1, 0, float64(x + size.X),
			0, 1, float64(y),
		}
		draw.NearestNeighbor.Transform(t.Dst, s2d, img, img.Bounds(), draw.Over, &draw.Options{SrcMask: mask})
	} else {
		draw.DrawMask(t.Dst, dr, img, img.Bounds().Min, mask, image.Point{}, draw.Over)
	}
	t.Draws++
}

// DrawSegments strokes foothold segments one pixel wide.
func (t *Target) DrawSegments(segs []sprite.Segment, c color.Color) {
	for _, s := range segs {
		t.line(s.A.Sub(t.Camera), s.B.Sub(t.Camera), c)
	}
}

// line draws with Bresenham's algorithm; pixels outside are clipped by Set.
func (t *Target) line(a, b image.Point, c color.Color) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		t.Dst.Set(a.X, a.Y, c)
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
