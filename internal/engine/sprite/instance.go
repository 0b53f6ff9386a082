package sprite

import (
	"image"
	"math"
)

// DrawOp describes one blit. X and Y are the top-left corner of the
// (possibly mirrored) image in world space.
type DrawOp struct {
	X, Y  int
	FlipX bool
	Alpha float32
}

// Target receives draw calls. Implementations must not modify img.
type Target interface {
	DrawImage(img *image.NRGBA, op DrawOp)
}

// Segment is a foothold line in world space.
type Segment struct {
	A, B image.Point
}

// Instance is one placed object cycling through its canvases.
type Instance struct {
	X, Y   int
	CX, CY int
	RX, RY int

	// Source fields kept for callers; they do not affect drawing.
	Type           int
	Front          bool
	Ani            int
	ForbidFallDown bool
	Rotation       int
	Move           int
	Dynamic        int
	Piece          int

	Z       int
	Flip    bool
	Opacity float32

	canvases []*Canvas
	frame    int
	elapsed  float32
}

// NewInstance creates an instance at (x, y) with full opacity.
func NewInstance(x, y int) *Instance {
	return &Instance{X: x, Y: y, Opacity: 1}
}

// AddCanvas appends a frame. The first canvas sets CX/CY when they are
// still zero.
func (i *Instance) AddCanvas(c *Canvas) {
	if len(i.canvases) == 0 {
		if i.CX == 0 {
			i.CX = c.Width
		}
		if i.CY == 0 {
			i.CY = c.Height
		}
	}
	i.canvases = append(i.canvases, c)
}

// SetZ sets the ordering key inside a layer. It must be set before the
// instance is added to a layer.
func (i *Instance) SetZ(z int) {
	i.Z = z
}

// Canvases returns the frames in animation order.
func (i *Instance) Canvases() []*Canvas {
	return i.canvases
}

// Frame returns the index of the active canvas.
func (i *Instance) Frame() int {
	return i.frame
}

// Active returns the canvas currently shown, or nil for an empty instance.
func (i *Instance) Active() *Canvas {
	if len(i.canvases) == 0 {
		return nil
	}
	return i.canvases[i.frame]
}

// Update advances the animation clock by elapsed milliseconds. Leftover
// time carries into the next frame.
func (i *Instance) Update(elapsed float32) {
	if len(i.canvases) == 0 || elapsed <= 0 {
		return
	}
	i.elapsed += elapsed

	// Whole cycles end on the same frame; drop them so a long stall costs
	// at most one pass.
	if cycle := i.cycle(); i.elapsed >= cycle {
		i.elapsed = float32(math.Mod(float64(i.elapsed), float64(cycle)))
	}
	for {
		delay := i.canvases[i.frame].frameDelay()
		if i.elapsed < delay {
			return
		}
		i.elapsed -= delay
		i.frame = (i.frame + 1) % len(i.canvases)
	}
}

// cycle returns the duration of one full animation loop.
func (i *Instance) cycle() float32 {
	var total float32
	for _, c := range i.canvases {
		total += c.frameDelay()
	}
	return total
}

// Draw blits the active canvas with its origin at the instance position.
func (i *Instance) Draw(t Target) {
	c := i.Active()
	if c == nil || c.Image == nil {
		return
	}
	alpha := c.Alpha(i.elapsed) * i.Opacity
	if alpha <= 0 {
		return
	}
	o := c.Origin()
	t.DrawImage(c.Image, DrawOp{
		X:     i.X - o.X,
		Y:     i.Y - o.Y,
		FlipX: c.Flipped(),
		Alpha: alpha,
	})
}

// Footholds returns the world-space segments of the active canvas.
func (i *Instance) Footholds() []Segment {
	c := i.Active()
	if c == nil {
		return nil
	}
	pts := c.Footholds()
	if len(pts) < 2 {
		return nil
	}
	base := image.Pt(i.X, i.Y).Sub(c.Origin())
	segs := make([]Segment, 0, len(pts)-1)
	for k := 1; k < len(pts); k++ {
		segs = append(segs, Segment{A: pts[k-1].Add(base), B: pts[k].Add(base)})
	}
	return segs
}

// Bounds returns the world rectangle covered by the active canvas.
func (i *Instance) Bounds() image.Rectangle {
	c := i.Active()
	if c == nil {
		return image.Rectangle{}
	}
	o := c.Origin()
	min := image.Pt(i.X-o.X, i.Y-o.Y)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(c.Width, c.Height))}
}
