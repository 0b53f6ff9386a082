package world

import (
	"errors"
	"image"
	"image/color"

	"github.com/Faultbox/maplemap/internal/engine/raster"
)

// MaxRenderSize caps both dimensions of a rendered map. Larger maps are
// cropped around their center.
const MaxRenderSize = 8192

// ErrEmptyScene is returned when a scene has no bounds to render.
var ErrEmptyScene = errors.New("scene has no drawable area")

// FootholdColor is used for the foothold overlay.
var FootholdColor = color.NRGBA{R: 255, G: 64, B: 64, A: 255}

// Render draws the scene over its bounds into a new image.
func (s *Scene) Render(footholds bool) (*image.RGBA, error) {
	view := s.Bounds()
	if view.Empty() {
		return nil, ErrEmptyScene
	}
	view = crop(view, MaxRenderSize)

	t := raster.NewForView(view)
	t.Clear(color.Black)
	s.Draw(t)
	if footholds {
		t.DrawSegments(s.Footholds(), FootholdColor)
	}
	return t.Dst, nil
}

func crop(r image.Rectangle, max int) image.Rectangle {
	if d := r.Dx() - max; d > 0 {
		r.Min.X += d / 2
		r.Max.X = r.Min.X + max
	}
	if d := r.Dy() - max; d > 0 {
		r.Min.Y += d / 2
		r.Max.Y = r.Min.Y + max
	}
	return r
}
