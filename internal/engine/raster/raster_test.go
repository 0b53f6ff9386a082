package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/Faultbox/maplemap/internal/engine/sprite"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
)

// twoPixel returns a 2x1 image: red then green.
func twoPixel() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, green)
	return img
}

func rgbaOf(c color.NRGBA) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func TestDrawImage(t *testing.T) {
	tests := []struct {
		name  string
		op    sprite.DrawOp
		want0 color.RGBA
		want1 color.RGBA
	}{
		{"plain", sprite.DrawOp{X: 1, Y: 1, Alpha: 1}, rgbaOf(red), rgbaOf(green)},
		{"flipped", sprite.DrawOp{X: 1, Y: 1, FlipX: true, Alpha: 1}, rgbaOf(green), rgbaOf(red)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := New(4, 3)
			dst.DrawImage(twoPixel(), tt.op)
			if got := dst.Dst.RGBAAt(1, 1); got != tt.want0 {
				t.Errorf("pixel (1,1): expected %v, got %v", tt.want0, got)
			}
			if got := dst.Dst.RGBAAt(2, 1); got != tt.want1 {
				t.Errorf("pixel (2,1): expected %v, got %v", tt.want1, got)
			}
			if got := dst.Dst.RGBAAt(0, 0); got.A != 0 {
				t.Errorf("untouched pixel should stay transparent, got %v", got)
			}
		})
	}
}

func TestDrawImage_Alpha(t *testing.T) {
	dst := New(2, 1)
	dst.DrawImage(twoPixel(), sprite.DrawOp{Alpha: 0.5})
	got := dst.Dst.RGBAAt(0, 0)
	if got.A < 126 || got.A > 129 {
		t.Errorf("expected half alpha, got %v", got)
	}

	dst.DrawImage(twoPixel(), sprite.DrawOp{Alpha: 0})
	if dst.Draws != 1 {
		t.Errorf("zero alpha should not draw, got %d draws", dst.Draws)
	}
}

func TestDrawImage_Camera(t *testing.T) {
	dst := NewForView(image.Rect(100, 50, 104, 53))
	dst.DrawImage(twoPixel(), sprite.DrawOp{X: 101, Y: 51, Alpha: 1})
	if got := dst.Dst.RGBAAt(1, 1); got != rgbaOf(red) {
		t.Errorf("expected red at camera-relative (1,1), got %v", got)
	}

	dst.DrawImage(twoPixel(), sprite.DrawOp{X: 0, Y: 0, Alpha: 1})
	if dst.Draws != 1 {
		t.Errorf("off-screen blit should be skipped, got %d draws", dst.Draws)
	}
}

func TestDrawSegments(t *testing.T) {
	dst := New(10, 10)
	dst.DrawSegments([]sprite.Segment{{A: image.Pt(1, 1), B: image.Pt(8, 1)}}, red)
	for x := 1; x <= 8; x++ {
		if got := dst.Dst.RGBAAt(x, 1); got != rgbaOf(red) {
			t.Fatalf("expected red at (%d,1), got %v", x, got)
		}
	}
	if got := dst.Dst.RGBAAt(9, 1); got.A != 0 {
		t.Errorf("segment should stop at its end point, got %v", got)
	}
}

func TestRenderLayer(t *testing.T) {
	l := sprite.NewLayer("0")
	back := sprite.NewInstance(0, 0)
	back.AddCanvas(sprite.NewCanvas(twoPixel(), image.Point{}, 0))
	back.SetZ(0)
	top := sprite.NewInstance(1, 0)
	top.AddCanvas(sprite.NewCanvas(twoPixel(), image.Point{}, 0))
	top.SetZ(1)
	_ = l.Add(top)
	_ = l.Add(back)

	dst := New(3, 1)
	l.Draw(dst)
	// The higher z instance covers the overlap.
	if got := dst.Dst.RGBAAt(1, 0); got != rgbaOf(red) {
		t.Errorf("expected red on top at (1,0), got %v", got)
	}
}
