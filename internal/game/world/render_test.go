package world

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestScene_Render(t *testing.T) {
	b := newMapBuilder()
	b.String(testMap+"0/info/tS", "woodMarble")
	b.sprite("Tile/woodMarble.img/bsc/0", 4, 4)
	b.tile(0, "0", "bsc", 0, 0)

	s := assemble(t, b.open(t))
	if want := image.Rect(10, 20, 14, 24); s.Bounds() != want {
		t.Fatalf("expected bounds %v, got %v", want, s.Bounds())
	}

	img, err := s.Render(false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("expected 4x4 image, got %v", img.Bounds())
	}
	want := color.RGBA{R: 200, G: 100, A: 255}
	if got := img.RGBAAt(0, 0); got != want {
		t.Errorf("expected tile color %v, got %v", want, got)
	}
}

func TestScene_RenderUsesMapBounds(t *testing.T) {
	b := newMapBuilder()
	b.ints(testMap+"info/", map[string]int{"VRLeft": -50, "VRTop": -40, "VRRight": 50, "VRBottom": 60})

	s := assemble(t, b.open(t))
	img, err := s.Render(true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Errorf("expected 100x100 image, got %v", img.Bounds())
	}
}

func TestScene_RenderEmpty(t *testing.T) {
	s := assemble(t, newMapBuilder().open(t))
	if _, err := s.Render(false); !errors.Is(err, ErrEmptyScene) {
		t.Errorf("expected ErrEmptyScene, got %v", err)
	}
}

func TestCrop(t *testing.T) {
	got := crop(image.Rect(0, -100, 1000, 100), 600)
	if want := image.Rect(200, -100, 800, 100); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}
