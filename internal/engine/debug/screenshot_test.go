package debug

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromGL_FlipsRows(t *testing.T) {
	// Two rows, bottom row first: red then blue.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	img, err := FromGL(pixels, 1, 2)
	if err != nil {
		t.Fatalf("FromGL: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("expected blue on top, got %v", got)
	}
	if got := img.RGBAAt(0, 1); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("expected red at the bottom, got %v", got)
	}
}

func TestFromGL_SizeMismatch(t *testing.T) {
	if _, err := FromGL(make([]byte, 7), 1, 2); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestScreenshots_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	s := NewScreenshots(dir, "maplemap")
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	path, err := s.Save(image.NewRGBA(image.Rect(0, 0, 3, 2)), "100000000")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(dir, "maplemap_100000000_2024-05-01_12-30-00.png"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 3 || cfg.Height != 2 {
		t.Errorf("expected 3x2, got %dx%d", cfg.Width, cfg.Height)
	}
}
