package assets

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/Faultbox/maplemap/pkg/nx"
	"github.com/Faultbox/maplemap/pkg/nx/nxtest"
)

func openTestFile(t *testing.T, b *nxtest.Builder) *nx.File {
	t.Helper()
	f, err := nx.OpenBytes("test.nx", b.Bytes())
	if err != nil {
		t.Fatalf("failed to open synthetic NX: %v", err)
	}
	return f
}

func sampleContainer(t *testing.T) *nx.File {
	t.Helper()
	b := nxtest.New()
	b.Bitmap("Tile/grassySoil.img/bsc/0", nxtest.Solid(90, 60, color.NRGBA{G: 200, A: 255}))
	b.Vector("Tile/grassySoil.img/bsc/0/origin", 45, 30)
	b.Int("Tile/grassySoil.img/bsc/0/z", 3)

	b.Bitmap("Obj/houseGS.img/house9/basic/0/0", nxtest.Solid(4, 4, color.NRGBA{R: 255, A: 255}))
	b.Int("Obj/houseGS.img/house9/basic/0/0/delay", 150)
	b.Int("Obj/houseGS.img/house9/basic/0/0/a0", 0)
	for i, p := range [][2]int32{{-10, 0}, {0, 2}, {10, 0}} {
		b.Vector("Obj/houseGS.img/house9/basic/0/0/foothold/"+string(rune('0'+i)), p[0], p[1])
	}

	b.Bitmap("Tile/grassySoil.img/edU/0", nxtest.Solid(2, 2, color.NRGBA{A: 255}))
	b.Int("Tile/grassySoil.img/edU/0/extended/0/x", -3)
	b.Int("Tile/grassySoil.img/edU/0/extended/0/y", 1)
	b.Int("Tile/grassySoil.img/edU/0/extended/1/x", 3)
	b.Int("Tile/grassySoil.img/edU/0/extended/1/y", 1)

	b.RawBitmap("Back/broken.img/back/0", 8, 8, []byte{0xFF, 0xFF})
	b.RawBitmap("Back/oversized.img/back/0", 65535, 65535, []byte{0x10, 0x00})
	b.Int("Back/notABitmap.img/back/0", 1)
	return openTestFile(t, b)
}

func TestManager_Sprite(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	s, ok := m.Sprite(f, "Tile", "grassySoil", "bsc", "0")
	if !ok {
		t.Fatal("expected tile sprite")
	}
	if s.Image.Bounds().Dx() != 90 || s.Image.Bounds().Dy() != 60 {
		t.Errorf("expected 90x60 image, got %v", s.Image.Bounds())
	}
	if s.Data.Origin != image.Pt(45, 30) {
		t.Errorf("expected origin (45,30), got %v", s.Data.Origin)
	}
	if s.Data.Z != 3 {
		t.Errorf("expected z 3, got %d", s.Data.Z)
	}
	if s.Data.Delay != DefaultDelay || s.Data.Alpha0 != DefaultAlpha || s.Data.Alpha1 != DefaultAlpha {
		t.Errorf("expected default timing, got %+v", s.Data)
	}
}

func TestManager_Data(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	d, ok := m.Data(f, "Obj", "houseGS", "house9", "basic/0/0")
	if !ok {
		t.Fatal("expected object metadata")
	}
	if d.Delay != 150 {
		t.Errorf("expected delay 150, got %d", d.Delay)
	}
	if d.Alpha0 != 0 || d.Alpha1 != 255 {
		t.Errorf("expected alpha 0->255, got %d->%d", d.Alpha0, d.Alpha1)
	}
	want := []image.Point{{-10, 0}, {0, 2}, {10, 0}}
	if len(d.Footholds) != len(want) {
		t.Fatalf("expected %d foothold points, got %d", len(want), len(d.Footholds))
	}
	for i, p := range want {
		if d.Footholds[i] != p {
			t.Errorf("foothold %d: expected %v, got %v", i, p, d.Footholds[i])
		}
	}
}

func TestManager_ExtendedFootholds(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	d, ok := m.Data(f, "Tile", "grassySoil", "edU", "0")
	if !ok {
		t.Fatal("expected tile metadata")
	}
	if len(d.Footholds) != 2 || d.Footholds[0] != image.Pt(-3, 1) || d.Footholds[1] != image.Pt(3, 1) {
		t.Errorf("unexpected footholds %v", d.Footholds)
	}
}

func TestManager_CacheHit(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	a, ok := m.Sprite(f, "Tile", "grassySoil", "bsc", "0")
	if !ok {
		t.Fatal("expected sprite")
	}
	b, _ := m.Sprite(f, "Tile", "grassySoil", "bsc", "0")
	img, _ := m.Image(f, "Tile", "grassySoil", "bsc", "0")

	if a != b {
		t.Error("expected the same cached sprite on repeated lookup")
	}
	if img != a.Image {
		t.Error("expected Image to return the cached bitmap")
	}

	st := m.Stats()
	if st.Decodes != 1 {
		t.Errorf("expected 1 decode, got %d", st.Decodes)
	}
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("expected 2 hits / 1 miss, got %d / %d", st.Hits, st.Misses)
	}
}

func TestManager_NotFound(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	tests := []struct {
		name string
		keys []string
	}{
		{"missing frame", []string{"grassySoil", "bsc", "1"}},
		{"missing sheet", []string{"snow", "bsc", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := m.Sprite(f, "Tile", tt.keys...); ok {
				t.Error("expected not found")
			}
			if _, ok := m.Sprite(f, "Tile", tt.keys...); ok {
				t.Error("expected cached not found")
			}
		})
	}

	if _, ok := m.Sprite(f, "Back", "notABitmap", "back", "0"); ok {
		t.Error("non-bitmap node should not yield a sprite")
	}
	if m.Stats().Decodes != 0 {
		t.Errorf("missing keys must not decode, got %d decodes", m.Stats().Decodes)
	}
	if _, ok := m.Sprite(nil, "Tile", "grassySoil", "bsc", "0"); ok {
		t.Error("nil container should not yield a sprite")
	}
}

func TestManager_DecodeFailure(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	if _, ok := m.Sprite(f, "Back", "broken", "back", "0"); ok {
		t.Fatal("corrupt bitmap should be treated as not found")
	}
	if _, ok := m.Sprite(f, "Back", "broken", "back", "0"); ok {
		t.Fatal("corrupt bitmap should stay not found")
	}
	if got := m.Stats().Decodes; got != 1 {
		t.Errorf("expected corrupt bitmap to be decoded once, got %d", got)
	}
	if _, ok := m.Sprite(f, "Tile", "grassySoil", "bsc", "0"); !ok {
		t.Error("other sprites should still load")
	}
}

func TestManager_OversizedBitmap(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	if _, ok := m.Sprite(f, "Back", "oversized", "back", "0"); ok {
		t.Fatal("bitmap larger than its payload allows should be treated as not found")
	}
	if _, ok := m.Data(f, "Back", "oversized", "back", "0"); ok {
		t.Error("expected no metadata for the oversized bitmap")
	}
	if _, ok := m.Sprite(f, "Tile", "grassySoil", "bsc", "0"); !ok {
		t.Error("other sprites should still load")
	}
}

func TestManager_Evict(t *testing.T) {
	f1 := sampleContainer(t)
	f2 := sampleContainer(t)
	m := NewManager()

	m.Sprite(f1, "Tile", "grassySoil", "bsc", "0")
	m.Sprite(f1, "Tile", "grassySoil", "bsc", "9")
	m.Sprite(f2, "Tile", "grassySoil", "bsc", "0")

	if n := m.Evict(f1); n != 2 {
		t.Errorf("expected 2 evicted entries, got %d", n)
	}
	if st := m.Stats(); st.Entries != 1 {
		t.Errorf("expected 1 remaining entry, got %d", st.Entries)
	}

	m.Sprite(f1, "Tile", "grassySoil", "bsc", "0")
	if got := m.Stats().Decodes; got != 3 {
		t.Errorf("expected re-decode after eviction (3 decodes), got %d", got)
	}
}

func TestManager_Concurrent(t *testing.T) {
	f := sampleContainer(t)
	m := NewManager()

	const workers = 16
	results := make([]*Sprite, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.Sprite(f, "Tile", "grassySoil", "bsc", "0")
		}(i)
	}
	wg.Wait()

	for i, s := range results {
		if s == nil || s != results[0] {
			t.Fatalf("worker %d got a different sprite", i)
		}
	}
	if got := m.Stats().Decodes; got != 1 {
		t.Errorf("expected 1 decode under concurrency, got %d", got)
	}
}

func TestNewKey(t *testing.T) {
	tests := []struct {
		category string
		keys     []string
		want     string
	}{
		{"Back", []string{"grassySoil", "back", "3"}, "Back/grassySoil.img/back/3"},
		{"Obj", []string{"houseGS", "house9", "basic/0/2"}, "Obj/houseGS.img/house9/basic/0/2"},
		{"Tile", []string{"snow"}, "Tile/snow.img"},
	}
	for _, tt := range tests {
		if got := NewKey(nil, tt.category, tt.keys...).NodePath(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"Back/sky.img/back/0", "Back/sky.img/back/0", true},
		{"/Tile/snow.img/bsc/1/", "Tile/snow.img/bsc/1", true},
		{"Back", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		k, ok := ParseKey(nil, tt.path)
		if ok != tt.ok {
			t.Errorf("ParseKey(%q): expected ok=%v, got %v", tt.path, tt.ok, ok)
			continue
		}
		if ok && k.NodePath() != tt.want {
			t.Errorf("ParseKey(%q): expected %q, got %q", tt.path, tt.want, k.NodePath())
		}
	}
}
