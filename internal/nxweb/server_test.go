package nxweb

import (
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Faultbox/maplemap/pkg/nx"
	"github.com/Faultbox/maplemap/pkg/nx/nxtest"
)

const testMap = "Map/Map1/100000000.img/"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	b := nxtest.New()
	b.Bitmap("Tile/woodMarble.img/bsc/0", nxtest.Solid(4, 3, color.NRGBA{G: 255, A: 255}))
	b.String(testMap+"info/bgm", "Bgm00/FloralLife")
	b.String(testMap+"0/info/tS", "woodMarble")
	b.Int(testMap+"0/tile/0/x", 0)
	b.Int(testMap+"0/tile/0/y", 0)
	b.Int(testMap+"0/tile/0/no", 0)
	b.Int(testMap+"0/tile/0/zM", 0)
	b.String(testMap+"0/tile/0/u", "bsc")
	b.String(testMap+"portal/0/pn", "sp")
	b.Int(testMap+"portal/0/pt", 0)
	b.Int(testMap+"portal/0/x", 5)
	b.Int(testMap+"portal/0/y", 6)

	f, err := nx.OpenBytes("Map.nx", b.Bytes())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return NewServer(f, nil).Handler()
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestHandleNode(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/json/node/Tile/woodMarble.img/bsc")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var info NodeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != "bsc" || len(info.Children) != 1 || info.Children[0].Kind != "bitmap" {
		t.Errorf("unexpected node info %+v", info)
	}

	rec = get(t, h, "/json/node")
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if len(info.Children) != 2 {
		t.Errorf("expected Map and Tile under the root, got %+v", info.Children)
	}

	if rec := get(t, h, "/json/node/Nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandleMaps(t *testing.T) {
	rec := get(t, newTestServer(t), "/json/maps")
	var ids []string
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 1 || ids[0] != "100000000" {
		t.Errorf("expected [100000000], got %v", ids)
	}
}

func TestHandleMap(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/json/map/100000000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var sum MapSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Info.BGM != "Bgm00/FloralLife" {
		t.Errorf("expected bgm, got %q", sum.Info.BGM)
	}
	if sum.Layers["0"] != 1 || len(sum.Portals) != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.Bounds != [4]int{0, 0, 4, 3} {
		t.Errorf("expected bounds [0 0 4 3], got %v", sum.Bounds)
	}

	if rec := get(t, h, "/json/map/999999999"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing map, got %d", rec.Code)
	}
}

func TestHandleImage(t *testing.T) {
	h := newTestServer(t)

	rec := get(t, h, "/image/Tile/woodMarble.img/bsc/0")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("expected 4x3 image, got %v", b)
	}

	if rec := get(t, h, "/image/Tile/woodMarble.img/bsc/9"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := get(t, h, "/image/Tile"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRender(t *testing.T) {
	rec := get(t, newTestServer(t), "/render/100000000?footholds=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	r, g, _, _ := img.At(0, 0).RGBA()
	if r != 0 || g != 0xffff {
		t.Errorf("expected the green tile at (0,0), got %v", img.At(0, 0))
	}
}
