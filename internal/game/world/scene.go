// Package world assembles renderable map scenes from NX map data.
package world

import (
	"image"

	"github.com/Faultbox/maplemap/internal/engine/sprite"
	"github.com/Faultbox/maplemap/internal/mapdata"
	"github.com/Faultbox/maplemap/pkg/nx"
)

// MapInfo is the typed projection of a map's info section.
type MapInfo struct {
	BGM       string
	ReturnMap int
	MobRate   float64

	// Camera bounds. HasBounds is false when the map does not define them.
	HasBounds bool
	VRLeft    int
	VRTop     int
	VRRight   int
	VRBottom  int

	Town bool
	Swim bool
	Fly  bool
}

// Portal is one map portal.
type Portal struct {
	Name string
	PN   string // portal name
	PT   int    // portal type
	X, Y int
	TM   int    // target map
	TN   string // target portal
}

// Scene is a fully assembled map. It is immutable once published except
// for animation state advanced by Update.
type Scene struct {
	MapID   string
	Info    MapInfo
	Minimap mapdata.Record
	Portals []Portal

	Back   *sprite.Layer
	Tiles  [mapdata.LayerCount]*sprite.Layer
	Front  *sprite.Layer
	Report Report
}

func newScene(mapID string) *Scene {
	s := &Scene{
		MapID: mapID,
		Back:  sprite.NewLayer("back"),
		Front: sprite.NewLayer("front"),
	}
	for i := range s.Tiles {
		s.Tiles[i] = sprite.NewLayer(layerName(i))
	}
	return s
}

// Layers returns the layers in draw order: background, the numbered
// layers, then front backgrounds.
func (s *Scene) Layers() []*sprite.Layer {
	out := make([]*sprite.Layer, 0, mapdata.LayerCount+2)
	out = append(out, s.Back)
	out = append(out, s.Tiles[:]...)
	return append(out, s.Front)
}

// Update advances every layer's animations by elapsed milliseconds.
func (s *Scene) Update(elapsed float32) {
	for _, l := range s.Layers() {
		l.Update(elapsed)
	}
}

// Draw blits all layers in order.
func (s *Scene) Draw(t sprite.Target) {
	for _, l := range s.Layers() {
		l.Draw(t)
	}
}

// Footholds returns the world-space foothold segments of every active
// canvas in the tile/object layers.
func (s *Scene) Footholds() []sprite.Segment {
	var out []sprite.Segment
	for _, l := range s.Tiles {
		out = append(out, l.Footholds()...)
	}
	return out
}

// InstanceCount returns the number of placed instances across all layers.
func (s *Scene) InstanceCount() int {
	n := 0
	for _, l := range s.Layers() {
		n += l.Len()
	}
	return n
}

// Bounds returns the camera bounds from the map info, or the extent of the
// tile and object layers when the map has none.
func (s *Scene) Bounds() image.Rectangle {
	if s.Info.HasBounds {
		return image.Rect(s.Info.VRLeft, s.Info.VRTop, s.Info.VRRight, s.Info.VRBottom)
	}
	var r image.Rectangle
	for _, l := range s.Tiles {
		r = r.Union(l.Bounds())
	}
	return r
}

func parseInfo(r mapdata.Record) MapInfo {
	info := MapInfo{
		BGM:       r.StringOr("bgm", ""),
		ReturnMap: r.IntOr("returnMap", 0),
		Town:      r.IntOr("town", 0) != 0,
		Swim:      r.IntOr("swim", 0) != 0,
		Fly:       r.IntOr("fly", 0) != 0,
		MobRate:   1,
	}
	if v, ok := r["mobRate"]; ok {
		if v.Kind == nx.KindReal {
			info.MobRate = v.Real
		} else if n, ok := v.AsInt(); ok {
			info.MobRate = float64(n)
		}
	}
	if r.Has("VRLeft") && r.Has("VRRight") && r.Has("VRTop") && r.Has("VRBottom") {
		info.HasBounds = true
		info.VRLeft = r.IntOr("VRLeft", 0)
		info.VRTop = r.IntOr("VRTop", 0)
		info.VRRight = r.IntOr("VRRight", 0)
		info.VRBottom = r.IntOr("VRBottom", 0)
	}
	return info
}

func parsePortal(r mapdata.Record) (Portal, error) {
	var p Portal
	var err error
	p.Name = r.Name()
	if p.PN, err = r.String("pn"); err != nil {
		return Portal{}, err
	}
	if p.PT, err = r.Int("pt"); err != nil {
		return Portal{}, err
	}
	if p.X, err = r.Int("x"); err != nil {
		return Portal{}, err
	}
	if p.Y, err = r.Int("y"); err != nil {
		return Portal{}, err
	}
	p.TM = r.IntOr("tm", 0)
	p.TN = r.StringOr("tn", "")
	return p, nil
}
