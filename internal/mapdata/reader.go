// Package mapdata projects map nodes of an NX container into plain records.
//
// A map lives at "Map/Map{d}/{id}.img" where d is the first character of the
// map id. Every accessor returns false when its node is absent: maps do not
// have to define a minimap, portals or all eight layers. Nothing here decodes
// bitmaps or caches.
package mapdata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/maplemap/pkg/nx"
)

// LayerCount is the number of numbered tile/object layers of a map.
const LayerCount = 8

// Map buckets are named Map0..Map9.
const bucketCount = 10

// LayerData holds the raw entries of one numbered layer.
type LayerData struct {
	Info    Record
	Tiles   []Record
	Objects []Record
}

// Reader reads map structure from one container.
type Reader struct {
	file *nx.File
}

// NewReader returns a reader over f.
func NewReader(f *nx.File) *Reader {
	return &Reader{file: f}
}

// File returns the container the reader projects.
func (r *Reader) File() *nx.File {
	return r.file
}

// MapPath returns the container path of a map id.
func MapPath(id string) (string, bool) {
	if id == "" || id[0] < '0' || id[0] > '9' {
		return "", false
	}
	return "Map/Map" + id[:1] + "/" + id + ".img", true
}

// MapNode returns the root node of a map.
func (r *Reader) MapNode(id string) (nx.Node, bool) {
	path, ok := MapPath(id)
	if !ok {
		return nx.Node{}, false
	}
	return r.file.Resolve(path)
}

// MapNodes returns every map node across all buckets keyed by its node
// name ("100000000.img"). Map nodes hold no value of their own, only
// children, so the handle is returned instead of an always-none Value.
func (r *Reader) MapNodes() map[string]nx.Node {
	out := make(map[string]nx.Node)
	for d := 0; d < bucketCount; d++ {
		bucket, ok := r.file.Resolve("Map/Map" + strconv.Itoa(d))
		if !ok {
			continue
		}
		for _, c := range bucket.Children() {
			out[c.Name()] = c
		}
	}
	return out
}

// MapIDs returns the sorted ids of all maps.
func (r *Reader) MapIDs() []string {
	nodes := r.MapNodes()
	ids := make([]string, 0, len(nodes))
	for name := range nodes {
		if id, ok := strings.CutSuffix(name, ".img"); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// InfoData returns the map-level metadata record.
func (r *Reader) InfoData(id string) (Record, bool) {
	return r.section(id, "info")
}

// MinimapData returns the minimap record. The "canvas" field holds the
// bitmap's (width, height) as a vector.
func (r *Reader) MinimapData(id string) (Record, bool) {
	node, ok := r.sectionNode(id, "miniMap")
	if !ok {
		return nil, false
	}
	rec := NewRecord(node)
	if c, ok := node.Child("canvas"); ok {
		if ref, ok := c.Bitmap(); ok {
			rec["canvas"] = nx.VectorValue(int32(ref.Width), int32(ref.Height))
		}
	}
	return rec, true
}

// BackgroundData returns one record per background entry in index order.
func (r *Reader) BackgroundData(id string) ([]Record, bool) {
	node, ok := r.sectionNode(id, "back")
	if !ok {
		return nil, false
	}
	return records(node), true
}

// LayerData returns the info, tile and object entries of one numbered
// layer. Missing sections are returned empty.
func (r *Reader) LayerData(id string, layer int) (LayerData, bool) {
	node, ok := r.sectionNode(id, strconv.Itoa(layer))
	if !ok {
		return LayerData{}, false
	}

	var ld LayerData
	if info, ok := node.Child("info"); ok {
		ld.Info = NewRecord(info)
	} else {
		ld.Info = Record{}
	}
	if tiles, ok := node.Child("tile"); ok {
		ld.Tiles = records(tiles)
	}
	if objs, ok := node.Child("obj"); ok {
		ld.Objects = records(objs)
	}
	return ld, true
}

// PortalData returns one record per portal in index order.
func (r *Reader) PortalData(id string) ([]Record, bool) {
	node, ok := r.sectionNode(id, "portal")
	if !ok {
		return nil, false
	}
	return records(node), true
}

func (r *Reader) section(id, name string) (Record, bool) {
	node, ok := r.sectionNode(id, name)
	if !ok {
		return nil, false
	}
	return NewRecord(node), true
}

func (r *Reader) sectionNode(id, name string) (nx.Node, bool) {
	m, ok := r.MapNode(id)
	if !ok {
		return nx.Node{}, false
	}
	return m.Child(name)
}
