package nx

import (
	"encoding/binary"
	"math"
	"sort"
	"strconv"
)

// Node is a lightweight handle to one node record. The zero Node is invalid
// and behaves as an empty leaf.
type Node struct {
	file  *File
	id    uint32
	valid bool
}

// Valid reports whether the handle refers to a readable node.
func (n Node) Valid() bool {
	return n.valid && n.file != nil && n.file.record(n.id) != nil
}

// ID returns the node's index in the node table.
func (n Node) ID() uint32 {
	return n.id
}

// File returns the container owning the node.
func (n Node) File() *File {
	return n.file
}

// Name returns the node name, or "" for an invalid node.
func (n Node) Name() string {
	rec := n.rec()
	if rec == nil {
		return ""
	}
	name, _ := n.file.str(binary.LittleEndian.Uint32(rec[0:]))
	return name
}

// Kind returns the type of the node's value.
func (n Node) Kind() Kind {
	rec := n.rec()
	if rec == nil {
		return KindNone
	}
	return Kind(binary.LittleEndian.Uint16(rec[10:]))
}

// Value decodes the node's value. Unknown kinds and broken string references
// decode as KindNone.
func (n Node) Value() Value {
	rec := n.rec()
	if rec == nil {
		return Value{}
	}

	le := binary.LittleEndian
	data := rec[12:20]
	switch Kind(le.Uint16(rec[10:])) {
	case KindInt:
		return IntValue(int64(le.Uint64(data)))
	case KindReal:
		return RealValue(math.Float64frombits(le.Uint64(data)))
	case KindString:
		s, ok := n.file.str(le.Uint32(data))
		if !ok {
			return Value{}
		}
		return StringValue(s)
	case KindVector:
		return VectorValue(int32(le.Uint32(data)), int32(le.Uint32(data[4:])))
	case KindBitmap:
		return Value{Kind: KindBitmap, Bitmap: BitmapRef{
			ID:     le.Uint32(data),
			Width:  le.Uint16(data[4:]),
			Height: le.Uint16(data[6:]),
		}}
	case KindAudio:
		return Value{Kind: KindAudio, Audio: AudioRef{
			ID:     le.Uint32(data),
			Length: le.Uint32(data[4:]),
		}}
	}
	return Value{}
}

// ChildCount returns the number of readable children.
func (n Node) ChildCount() int {
	_, count := n.childRange()
	return int(count)
}

// Children returns the node's children in container order.
func (n Node) Children() []Node {
	first, count := n.childRange()
	if count == 0 {
		return nil
	}
	out := make([]Node, count)
	for i := range out {
		out[i] = Node{file: n.file, id: first + uint32(i), valid: true}
	}
	return out
}

// Elements returns the children ordered as an array: names that parse as
// integers come first in numeric order, the rest follow by name. Children()
// would put "10" before "2".
func (n Node) Elements() []Node {
	kids := n.Children()
	sort.SliceStable(kids, func(i, j int) bool {
		a, aErr := strconv.Atoi(kids[i].Name())
		b, bErr := strconv.Atoi(kids[j].Name())
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		default:
			return false
		}
	})
	return kids
}

// Child looks up a direct child by name. Children are stored sorted by name,
// so only the probed siblings are decoded.
func (n Node) Child(name string) (Node, bool) {
	first, count := n.childRange()
	if count == 0 {
		return Node{}, false
	}

	i := sort.Search(int(count), func(i int) bool {
		return n.childName(first+uint32(i)) >= name
	})
	if i < int(count) && n.childName(first+uint32(i)) == name {
		return Node{file: n.file, id: first + uint32(i), valid: true}, true
	}
	return Node{}, false
}

// Resolve walks a '/'-separated path relative to n. Empty segments are
// ignored, so "a//b/" equals "a/b". Resolution fails at the first segment
// without a matching child.
func (n Node) Resolve(path string) (Node, bool) {
	if !n.Valid() {
		return Node{}, false
	}
	cur := n
	for _, seg := range splitPath(path) {
		next, ok := cur.Child(seg)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// Bitmap returns the bitmap reference of a bitmap node.
func (n Node) Bitmap() (BitmapRef, bool) {
	v := n.Value()
	if v.Kind != KindBitmap {
		return BitmapRef{}, false
	}
	return v.Bitmap, true
}

func (n Node) rec() []byte {
	if !n.valid || n.file == nil {
		return nil
	}
	return n.file.record(n.id)
}

// childRange returns the first child id and count. A child range reaching
// past the node table is treated as no children.
func (n Node) childRange() (uint32, uint32) {
	rec := n.rec()
	if rec == nil {
		return 0, 0
	}
	le := binary.LittleEndian
	first := le.Uint32(rec[4:])
	count := uint32(le.Uint16(rec[8:]))
	if count == 0 || uint64(first)+uint64(count) > uint64(n.file.header.NodeCount) {
		return 0, 0
	}
	return first, count
}

func (n Node) childName(id uint32) string {
	rec := n.file.record(id)
	if rec == nil {
		return ""
	}
	name, _ := n.file.str(binary.LittleEndian.Uint32(rec[0:]))
	return name
}
