// Package nxtest builds small NX containers in memory for tests.
package nxtest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Node kinds as written to the container.
const (
	kindNone uint16 = iota
	kindInt
	kindReal
	kindString
	kindVector
	kindBitmap
	kindAudio
)

// Node is one node under construction.
type Node struct {
	name     string
	kind     uint16
	data     [8]byte
	str      string
	payload  []byte
	children map[string]*Node
}

// Builder assembles a container. The zero value is not usable; call New.
type Builder struct {
	root *Node
}

// New returns a builder with an empty root node.
func New() *Builder {
	return &Builder{root: &Node{children: map[string]*Node{}}}
}

// Dir returns the node at path, creating it and any parents as empty nodes.
func (b *Builder) Dir(path string) *Node {
	cur := b.root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		cur = cur.child(seg)
	}
	return cur
}

// Int sets an integer node at path.
func (b *Builder) Int(path string, v int64) *Node {
	n := b.Dir(path)
	n.kind = kindInt
	binary.LittleEndian.PutUint64(n.data[:], uint64(v))
	return n
}

// Real sets a floating point node at path.
func (b *Builder) Real(path string, v float64) *Node {
	n := b.Dir(path)
	n.kind = kindReal
	binary.LittleEndian.PutUint64(n.data[:], math.Float64bits(v))
	return n
}

// String sets a string node at path.
func (b *Builder) String(path, s string) *Node {
	n := b.Dir(path)
	n.kind = kindString
	n.str = s
	return n
}

// Vector sets a vector node at path.
func (b *Builder) Vector(path string, x, y int32) *Node {
	n := b.Dir(path)
	n.kind = kindVector
	binary.LittleEndian.PutUint32(n.data[0:], uint32(x))
	binary.LittleEndian.PutUint32(n.data[4:], uint32(y))
	return n
}

// Bitmap stores img as an LZ4 compressed BGRA bitmap at path.
func (b *Builder) Bitmap(path string, img image.Image) *Node {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 0, w*h*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pixels = append(pixels, c.B, c.G, c.R, c.A)
		}
	}
	return b.RawBitmap(path, w, h, compress(pixels))
}

// RawBitmap stores an arbitrary bitmap payload with the given declared size.
// It is used to fabricate corrupt bitmaps.
func (b *Builder) RawBitmap(path string, w, h int, payload []byte) *Node {
	n := b.Dir(path)
	n.kind = kindBitmap
	binary.LittleEndian.PutUint16(n.data[4:], uint16(w))
	binary.LittleEndian.PutUint16(n.data[6:], uint16(h))
	n.payload = payload
	return n
}

// Audio stores raw audio bytes at path.
func (b *Builder) Audio(path string, data []byte) *Node {
	n := b.Dir(path)
	n.kind = kindAudio
	binary.LittleEndian.PutUint32(n.data[4:], uint32(len(data)))
	n.payload = data
	return n
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func (n *Node) child(name string) *Node {
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	c, ok := n.children[name]
	if !ok {
		c = &Node{name: name}
		n.children[name] = c
	}
	return c
}

func (n *Node) sortedChildren() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func compress(src []byte) []byte {
	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		panic(err)
	}
	return dst[:n]
}

// Bytes serializes the container.
func (b *Builder) Bytes() []byte {
	// Breadth-first numbering keeps every child list contiguous.
	order := []*Node{b.root}
	first := map[*Node]uint32{}
	for i := 0; i < len(order); i++ {
		kids := order[i].sortedChildren()
		first[order[i]] = uint32(len(order))
		order = append(order, kids...)
	}

	var strs []string
	strIDs := map[string]uint32{}
	intern := func(s string) uint32 {
		if id, ok := strIDs[s]; ok {
			return id
		}
		id := uint32(len(strs))
		strIDs[s] = id
		strs = append(strs, s)
		return id
	}

	var bitmaps, audios [][]byte
	records := make([][]byte, len(order))
	for i, n := range order {
		rec := make([]byte, 20)
		binary.LittleEndian.PutUint32(rec[0:], intern(n.name))
		if len(n.children) > 0 {
			binary.LittleEndian.PutUint32(rec[4:], first[n])
			binary.LittleEndian.PutUint16(rec[8:], uint16(len(n.children)))
		}
		binary.LittleEndian.PutUint16(rec[10:], n.kind)
		copy(rec[12:], n.data[:])
		switch n.kind {
		case kindString:
			binary.LittleEndian.PutUint32(rec[12:], intern(n.str))
		case kindBitmap:
			binary.LittleEndian.PutUint32(rec[12:], uint32(len(bitmaps)))
			bitmaps = append(bitmaps, n.payload)
		case kindAudio:
			binary.LittleEndian.PutUint32(rec[12:], uint32(len(audios)))
			audios = append(audios, n.payload)
		}
		records[i] = rec
	}

	nodeOff := uint64(52)
	strTableOff := nodeOff + uint64(len(records))*20
	bmpTableOff := strTableOff + uint64(len(strs))*8
	audTableOff := bmpTableOff + uint64(len(bitmaps))*8
	dataOff := audTableOff + uint64(len(audios))*8

	var body bytes.Buffer
	tables := make([]byte, 0, dataOff-strTableOff)
	for _, s := range strs {
		tables = binary.LittleEndian.AppendUint64(tables, dataOff+uint64(body.Len()))
		body.Write(binary.LittleEndian.AppendUint16(nil, uint16(len(s))))
		body.WriteString(s)
	}
	for _, p := range bitmaps {
		tables = binary.LittleEndian.AppendUint64(tables, dataOff+uint64(body.Len()))
		body.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(p))))
		body.Write(p)
	}
	for _, p := range audios {
		tables = binary.LittleEndian.AppendUint64(tables, dataOff+uint64(body.Len()))
		body.Write(p)
	}

	var out bytes.Buffer
	header := make([]byte, 52)
	copy(header, "PKG4")
	binary.LittleEndian.PutUint32(header[4:], uint32(len(records)))
	binary.LittleEndian.PutUint64(header[8:], nodeOff)
	binary.LittleEndian.PutUint32(header[16:], uint32(len(strs)))
	binary.LittleEndian.PutUint64(header[20:], strTableOff)
	binary.LittleEndian.PutUint32(header[28:], uint32(len(bitmaps)))
	binary.LittleEndian.PutUint64(header[32:], bmpTableOff)
	binary.LittleEndian.PutUint32(header[40:], uint32(len(audios)))
	binary.LittleEndian.PutUint64(header[44:], audTableOff)
	out.Write(header)
	for _, rec := range records {
		out.Write(rec)
	}
	out.Write(tables)
	out.Write(body.Bytes())
	return out.Bytes()
}
