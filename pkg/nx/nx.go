// Package nx provides read access to PKG4 ("NX") asset containers.
//
// A container is a flat table of fixed-size node records plus string, bitmap
// and audio tables. Nodes are addressed by index and decoded straight from the
// backing buffer on access, so opening a container with tens of thousands of
// nodes costs one header parse. Bitmaps are only decompressed when asked for.
package nx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	magic      = "PKG4"
	headerSize = 52
	nodeSize   = 20
)

// Container format errors.
var (
	ErrInvalidMagic    = errors.New("invalid NX magic: expected 'PKG4'")
	ErrTruncated       = errors.New("truncated NX data")
	ErrBitmapNotFound  = errors.New("bitmap not found")
	ErrBitmapCorrupt   = errors.New("corrupt bitmap data")
	ErrAudioNotFound   = errors.New("audio not found")
	ErrNotBitmapNode   = errors.New("node does not hold a bitmap")
	ErrNotAudioNode    = errors.New("node does not hold audio")
	ErrTableOutOfRange = errors.New("table offset out of range")
)

// Header contains the NX table layout.
type Header struct {
	NodeCount    uint32
	NodeOffset   uint64
	StringCount  uint32
	StringOffset uint64
	BitmapCount  uint32
	BitmapOffset uint64
	AudioCount   uint32
	AudioOffset  uint64
}

// File is an opened NX container. It is immutable after Open and safe for
// concurrent readers.
type File struct {
	name   string
	data   []byte
	header Header
}

// Open reads an NX container from disk.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	f, err := OpenBytes(filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return f, nil
}

// OpenBytes wraps an in-memory NX container. The slice must not be modified
// while the File is in use.
func OpenBytes(name string, data []byte) (*File, error) {
	f := &File{name: name, data: data}
	if err := f.readHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases the backing buffer. Nodes obtained from the file become
// invalid and resolve to nothing afterwards.
func (f *File) Close() error {
	f.data = nil
	f.header = Header{}
	return nil
}

// Name returns the base name the container was opened with.
func (f *File) Name() string {
	return f.name
}

// Header returns the parsed container header.
func (f *File) Header() Header {
	return f.header
}

// Size returns the size of the backing buffer in bytes.
func (f *File) Size() int {
	return len(f.data)
}

func (f *File) readHeader() error {
	if len(f.data) < headerSize {
		return ErrTruncated
	}
	if string(f.data[0:4]) != magic {
		return ErrInvalidMagic
	}

	le := binary.LittleEndian
	f.header = Header{
		NodeCount:    le.Uint32(f.data[4:]),
		NodeOffset:   le.Uint64(f.data[8:]),
		StringCount:  le.Uint32(f.data[16:]),
		StringOffset: le.Uint64(f.data[20:]),
		BitmapCount:  le.Uint32(f.data[28:]),
		BitmapOffset: le.Uint64(f.data[32:]),
		AudioCount:   le.Uint32(f.data[40:]),
		AudioOffset:  le.Uint64(f.data[44:]),
	}

	if f.header.NodeCount == 0 {
		return fmt.Errorf("%w: container has no root node", ErrTruncated)
	}
	if !f.inBounds(f.header.NodeOffset, uint64(f.header.NodeCount)*nodeSize) {
		return fmt.Errorf("%w: node table", ErrTableOutOfRange)
	}
	if !f.inBounds(f.header.StringOffset, uint64(f.header.StringCount)*8) {
		return fmt.Errorf("%w: string table", ErrTableOutOfRange)
	}

	// Bitmap and audio tables are checked lazily; a broken media table must
	// not make the node tree unreadable.
	return nil
}

// Root returns the root node.
func (f *File) Root() Node {
	if f.data == nil {
		return Node{}
	}
	return Node{file: f, id: 0, valid: true}
}

// Resolve walks a '/'-separated path from the root node.
func (f *File) Resolve(path string) (Node, bool) {
	return f.Root().Resolve(path)
}

func (f *File) inBounds(offset, length uint64) bool {
	size := uint64(len(f.data))
	return offset <= size && length <= size-offset
}

// record returns the raw bytes of node id, or nil when the id lies outside
// the node table.
func (f *File) record(id uint32) []byte {
	if f.data == nil || id >= f.header.NodeCount {
		return nil
	}
	off := f.header.NodeOffset + uint64(id)*nodeSize
	return f.data[off : off+nodeSize]
}

// str returns string id from the string table. A broken entry yields "".
func (f *File) str(id uint32) (string, bool) {
	if id >= f.header.StringCount {
		return "", false
	}
	le := binary.LittleEndian
	off := le.Uint64(f.data[f.header.StringOffset+uint64(id)*8:])
	if !f.inBounds(off, 2) {
		return "", false
	}
	n := uint64(le.Uint16(f.data[off:]))
	if !f.inBounds(off+2, n) {
		return "", false
	}
	return string(f.data[off+2 : off+2+n]), true
}

// tableEntry reads the offset of entry id from a u64 offset table.
func (f *File) tableEntry(tableOffset uint64, count, id uint32) (uint64, bool) {
	if id >= count || !f.inBounds(tableOffset, uint64(count)*8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(f.data[tableOffset+uint64(id)*8:]), true
}

// splitPath splits a node path into segments, ignoring empty ones.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
