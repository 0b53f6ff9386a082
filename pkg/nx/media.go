package nx

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/pierrec/lz4/v4"
)

const maxLZ4Ratio = 255

// Image decodes a bitmap node into an NRGBA image. Bitmaps are stored as
// LZ4 blocks of BGRA8888 pixels.
func (n Node) Image() (*image.NRGBA, error) {
	ref, ok := n.Bitmap()
	if !ok {
		return nil, ErrNotBitmapNode
	}
	return n.file.DecodeBitmap(ref)
}

// DecodeBitmap decompresses the bitmap referenced by ref.
func (f *File) DecodeBitmap(ref BitmapRef) (*image.NRGBA, error) {
	if f.data == nil {
		return nil, ErrBitmapNotFound
	}
	off, ok := f.tableEntry(f.header.BitmapOffset, f.header.BitmapCount, ref.ID)
	if !ok || !f.inBounds(off, 4) {
		return nil, fmt.Errorf("%w: id %d", ErrBitmapNotFound, ref.ID)
	}

	length := uint64(binary.LittleEndian.Uint32(f.data[off:]))
	if !f.inBounds(off+4, length) {
		return nil, fmt.Errorf("%w: id %d length %d exceeds container", ErrBitmapCorrupt, ref.ID, length)
	}
	if ref.Width == 0 || ref.Height == 0 {
		return nil, fmt.Errorf("%w: id %d has zero size", ErrBitmapCorrupt, ref.ID)
	}

	// An LZ4 block expands at most 255x; a larger declared size cannot be
	// backed by this payload.
	if uint64(ref.Width)*uint64(ref.Height)*4 > length*maxLZ4Ratio {
		return nil, fmt.Errorf("%w: id %d declares %dx%d for %d bytes", ErrBitmapCorrupt, ref.ID, ref.Width, ref.Height, length)
	}

	w, h := int(ref.Width), int(ref.Height)
	pixels := make([]byte, w*h*4)
	got, err := lz4.UncompressBlock(f.data[off+4:off+4+length], pixels)
	if err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", ErrBitmapCorrupt, ref.ID, err)
	}
	if got != len(pixels) {
		return nil, fmt.Errorf("%w: id %d decoded %d bytes, want %d", ErrBitmapCorrupt, ref.ID, got, len(pixels))
	}

	// BGRA -> RGBA, in place
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+2] = pixels[i+2], pixels[i]
	}

	return &image.NRGBA{
		Pix:    pixels,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}, nil
}

// Audio returns the raw bytes of an audio node. The slice aliases the
// container buffer and must not be modified.
func (f *File) Audio(ref AudioRef) ([]byte, error) {
	if f.data == nil {
		return nil, ErrAudioNotFound
	}
	off, ok := f.tableEntry(f.header.AudioOffset, f.header.AudioCount, ref.ID)
	if !ok || !f.inBounds(off, uint64(ref.Length)) {
		return nil, fmt.Errorf("%w: id %d", ErrAudioNotFound, ref.ID)
	}
	return f.data[off : off+uint64(ref.Length)], nil
}

// AudioData returns the raw bytes of an audio node.
func (n Node) AudioData() ([]byte, error) {
	v := n.Value()
	if v.Kind != KindAudio {
		return nil, ErrNotAudioNode
	}
	return n.file.Audio(v.Audio)
}
