package nx

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the type of value a node carries.
type Kind uint16

// Node value kinds, numbered as stored in the container.
const (
	KindNone Kind = iota
	KindInt
	KindReal
	KindString
	KindVector
	KindBitmap
	KindAudio
)

var kindNames = [...]string{"none", "int", "real", "string", "vector", "bitmap", "audio"}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint16(k))
}

// BitmapRef points at a compressed image in the bitmap table.
type BitmapRef struct {
	ID     uint32
	Width  uint16
	Height uint16
}

// AudioRef points at raw audio bytes in the audio table.
type AudioRef struct {
	ID     uint32
	Length uint32
}

// Value is the tagged value of a node. Only the field matching Kind is set.
type Value struct {
	Kind   Kind
	Int    int64
	Real   float64
	Str    string
	X, Y   int32
	Bitmap BitmapRef
	Audio  AudioRef
}

// IntValue returns an integer Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// RealValue returns a floating point Value.
func RealValue(v float64) Value { return Value{Kind: KindReal, Real: v} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// VectorValue returns a 2D vector Value.
func VectorValue(x, y int32) Value { return Value{Kind: KindVector, X: x, Y: y} }

// IsNone reports whether the value carries nothing.
func (v Value) IsNone() bool {
	return v.Kind == KindNone
}

// AsInt converts the value to an int. Reals are truncated and numeric
// strings are parsed; any other kind fails.
func (v Value) AsInt() (int, bool) {
	switch v.Kind {
	case KindInt:
		return int(v.Int), true
	case KindReal:
		if math.IsNaN(v.Real) || math.IsInf(v.Real, 0) {
			return 0, false
		}
		return int(v.Real), true
	case KindString:
		n, err := strconv.Atoi(v.Str)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// AsString converts the value to a string. Integers are formatted in base 10.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindInt:
		return strconv.FormatInt(v.Int, 10), true
	}
	return "", false
}

// Vector returns the vector components. ok is false for non-vector values.
func (v Value) Vector() (x, y int32, ok bool) {
	if v.Kind != KindVector {
		return 0, 0, false
	}
	return v.X, v.Y, true
}

// Interface returns the value as a plain Go value, or nil for KindNone.
func (v Value) Interface() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindReal:
		return v.Real
	case KindString:
		return v.Str
	case KindVector:
		return [2]int32{v.X, v.Y}
	case KindBitmap:
		return v.Bitmap
	case KindAudio:
		return v.Audio
	}
	return nil
}

// String formats the value for display.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	case KindVector:
		return fmt.Sprintf("(%d, %d)", v.X, v.Y)
	case KindBitmap:
		return fmt.Sprintf("bitmap#%d %dx%d", v.Bitmap.ID, v.Bitmap.Width, v.Bitmap.Height)
	case KindAudio:
		return fmt.Sprintf("audio#%d %d bytes", v.Audio.ID, v.Audio.Length)
	}
	return "none"
}
