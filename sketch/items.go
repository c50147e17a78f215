package sketch

import (
	"cmp"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Items is the capability an ItemsSketch needs from its element type: a total order and a codec.
// The Name is written into the wire format, so sketches over different element types never merge.
type Items[T any] interface {
	Name() string                         // Name identifies the element type in serialized sketches
	Compare(a, b T) int                   // Compare returns <0, 0 or >0, like cmp.Compare
	AppendItem(buf []byte, item T) []byte // AppendItem appends the encoded item to buf
	DecodeItem(buf []byte) (T, error)     // DecodeItem decodes an item produced by AppendItem
	SizeOf(item T) int                    // SizeOf returns the in-memory payload size of an item, in bytes
}

type doubleItems struct{}

func (doubleItems) Name() string { return "doubles" }

func (doubleItems) Compare(a, b float64) int { return cmp.Compare(a, b) }

func (doubleItems) AppendItem(buf []byte, item float64) []byte {
	return protowire.AppendFixed64(buf, math.Float64bits(item))
}

func (doubleItems) DecodeItem(buf []byte) (float64, error) {
	v, n := protowire.ConsumeFixed64(buf)
	if n < 0 || n != len(buf) {
		return 0, fmt.Errorf("%w: double item has %d bytes", ErrMalformed, len(buf))
	}
	return math.Float64frombits(v), nil
}

func (doubleItems) SizeOf(float64) int { return 8 }

type stringItems struct{}

func (stringItems) Name() string { return "strings" }

func (stringItems) Compare(a, b string) int { return cmp.Compare(a, b) }

func (stringItems) AppendItem(buf []byte, item string) []byte {
	return append(buf, item...)
}

func (stringItems) DecodeItem(buf []byte) (string, error) {
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: string item is not valid utf-8", ErrMalformed)
	}
	return string(buf), nil
}

func (stringItems) SizeOf(item string) int { return 16 + len(item) }

type int64Items struct{}

func (int64Items) Name() string { return "int64s" }

func (int64Items) Compare(a, b int64) int { return cmp.Compare(a, b) }

func (int64Items) AppendItem(buf []byte, item int64) []byte {
	return protowire.AppendVarint(buf, protowire.EncodeZigZag(item))
}

func (int64Items) DecodeItem(buf []byte) (int64, error) {
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 || n != len(buf) {
		return 0, fmt.Errorf("%w: int64 item has %d bytes", ErrMalformed, len(buf))
	}
	return protowire.DecodeZigZag(v), nil
}

func (int64Items) SizeOf(int64) int { return 8 }

var (
	// Doubles orders float64 items with cmp.Compare, so NaN sorts first
	Doubles Items[float64] = doubleItems{}
	// Strings orders string items lexicographically by byte
	Strings Items[string] = stringItems{}
	// Int64s orders int64 items numerically
	Int64s Items[int64] = int64Items{}
)
