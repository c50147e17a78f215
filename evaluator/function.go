package evaluator

import (
	"fmt"

	"github.com/go-sif/quantiles"
	qerrors "github.com/go-sif/quantiles/errors"
	"github.com/go-sif/quantiles/sketch"
)

// Family describes the argument contract of an aggregate function
type Family int

const (
	// MergeFamily functions take exactly one serialized sketch
	MergeFamily Family = iota
	// UnionFamily functions take a serialized sketch and an optional int resolution
	UnionFamily
	// DataFamily functions take a raw item and an optional int resolution
	DataFamily
)

// String returns a textual representation of this Family
func (f Family) String() string {
	switch f {
	case MergeFamily:
		return "merge"
	case UnionFamily:
		return "union"
	case DataFamily:
		return "data"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Converter turns a non-nil row value into a sketch item. ok is false for values which
// should be skipped, such as NaN.
type Converter[T any] func(v interface{}) (item T, ok bool, err error)

// Function is a quantile sketch aggregate function over items of type T
type Function[T any] struct {
	name     string
	family   Family
	items    sketch.Items[T]
	itemKind quantiles.PrimitiveKind
	accepts  func(kind quantiles.PrimitiveKind) bool // raw item kinds, DataFamily only
	convert  Converter[T]                            // DataFamily only
}

// MergeSketch defines a function which merges serialized sketches of items
func MergeSketch[T any](name string, items sketch.Items[T], itemKind quantiles.PrimitiveKind) *Function[T] {
	return &Function[T]{name: name, family: MergeFamily, items: items, itemKind: itemKind}
}

// UnionSketch defines a function which unions serialized sketches of items, with an optional resolution
func UnionSketch[T any](name string, items sketch.Items[T], itemKind quantiles.PrimitiveKind) *Function[T] {
	return &Function[T]{name: name, family: UnionFamily, items: items, itemKind: itemKind}
}

// DataToSketch defines a function which builds a sketch from raw items, with an optional resolution.
// accepts decides which primitive argument kinds are valid raw items, and convert turns row values into items.
func DataToSketch[T any](name string, items sketch.Items[T], itemKind quantiles.PrimitiveKind, accepts func(kind quantiles.PrimitiveKind) bool, convert func(v interface{}) (T, bool, error)) *Function[T] {
	return &Function[T]{name: name, family: DataFamily, items: items, itemKind: itemKind, accepts: accepts, convert: convert}
}

var (
	// DataToDoubles builds a doubles sketch from any numeric column
	DataToDoubles = DataToSketch("data_to_doubles_sketch", sketch.Doubles, quantiles.DoubleKind, quantiles.PrimitiveKind.IsNumeric, ToFloat64)
	// UnionDoubles unions serialized doubles sketches
	UnionDoubles = UnionSketch("union_doubles_sketch", sketch.Doubles, quantiles.DoubleKind)
	// MergeDoubles merges serialized doubles sketches
	MergeDoubles = MergeSketch("merge_doubles_sketch", sketch.Doubles, quantiles.DoubleKind)

	// DataToStrings builds a strings sketch from a string column
	DataToStrings = DataToSketch("data_to_strings_sketch", sketch.Strings, quantiles.StringKind, isString, ToString)
	// UnionStrings unions serialized strings sketches
	UnionStrings = UnionSketch("union_strings_sketch", sketch.Strings, quantiles.StringKind)
	// MergeStrings merges serialized strings sketches
	MergeStrings = MergeSketch("merge_strings_sketch", sketch.Strings, quantiles.StringKind)

	// DataToInt64s builds an int64s sketch from any integral column
	DataToInt64s = DataToSketch("data_to_int64s_sketch", sketch.Int64s, quantiles.LongKind, quantiles.PrimitiveKind.IsIntegral, ToInt64)
	// UnionInt64s unions serialized int64s sketches
	UnionInt64s = UnionSketch("union_int64s_sketch", sketch.Int64s, quantiles.LongKind)
	// MergeInt64s merges serialized int64s sketches
	MergeInt64s = MergeSketch("merge_int64s_sketch", sketch.Int64s, quantiles.LongKind)
)

func isString(kind quantiles.PrimitiveKind) bool {
	return kind == quantiles.StringKind
}

// Name returns the name of this Function
func (f *Function[T]) Name() string {
	return f.name
}

// Family returns the argument contract of this Function
func (f *Function[T]) Family() Family {
	return f.family
}

// Items returns the element capability of the sketches this Function produces
func (f *Function[T]) Items() sketch.Items[T] {
	return f.items
}

// Arity returns the minimum and maximum number of arguments this Function accepts
func (f *Function[T]) Arity() (min int, max int) {
	if f.family == MergeFamily {
		return 1, 1
	}
	return 1, 2
}

// Validate checks argument descriptors against this Function's contract, independent of any row data,
// and returns the type of the intermediate result. It must pass before any buffer is created.
func (f *Function[T]) Validate(args []quantiles.TypeDescriptor) (quantiles.TypeDescriptor, error) {
	min, max := f.Arity()
	if len(args) < min || len(args) > max {
		return quantiles.TypeDescriptor{}, qerrors.ArgumentCountError{Function: f.name, Min: min, Max: max, Got: len(args)}
	}
	primary := args[0]
	if f.family == DataFamily {
		if !primary.IsPrimitive() || !f.accepts(primary.Kind) {
			return quantiles.TypeDescriptor{}, qerrors.ArgumentTypeError{Function: f.name, Position: 0, Expected: fmt.Sprintf("a primitive convertible to %s", f.itemKind), Got: primary.String()}
		}
	} else if !primary.Is(quantiles.BinaryKind) {
		return quantiles.TypeDescriptor{}, qerrors.ArgumentTypeError{Function: f.name, Position: 0, Expected: quantiles.BinaryKind.String(), Got: primary.String()}
	}
	if len(args) > 1 && !args[1].Is(quantiles.IntKind) {
		return quantiles.TypeDescriptor{}, qerrors.ArgumentTypeError{Function: f.name, Position: 1, Expected: quantiles.IntKind.String(), Got: args[1].String()}
	}
	return quantiles.Primitive(quantiles.BinaryKind), nil
}
