package quantiles

import (
	"fmt"
	"strings"
)

// Category describes the shape of a value: a single primitive or a compound of other values
type Category int

const (
	// PrimitiveCategory values are a single scalar or binary blob
	PrimitiveCategory Category = iota
	// ListCategory values are ordered sequences of a single element type
	ListCategory
	// MapCategory values map keys of one type to values of another
	MapCategory
	// StructCategory values are a fixed set of named fields
	StructCategory
)

// String returns a textual representation of this Category
func (c Category) String() string {
	switch c {
	case PrimitiveCategory:
		return "primitive"
	case ListCategory:
		return "list"
	case MapCategory:
		return "map"
	case StructCategory:
		return "struct"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// PrimitiveKind describes the type of a primitive value
type PrimitiveKind int

const (
	// UnknownKind is the kind of non-primitive values
	UnknownKind PrimitiveKind = iota
	// BinaryKind values are variable-length byte arrays, such as serialized sketches
	BinaryKind
	// BooleanKind values are booleans
	BooleanKind
	// ByteKind values are 8-bit signed integers
	ByteKind
	// ShortKind values are 16-bit signed integers
	ShortKind
	// IntKind values are 32-bit signed integers
	IntKind
	// LongKind values are 64-bit signed integers
	LongKind
	// FloatKind values are 32-bit floating point numbers
	FloatKind
	// DoubleKind values are 64-bit floating point numbers
	DoubleKind
	// StringKind values are variable-length strings
	StringKind
)

var kindNames = map[PrimitiveKind]string{
	BinaryKind:  "binary",
	BooleanKind: "boolean",
	ByteKind:    "tinyint",
	ShortKind:   "smallint",
	IntKind:     "int",
	LongKind:    "bigint",
	FloatKind:   "float",
	DoubleKind:  "double",
	StringKind:  "string",
}

// String returns a textual representation of this PrimitiveKind
func (k PrimitiveKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsIntegral returns true iff this PrimitiveKind is a signed integer
func (k PrimitiveKind) IsIntegral() bool {
	return k == ByteKind || k == ShortKind || k == IntKind || k == LongKind
}

// IsNumeric returns true iff this PrimitiveKind is an integer or floating point number
func (k PrimitiveKind) IsNumeric() bool {
	return k.IsIntegral() || k == FloatKind || k == DoubleKind
}

// Field is a named member of a StructCategory TypeDescriptor
type Field struct {
	Name string
	Type TypeDescriptor
}

// TypeDescriptor declares the type of an aggregate function argument or result,
// independent of any row data
type TypeDescriptor struct {
	Category Category
	Kind     PrimitiveKind   // set iff Category is PrimitiveCategory
	Element  *TypeDescriptor // list elements
	Key      *TypeDescriptor // map keys
	Value    *TypeDescriptor // map values
	Fields   []Field         // struct members
}

// Primitive produces a TypeDescriptor for a primitive of the given kind
func Primitive(kind PrimitiveKind) TypeDescriptor {
	return TypeDescriptor{Category: PrimitiveCategory, Kind: kind}
}

// ListOf produces a TypeDescriptor for a list of elem
func ListOf(elem TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{Category: ListCategory, Element: &elem}
}

// MapOf produces a TypeDescriptor for a map from key to value
func MapOf(key TypeDescriptor, value TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{Category: MapCategory, Key: &key, Value: &value}
}

// StructOf produces a TypeDescriptor for a struct with the given fields
func StructOf(fields ...Field) TypeDescriptor {
	return TypeDescriptor{Category: StructCategory, Fields: fields}
}

// IsPrimitive returns true iff this TypeDescriptor describes a primitive
func (t TypeDescriptor) IsPrimitive() bool {
	return t.Category == PrimitiveCategory
}

// Is returns true iff this TypeDescriptor describes a primitive of the given kind
func (t TypeDescriptor) Is(kind PrimitiveKind) bool {
	return t.IsPrimitive() && t.Kind == kind
}

// String produces a textual representation of this TypeDescriptor, e.g. struct<a:binary>
func (t TypeDescriptor) String() string {
	switch t.Category {
	case PrimitiveCategory:
		return t.Kind.String()
	case ListCategory:
		if t.Element == nil {
			return "array<?>"
		}
		return fmt.Sprintf("array<%s>", t.Element.String())
	case MapCategory:
		if t.Key == nil || t.Value == nil {
			return "map<?,?>"
		}
		return fmt.Sprintf("map<%s,%s>", t.Key.String(), t.Value.String())
	case StructCategory:
		var res strings.Builder
		fmt.Fprint(&res, "struct<")
		for i, f := range t.Fields {
			if i > 0 {
				fmt.Fprint(&res, ",")
			}
			fmt.Fprintf(&res, "%s:%s", f.Name, f.Type.String())
		}
		fmt.Fprint(&res, ">")
		return res.String()
	default:
		return t.Category.String()
	}
}
