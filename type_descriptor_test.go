package quantiles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeDescriptorString(t *testing.T) {
	require.Equal(t, "binary", Primitive(BinaryKind).String())
	require.Equal(t, "array<double>", ListOf(Primitive(DoubleKind)).String())
	require.Equal(t, "map<string,bigint>", MapOf(Primitive(StringKind), Primitive(LongKind)).String())
	require.Equal(t, "struct<a:binary,b:int>", StructOf(Field{"a", Primitive(BinaryKind)}, Field{"b", Primitive(IntKind)}).String())
	require.Equal(t, "unknown", PrimitiveKind(99).String())
}

func TestTypeDescriptorPredicates(t *testing.T) {
	require.True(t, Primitive(IntKind).Is(IntKind))
	require.False(t, Primitive(IntKind).Is(LongKind))
	require.False(t, ListOf(Primitive(IntKind)).Is(IntKind))
	require.False(t, StructOf().IsPrimitive())

	for _, kind := range []PrimitiveKind{ByteKind, ShortKind, IntKind, LongKind} {
		require.True(t, kind.IsIntegral())
		require.True(t, kind.IsNumeric())
	}
	for _, kind := range []PrimitiveKind{FloatKind, DoubleKind} {
		require.False(t, kind.IsIntegral())
		require.True(t, kind.IsNumeric())
	}
	for _, kind := range []PrimitiveKind{BinaryKind, BooleanKind, StringKind} {
		require.False(t, kind.IsNumeric())
	}
}
