package accumulators

import (
	"errors"
	"testing"

	qerrors "github.com/go-sif/quantiles/errors"
	"github.com/go-sif/quantiles/sketch"
	"github.com/stretchr/testify/require"
)

func serializedDoubles(t *testing.T, k int, values ...float64) []byte {
	s, err := sketch.New(sketch.Doubles, k)
	require.Nil(t, err)
	for _, v := range values {
		s.Update(v)
	}
	buf, err := s.MarshalBinary()
	require.Nil(t, err)
	return buf
}

func serializedStrings(t *testing.T, k int, values ...string) []byte {
	s, err := sketch.New(sketch.Strings, k)
	require.Nil(t, err)
	for _, v := range values {
		s.Update(v)
	}
	buf, err := s.MarshalBinary()
	require.Nil(t, err)
	return buf
}

func TestUpdateThenMerge(t *testing.T) {
	state := NewUnionState(sketch.Doubles)
	require.Nil(t, state.Init(256))
	require.Nil(t, state.Update(1.0))
	require.Nil(t, state.Merge(serializedDoubles(t, 256, 2.0)))

	buf, err := state.SerializedResult()
	require.Nil(t, err)
	res, err := sketch.Unmarshal(sketch.Doubles, buf)
	require.Nil(t, err)
	require.Equal(t, 256, res.K())
	require.Equal(t, 2, res.NumRetained())
	min, _ := res.MinItem()
	max, _ := res.MaxItem()
	require.Equal(t, 1.0, min)
	require.Equal(t, 2.0, max)
}

func TestEmptyResultIsNil(t *testing.T) {
	state := NewUnionState(sketch.Doubles)
	buf, err := state.SerializedResult()
	require.Nil(t, err)
	require.Nil(t, buf)
	require.Nil(t, state.Result())
	require.Nil(t, state.Sketch())

	require.Nil(t, state.Update(4.0))
	require.NotNil(t, state.Result())
	state.Reset()
	require.False(t, state.IsInitialized())
	buf, err = state.SerializedResult()
	require.Nil(t, err)
	require.Nil(t, buf)
	require.Nil(t, state.Result())
}

func TestMergeEmptySketchIsNotEmptyResult(t *testing.T) {
	state := NewUnionState(sketch.Doubles)
	require.Nil(t, state.Merge(serializedDoubles(t, 64)))
	res := state.Result()
	require.NotNil(t, res)
	require.True(t, res.IsEmpty())
	require.Equal(t, 64, res.K())
}

func TestDefaultKOnUpdate(t *testing.T) {
	state := NewUnionState(sketch.Strings)
	require.Nil(t, state.Update("a"))
	require.Equal(t, sketch.DefaultK, state.K())
}

func TestUninitializedMergeAdoptsIncomingK(t *testing.T) {
	state := NewUnionState(sketch.Strings)
	require.Nil(t, state.Merge(serializedStrings(t, 256, "a")))
	require.Nil(t, state.Merge(serializedStrings(t, 256, "b")))
	require.Equal(t, 256, state.K())
}

func TestConfiguredKDownsizesInput(t *testing.T) {
	state := NewUnionState(sketch.Strings)
	require.Nil(t, state.Init(sketch.DefaultK))
	require.Nil(t, state.Merge(serializedStrings(t, 256, "a")))
	require.Nil(t, state.Merge(serializedStrings(t, 256, "b")))
	res := state.Sketch()
	require.Equal(t, 128, res.K())
	require.Equal(t, 2, res.NumRetained())
}

func TestResolutionNeverIncreases(t *testing.T) {
	// 256 into 128
	state := NewUnionState(sketch.Doubles)
	require.Nil(t, state.Merge(serializedDoubles(t, 128, 1.0)))
	require.Nil(t, state.Merge(serializedDoubles(t, 256, 2.0)))
	require.Equal(t, 128, state.K())

	// and vice versa
	state = NewUnionState(sketch.Doubles)
	require.Nil(t, state.Merge(serializedDoubles(t, 256, 1.0)))
	require.Nil(t, state.Merge(serializedDoubles(t, 128, 2.0)))
	require.Equal(t, 128, state.K())
}

func TestMergeOrderDoesNotAffectCountMinMax(t *testing.T) {
	a := serializedDoubles(t, 128, 1, 5, 9)
	b := serializedDoubles(t, 128, -3, 4)

	ab := NewUnionState(sketch.Doubles)
	require.Nil(t, ab.Merge(a))
	require.Nil(t, ab.Merge(b))
	ba := NewUnionState(sketch.Doubles)
	require.Nil(t, ba.Merge(b))
	require.Nil(t, ba.Merge(a))

	for _, s := range []*UnionState[float64]{ab, ba} {
		res := s.Sketch()
		require.Equal(t, 5, res.NumRetained())
		min, _ := res.MinItem()
		max, _ := res.MaxItem()
		require.Equal(t, -3.0, min)
		require.Equal(t, 9.0, max)
	}
}

func TestMergeMalformedBytes(t *testing.T) {
	state := NewUnionState(sketch.Doubles)
	require.Nil(t, state.Update(1.0))
	err := state.Merge([]byte("definitely not a sketch"))
	var deserErr qerrors.DeserializationError
	require.True(t, errors.As(err, &deserErr))
	require.ErrorIs(t, err, sketch.ErrMalformed)

	err = state.Merge(serializedStrings(t, 128, "a"))
	require.ErrorIs(t, err, sketch.ErrIncompatible)

	// state is untouched by the failed merges
	res := state.Sketch()
	require.EqualValues(t, 1, res.N())
}

func TestInitRejectsInvalidK(t *testing.T) {
	state := NewUnionState(sketch.Doubles)
	err := state.Init(100)
	var resErr qerrors.InvalidResolutionError
	require.True(t, errors.As(err, &resErr))
	require.False(t, state.IsInitialized())
}

func TestEstimateMemoryGrows(t *testing.T) {
	state := Union(sketch.Doubles)()
	empty := state.EstimateMemory()
	require.Nil(t, state.Update(1.0))
	require.Greater(t, state.EstimateMemory(), empty)
}
