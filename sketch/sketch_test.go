package sketch

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	qerrors "github.com/go-sif/quantiles/errors"
	"github.com/stretchr/testify/require"
)

func requireWeightInvariant[T any](t *testing.T, s *ItemsSketch[T]) {
	var weight uint64
	for h, level := range s.levels {
		weight += uint64(len(level)) << uint(h)
	}
	require.Equal(t, s.N(), weight)
}

func TestNewRejectsInvalidK(t *testing.T) {
	for _, k := range []int{0, 1, 3, 100, MaxK * 2} {
		_, err := New(Doubles, k)
		var resErr qerrors.InvalidResolutionError
		require.True(t, errors.As(err, &resErr), "k=%d", k)
		require.Equal(t, k, resErr.K)
	}
	s, err := New(Doubles, 256)
	require.Nil(t, err)
	require.Equal(t, 256, s.K())
	require.True(t, s.IsEmpty())
}

func TestEmptySketch(t *testing.T) {
	s, err := New(Strings, DefaultK)
	require.Nil(t, err)
	_, err = s.MinItem()
	require.ErrorIs(t, err, ErrEmpty)
	_, err = s.MaxItem()
	require.ErrorIs(t, err, ErrEmpty)
	_, err = s.Quantile(0.5)
	require.ErrorIs(t, err, ErrEmpty)
	_, err = s.Rank("a", true)
	require.ErrorIs(t, err, ErrEmpty)
	require.Equal(t, 0, s.NumRetained())
}

func TestUpdateSmall(t *testing.T) {
	s, err := New(Doubles, 256)
	require.Nil(t, err)
	s.Update(2.0)
	s.Update(1.0)
	require.EqualValues(t, 2, s.N())
	require.Equal(t, 2, s.NumRetained())
	min, err := s.MinItem()
	require.Nil(t, err)
	require.Equal(t, 1.0, min)
	max, err := s.MaxItem()
	require.Nil(t, err)
	require.Equal(t, 2.0, max)
}

func TestCompactionPreservesWeight(t *testing.T) {
	for _, k := range []int{MinK, 8, 128, 1024} {
		s, err := New(Int64s, k)
		require.Nil(t, err)
		for i := 0; i < 50000; i++ {
			s.Update(int64(i))
		}
		require.EqualValues(t, 50000, s.N())
		require.LessOrEqual(t, s.NumRetained(), totalCapacity(k, s.NumLevels()), "k=%d", k)
		requireWeightInvariant(t, s)
		min, _ := s.MinItem()
		max, _ := s.MaxItem()
		require.EqualValues(t, 0, min)
		require.EqualValues(t, 49999, max)
	}
}

func TestQuantileAccuracy(t *testing.T) {
	n := 100000
	s, err := New(Doubles, DefaultK)
	require.Nil(t, err)
	for _, v := range rand.Perm(n) {
		s.Update(float64(v))
	}
	for _, rank := range []float64{0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99} {
		q, err := s.Quantile(rank)
		require.Nil(t, err)
		require.InDelta(t, rank*float64(n), q, 0.05*float64(n), "rank %f", rank)
		r, err := s.Rank(q, true)
		require.Nil(t, err)
		require.InDelta(t, rank, r, 0.05)
	}
	q, err := s.Quantile(0)
	require.Nil(t, err)
	require.Equal(t, 0.0, q)
	q, err = s.Quantile(1)
	require.Nil(t, err)
	require.Equal(t, float64(n-1), q)
	_, err = s.Quantile(1.5)
	require.ErrorIs(t, err, ErrInvalidRank)
	_, err = s.Quantile(math.NaN())
	require.ErrorIs(t, err, ErrInvalidRank)
}

func TestQuantilesAndCDF(t *testing.T) {
	s, err := New(Int64s, 64)
	require.Nil(t, err)
	for i := int64(1); i <= 10; i++ {
		s.Update(i)
	}
	qs, err := s.Quantiles([]float64{0, 0.5, 1})
	require.Nil(t, err)
	require.Equal(t, []int64{1, 5, 10}, qs)

	cdf, err := s.CDF([]int64{2, 5})
	require.Nil(t, err)
	require.Equal(t, []float64{0.2, 0.5, 1}, cdf)

	_, err = s.CDF([]int64{5, 2})
	require.NotNil(t, err)
}

func TestMergeTakesSmallerK(t *testing.T) {
	a, err := New(Doubles, 128)
	require.Nil(t, err)
	b, err := New(Doubles, 256)
	require.Nil(t, err)
	a.Update(1.0)
	b.Update(2.0)

	ab := a.Copy()
	require.Nil(t, ab.Merge(b))
	require.Equal(t, 128, ab.K())

	ba := b.Copy()
	require.Nil(t, ba.Merge(a))
	require.Equal(t, 128, ba.K())

	require.EqualValues(t, 2, ab.N())
	require.Equal(t, 2, ba.NumRetained())
	// sources are untouched
	require.EqualValues(t, 1, a.N())
	require.EqualValues(t, 1, b.N())
}

func TestMergeIntoEmptyKeepsMinAndMax(t *testing.T) {
	src, err := New(Doubles, 128)
	require.Nil(t, err)
	src.Update(5.0)
	src.Update(1.0)
	src.Update(3.0)

	dst, err := New(Doubles, 128)
	require.Nil(t, err)
	require.Nil(t, dst.Merge(src))
	require.EqualValues(t, 3, dst.N())
	min, err := dst.MinItem()
	require.Nil(t, err)
	max, err := dst.MaxItem()
	require.Nil(t, err)
	require.Equal(t, 1.0, min)
	require.Equal(t, 5.0, max)
	q0, err := dst.Quantile(0)
	require.Nil(t, err)
	require.Equal(t, 1.0, q0)

	// merging an empty sketch leaves the bounds alone
	empty, err := New(Doubles, 128)
	require.Nil(t, err)
	require.Nil(t, dst.Merge(empty))
	min, _ = dst.MinItem()
	max, _ = dst.MaxItem()
	require.Equal(t, 1.0, min)
	require.Equal(t, 5.0, max)
}

func TestMergeLargeIsCommutativeInCountMinMax(t *testing.T) {
	a, _ := New(Doubles, 64)
	b, _ := New(Doubles, 64)
	for i := 0; i < 20000; i++ {
		a.Update(float64(i))
		b.Update(float64(-i))
	}
	ab := a.Copy()
	require.Nil(t, ab.Merge(b))
	ba := b.Copy()
	require.Nil(t, ba.Merge(a))
	require.Equal(t, ab.N(), ba.N())
	abMin, _ := ab.MinItem()
	baMin, _ := ba.MinItem()
	require.Equal(t, abMin, baMin)
	abMax, _ := ab.MaxItem()
	baMax, _ := ba.MaxItem()
	require.Equal(t, abMax, baMax)
	requireWeightInvariant(t, ab)
	requireWeightInvariant(t, ba)
	median, err := ab.Quantile(0.5)
	require.Nil(t, err)
	require.InDelta(t, 0, median, 0.05*40000)
}

func TestMergeIntoSelf(t *testing.T) {
	s, _ := New(Strings, 8)
	for i := 0; i < 100; i++ {
		s.Update(fmt.Sprintf("item-%03d", i))
	}
	require.Nil(t, s.Merge(s))
	require.EqualValues(t, 200, s.N())
	requireWeightInvariant(t, s)
}

func TestEstimateMemoryIsUpperBound(t *testing.T) {
	s, _ := New(Doubles, 128)
	before := s.EstimateMemory()
	require.Greater(t, before, 0)
	for i := 0; i < 10000; i++ {
		s.Update(float64(i))
	}
	require.GreaterOrEqual(t, s.EstimateMemory(), s.NumRetained()*8)
	small, _ := New(Doubles, 16)
	require.Less(t, small.EstimateMemory(), before)
}

func TestNormalizedRankError(t *testing.T) {
	require.Greater(t, NormalizedRankError(128, false), NormalizedRankError(256, false))
	require.Greater(t, NormalizedRankError(128, true), NormalizedRankError(128, false))
	require.InDelta(t, 0.0206, NormalizedRankError(128, false), 0.001)
}
