package sketch

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"

	"github.com/go-sif/quantiles"
	qerrors "github.com/go-sif/quantiles/errors"
)

const (
	// DefaultK is the resolution used when none is configured
	DefaultK = 128
	// MinK is the smallest supported resolution
	MinK = 2
	// MaxK is the largest supported resolution
	MaxK = 32768

	minLevelWidth  = 8
	sketchOverhead = 96
	levelOverhead  = 24
	maxLevelHeight = 63
	capacityDecay  = 2.0 / 3.0
)

var (
	// ErrEmpty is returned by accessors which need at least one item
	ErrEmpty = errors.New("sketch is empty")
	// ErrMalformed indicates serialized bytes which are truncated or violate a sketch invariant
	ErrMalformed = errors.New("malformed sketch")
	// ErrIncompatible indicates serialized bytes from a different version, family or element type
	ErrIncompatible = errors.New("incompatible sketch")
	// ErrInvalidRank indicates a normalized rank outside [0, 1]
	ErrInvalidRank = errors.New("rank must be between 0 and 1")
)

var _ quantiles.Summary[float64] = (*ItemsSketch[float64])(nil)

// IsValidK returns true iff k is a power of two between MinK and MaxK
func IsValidK(k int) bool {
	return k >= MinK && k <= MaxK && k&(k-1) == 0
}

// NormalizedRankError returns the approximate rank error, at 99% confidence, of a sketch with resolution k.
// With pmf set, the error applies to PMF (double-sided) queries rather than single ranks.
func NormalizedRankError(k int, pmf bool) float64 {
	if pmf {
		return 2.446 / math.Pow(float64(k), 0.9433)
	}
	return 2.296 / math.Pow(float64(k), 0.9723)
}

// ItemsSketch is a mergeable quantile sketch over items of type T. Items live in a stack of levels:
// an item at height h stands for 2^h input items. When the sketch outgrows its capacity, the lowest
// full level is sorted and every other item (at a random offset) is promoted to the next level.
// Upper levels hold up to k items, lower levels geometrically fewer.
type ItemsSketch[T any] struct {
	items   Items[T]
	k       int
	n       uint64
	minItem T
	maxItem T
	levels  [][]T
}

// New produces an empty ItemsSketch with resolution k
func New[T any](items Items[T], k int) (*ItemsSketch[T], error) {
	if !IsValidK(k) {
		return nil, qerrors.InvalidResolutionError{K: k, Min: MinK, Max: MaxK}
	}
	return &ItemsSketch[T]{
		items:  items,
		k:      k,
		levels: make([][]T, 1),
	}, nil
}

// Items returns the element capability of this sketch
func (s *ItemsSketch[T]) Items() Items[T] {
	return s.items
}

// K returns the resolution of this sketch
func (s *ItemsSketch[T]) K() int {
	return s.k
}

// N returns the total number of items this sketch represents
func (s *ItemsSketch[T]) N() uint64 {
	return s.n
}

// IsEmpty returns true iff no items have been added
func (s *ItemsSketch[T]) IsEmpty() bool {
	return s.n == 0
}

// NumRetained returns the number of items physically held by this sketch
func (s *ItemsSketch[T]) NumRetained() int {
	total := 0
	for _, level := range s.levels {
		total += len(level)
	}
	return total
}

// NumLevels returns the number of compaction levels currently allocated
func (s *ItemsSketch[T]) NumLevels() int {
	return len(s.levels)
}

// MinItem returns the exact smallest item added to this sketch
func (s *ItemsSketch[T]) MinItem() (T, error) {
	if s.IsEmpty() {
		var zero T
		return zero, ErrEmpty
	}
	return s.minItem, nil
}

// MaxItem returns the exact largest item added to this sketch
func (s *ItemsSketch[T]) MaxItem() (T, error) {
	if s.IsEmpty() {
		var zero T
		return zero, ErrEmpty
	}
	return s.maxItem, nil
}

// Update adds an item to this sketch
func (s *ItemsSketch[T]) Update(item T) {
	s.observe(item)
	s.n++
	s.levels[0] = append(s.levels[0], item)
	s.compress()
}

// Merge folds other into this sketch. The resolution of this sketch becomes the smaller of the two.
// other is not modified.
func (s *ItemsSketch[T]) Merge(other *ItemsSketch[T]) error {
	if other == nil {
		return nil
	}
	if other.items.Name() != s.items.Name() {
		return fmt.Errorf("%w: cannot merge %s into %s", ErrIncompatible, other.items.Name(), s.items.Name())
	}
	if other.k < s.k {
		s.k = other.k
	}
	if !other.IsEmpty() {
		if s.IsEmpty() {
			s.minItem = other.minItem
			s.maxItem = other.maxItem
		} else {
			s.observe(other.minItem)
			s.observe(other.maxItem)
		}
		s.n += other.n
		for len(s.levels) < len(other.levels) {
			s.levels = append(s.levels, nil)
		}
		// copy the source levels first, in case other == s
		incoming := make([][]T, len(other.levels))
		for h, level := range other.levels {
			incoming[h] = slices.Clone(level)
		}
		for h, level := range incoming {
			s.levels[h] = append(s.levels[h], level...)
		}
	}
	s.compress()
	return nil
}

// Copy produces a deep copy of this sketch
func (s *ItemsSketch[T]) Copy() *ItemsSketch[T] {
	levels := make([][]T, len(s.levels))
	for h, level := range s.levels {
		levels[h] = slices.Clone(level)
	}
	return &ItemsSketch[T]{
		items:   s.items,
		k:       s.k,
		n:       s.n,
		minItem: s.minItem,
		maxItem: s.maxItem,
		levels:  levels,
	}
}

// Quantile returns the approximate item at the given normalized rank. Ranks 0 and 1 return the exact
// minimum and maximum items.
func (s *ItemsSketch[T]) Quantile(rank float64) (T, error) {
	var zero T
	if s.IsEmpty() {
		return zero, ErrEmpty
	}
	if math.IsNaN(rank) || rank < 0 || rank > 1 {
		return zero, ErrInvalidRank
	}
	if rank == 0 {
		return s.minItem, nil
	}
	if rank == 1 {
		return s.maxItem, nil
	}
	sorted, cumulative := s.sortedView()
	target := uint64(math.Ceil(rank * float64(s.n)))
	if target == 0 {
		target = 1
	}
	idx := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] >= target })
	if idx == len(sorted) {
		return s.maxItem, nil
	}
	return sorted[idx], nil
}

// Quantiles returns the approximate items at each of the given normalized ranks
func (s *ItemsSketch[T]) Quantiles(ranks []float64) ([]T, error) {
	result := make([]T, len(ranks))
	for i, rank := range ranks {
		q, err := s.Quantile(rank)
		if err != nil {
			return nil, err
		}
		result[i] = q
	}
	return result, nil
}

// Rank returns the approximate normalized rank of item: the fraction of items strictly less than it,
// or less than or equal to it when inclusive is set
func (s *ItemsSketch[T]) Rank(item T, inclusive bool) (float64, error) {
	if s.IsEmpty() {
		return 0, ErrEmpty
	}
	var weight uint64
	for h, level := range s.levels {
		for _, retained := range level {
			c := s.items.Compare(retained, item)
			if c < 0 || (inclusive && c == 0) {
				weight += uint64(1) << uint(h)
			}
		}
	}
	return float64(weight) / float64(s.n), nil
}

// CDF returns the approximate cumulative distribution at each split point, plus a final entry of 1.
// splits must be strictly increasing.
func (s *ItemsSketch[T]) CDF(splits []T) ([]float64, error) {
	if s.IsEmpty() {
		return nil, ErrEmpty
	}
	for i := 1; i < len(splits); i++ {
		if s.items.Compare(splits[i-1], splits[i]) >= 0 {
			return nil, fmt.Errorf("split points must be unique and increasing (index %d)", i)
		}
	}
	result := make([]float64, len(splits)+1)
	for i, split := range splits {
		r, err := s.Rank(split, true)
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	result[len(splits)] = 1
	return result, nil
}

// EstimateMemory returns a conservative upper bound, in bytes, on the footprint of this sketch
// once its current level stack fills up and grows by one more level
func (s *ItemsSketch[T]) EstimateMemory() int {
	itemSize := 0
	for _, level := range s.levels {
		for _, item := range level {
			if sz := s.items.SizeOf(item); sz > itemSize {
				itemSize = sz
			}
		}
	}
	if !s.IsEmpty() {
		itemSize = max(itemSize, s.items.SizeOf(s.minItem), s.items.SizeOf(s.maxItem))
	}
	if itemSize == 0 {
		itemSize = 8
	}
	numLevels := len(s.levels) + 1
	return sketchOverhead + numLevels*levelOverhead + (totalCapacity(s.k, numLevels)+2)*itemSize
}

// String produces a textual representation of this sketch's shape
func (s *ItemsSketch[T]) String() string {
	return fmt.Sprintf("ItemsSketch<%s>{k=%d, n=%d, retained=%d, levels=%d}", s.items.Name(), s.k, s.n, s.NumRetained(), len(s.levels))
}

func (s *ItemsSketch[T]) observe(item T) {
	if s.n == 0 {
		s.minItem = item
		s.maxItem = item
		return
	}
	if s.items.Compare(item, s.minItem) < 0 {
		s.minItem = item
	}
	if s.items.Compare(item, s.maxItem) > 0 {
		s.maxItem = item
	}
}

// sortedView returns every retained item in order, with the cumulative weight up to and including each
func (s *ItemsSketch[T]) sortedView() ([]T, []uint64) {
	type weighted struct {
		item   T
		weight uint64
	}
	all := make([]weighted, 0, s.NumRetained())
	for h, level := range s.levels {
		for _, item := range level {
			all = append(all, weighted{item: item, weight: uint64(1) << uint(h)})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return s.items.Compare(all[i].item, all[j].item) < 0
	})
	sorted := make([]T, len(all))
	cumulative := make([]uint64, len(all))
	var total uint64
	for i, w := range all {
		total += w.weight
		sorted[i] = w.item
		cumulative[i] = total
	}
	return sorted, cumulative
}

func (s *ItemsSketch[T]) compress() {
	for s.NumRetained() > totalCapacity(s.k, len(s.levels)) {
		s.compactLevel(s.lowestFullLevel())
	}
}

func (s *ItemsSketch[T]) lowestFullLevel() int {
	for h, level := range s.levels {
		if len(level) >= levelCapacity(s.k, len(s.levels), h) {
			return h
		}
	}
	return len(s.levels) - 1
}

// compactLevel halves level h into level h+1. With an odd count, the smallest item stays behind.
func (s *ItemsSketch[T]) compactLevel(h int) {
	if h == len(s.levels)-1 {
		s.levels = append(s.levels, nil)
	}
	level := s.levels[h]
	slices.SortFunc(level, s.items.Compare)
	start := len(level) % 2
	for i := start + rand.Intn(2); i < len(level); i += 2 {
		s.levels[h+1] = append(s.levels[h+1], level[i])
	}
	s.levels[h] = slices.Clone(level[:start])
}

func levelCapacity(k int, numLevels int, height int) int {
	depth := numLevels - height - 1
	c := int(float64(k) * math.Pow(capacityDecay, float64(depth)))
	if c < minLevelWidth {
		return minLevelWidth
	}
	return c
}

func totalCapacity(k int, numLevels int) int {
	total := 0
	for h := 0; h < numLevels; h++ {
		total += levelCapacity(k, numLevels, h)
	}
	return total
}
