package accumulators

import (
	"github.com/go-sif/quantiles"
	qerrors "github.com/go-sif/quantiles/errors"
	"github.com/go-sif/quantiles/sketch"
)

// Union returns a factory of fresh UnionState Accumulators over the given element type
func Union[T any](items sketch.Items[T]) quantiles.AccumulatorFactory[T] {
	return func() quantiles.Accumulator[T] {
		return NewUnionState(items)
	}
}

// UnionState unions raw items and serialized sketches into a single owned sketch (the gadget).
// The gadget does not exist until the first item or sketch arrives, which lets callers tell
// "no input at all" apart from "an empty sketch as input".
type UnionState[T any] struct {
	items       sketch.Items[T]
	k           int // 0 until configured; adopt the incoming resolution on merge, DefaultK on update
	initialized bool
	gadget      *sketch.ItemsSketch[T]
}

var _ quantiles.Accumulator[string] = (*UnionState[string])(nil)

// NewUnionState produces an uninitialized UnionState
func NewUnionState[T any](items sketch.Items[T]) *UnionState[T] {
	return &UnionState[T]{items: items}
}

// Init configures the resolution of the gadget. k == 0 leaves it unset. The resolution of a gadget
// which already exists is never raised.
func (u *UnionState[T]) Init(k int) error {
	if k != 0 && !sketch.IsValidK(k) {
		return qerrors.InvalidResolutionError{K: k, Min: sketch.MinK, Max: sketch.MaxK}
	}
	u.k = k
	u.initialized = true
	return nil
}

// IsInitialized returns true iff Init has been called since creation or the last Reset
func (u *UnionState[T]) IsInitialized() bool {
	return u.initialized
}

// K returns the effective resolution: the gadget's if it exists, otherwise the configured one (0 if unset)
func (u *UnionState[T]) K() int {
	if u.gadget != nil {
		return u.gadget.K()
	}
	return u.k
}

// Update adds a raw item, creating the gadget with the configured resolution (or DefaultK) if needed
func (u *UnionState[T]) Update(item T) error {
	if u.gadget == nil {
		k := u.k
		if k == 0 {
			k = sketch.DefaultK
		}
		gadget, err := sketch.New(u.items, k)
		if err != nil {
			return err
		}
		u.gadget = gadget
	}
	u.gadget.Update(item)
	return nil
}

// Merge deserializes a sketch and folds it into this union. Any decoding failure is returned as a
// DeserializationError and leaves the union untouched.
func (u *UnionState[T]) Merge(serialized []byte) error {
	incoming, err := sketch.Unmarshal(u.items, serialized)
	if err != nil {
		return qerrors.DeserializationError{Err: err}
	}
	return u.MergeSketch(incoming)
}

// MergeSketch folds an already decoded sketch into this union. A new gadget adopts the incoming
// resolution, capped by the configured one.
func (u *UnionState[T]) MergeSketch(incoming *sketch.ItemsSketch[T]) error {
	if incoming == nil {
		return nil
	}
	if u.gadget == nil {
		k := incoming.K()
		if u.k != 0 && u.k < k {
			k = u.k
		}
		gadget, err := sketch.New(u.items, k)
		if err != nil {
			return err
		}
		u.gadget = gadget
	}
	return u.gadget.Merge(incoming)
}

// SerializedResult serializes the gadget, or returns nil if no data has arrived. It does not modify the union.
func (u *UnionState[T]) SerializedResult() ([]byte, error) {
	if u.gadget == nil {
		return nil, nil
	}
	return u.gadget.MarshalBinary()
}

// Result returns a copy of the gadget, or nil if no data has arrived
func (u *UnionState[T]) Result() quantiles.Summary[T] {
	if u.gadget == nil {
		return nil
	}
	return u.gadget.Copy()
}

// Sketch returns a copy of the gadget as its concrete type, or nil if no data has arrived
func (u *UnionState[T]) Sketch() *sketch.ItemsSketch[T] {
	if u.gadget == nil {
		return nil
	}
	return u.gadget.Copy()
}

// Reset drops the gadget and the configured resolution
func (u *UnionState[T]) Reset() {
	u.gadget = nil
	u.k = 0
	u.initialized = false
}

// EstimateMemory returns a conservative upper bound on the footprint of this union, in bytes
func (u *UnionState[T]) EstimateMemory() int {
	const stateOverhead = 48
	if u.gadget == nil {
		return stateOverhead
	}
	return stateOverhead + u.gadget.EstimateMemory()
}
