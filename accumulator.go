package quantiles

// An Accumulator is the mutable aggregation state for a single grouping key. It wraps zero or one
// Summary, which is created lazily by the first Update or Merge. Accumulators are owned by exactly
// one worker and are never accessed concurrently.
type Accumulator[T any] interface {
	Init(k int) error                  // Init configures the resolution used when the Summary is created. 0 means unset.
	IsInitialized() bool               // IsInitialized returns true iff Init has been called since creation or the last Reset
	Update(item T) error               // Update adds a raw item
	Merge(serialized []byte) error     // Merge folds a serialized Summary into this Accumulator
	SerializedResult() ([]byte, error) // SerializedResult serializes the current Summary, or returns nil if no data has arrived
	Result() Summary[T]                // Result returns a copy of the current Summary, or nil if no data has arrived
	Reset()                            // Reset returns this Accumulator to its freshly created state
	EstimateMemory() int               // EstimateMemory returns a conservative upper bound on the footprint, in bytes
}

// AccumulatorFactory is a function that produces a fresh Accumulator
type AccumulatorFactory[T any] func() Accumulator[T]
