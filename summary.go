package quantiles

// A Summary is an approximate, mergeable, serializable synopsis of a multiset of totally-ordered
// items, parameterized by a resolution k which trades memory for accuracy. Merging a Summary of
// resolution k1 with one of resolution k2 yields resolution min(k1, k2).
type Summary[T any] interface {
	Update(item T)                                // Update adds a single item
	K() int                                       // K returns the resolution of this Summary
	N() uint64                                    // N returns the total number of items represented
	NumRetained() int                             // NumRetained returns the number of items physically retained
	IsEmpty() bool                                // IsEmpty returns true iff no items have been added
	MinItem() (T, error)                          // MinItem returns the exact smallest item seen
	MaxItem() (T, error)                          // MaxItem returns the exact largest item seen
	Quantile(rank float64) (T, error)             // Quantile returns the approximate item at a normalized rank in [0, 1]
	Rank(item T, inclusive bool) (float64, error) // Rank returns the approximate normalized rank of an item
	EstimateMemory() int                          // EstimateMemory returns a conservative upper bound on the footprint, in bytes
	MarshalBinary() (data []byte, err error)      // MarshalBinary serializes this Summary into its versioned wire format
}
