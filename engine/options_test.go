package engine

import (
	"runtime"
	"testing"

	"github.com/go-sif/quantiles/internal/spill"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultOptionsValues(t *testing.T) {
	opts := &Options{}
	require.Nil(t, ensureDefaultOptionsValues(opts))
	require.Equal(t, runtime.GOMAXPROCS(0), opts.NumWorkers)
	require.Equal(t, opts.NumWorkers, opts.NumReducers)
	require.Equal(t, defaultPartitionSize, opts.PartitionSize)
	require.Equal(t, defaultMemoryBudget, opts.MemoryBudget)
	require.NotNil(t, opts.Logger)
	codec, err := opts.spillCodec()
	require.Nil(t, err)
	require.Equal(t, spill.LZ4, codec)

	require.NotNil(t, ensureDefaultOptionsValues(&Options{NumWorkers: -1}))
	require.NotNil(t, ensureDefaultOptionsValues(&Options{SpillCompression: "gzip"}))
}

func TestCloneOptions(t *testing.T) {
	opts := &Options{NumWorkers: 3, Quantiles: []float64{0.5}}
	clone := CloneOptions(opts)
	clone.Quantiles[0] = 0.9
	clone.NumWorkers = 1
	require.Equal(t, 3, opts.NumWorkers)
	require.Equal(t, 0.5, opts.Quantiles[0])
	require.NotNil(t, CloneOptions(nil))
}
