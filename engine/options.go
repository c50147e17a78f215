package engine

import (
	"fmt"
	"runtime"

	"github.com/go-sif/quantiles/internal/spill"
	"go.uber.org/zap"
)

const (
	defaultPartitionSize = 1024
	defaultMemoryBudget  = 64 << 20
)

// Options configures a Run
type Options struct {
	NumWorkers       int         // the number of concurrent RawPartial workers (default: GOMAXPROCS)
	NumReducers      int         // the number of concurrent FinalReduce reducers (default: NumWorkers)
	PartitionSize    int         // the number of rows dealt to a worker at a time (default: 1024)
	SinglePass       bool        // iff true, aggregate every row in a single OneShot pass instead of distributing the work
	MemoryBudget     int         // per-worker estimate, in bytes, above which buffers are flushed to spill storage (default: 64MiB, -1 to disable)
	TempDir          string      // location for spill files. If empty, spilled partials are kept compressed in memory
	SpillCompression string      // "lz4" (default) or "zstd"
	IgnoreKeyErrors  bool        // iff true, log and drop failing keys instead of failing the whole run
	Quantiles        []float64   // if set, terminal results also carry the items at these normalized ranks
	Logger           *zap.Logger // defaults to a no-op logger
}

// CloneOptions makes a copy of an Options
func CloneOptions(opts *Options) *Options {
	if opts == nil {
		return &Options{}
	}
	clone := *opts
	clone.Quantiles = append([]float64(nil), opts.Quantiles...)
	return &clone
}

func ensureDefaultOptionsValues(opts *Options) error {
	if opts.NumWorkers < 0 || opts.NumReducers < 0 || opts.PartitionSize < 0 {
		return fmt.Errorf("Options.NumWorkers, Options.NumReducers and Options.PartitionSize must not be negative")
	}
	if opts.NumWorkers == 0 {
		opts.NumWorkers = runtime.GOMAXPROCS(0)
	}
	if opts.NumReducers == 0 {
		opts.NumReducers = opts.NumWorkers
	}
	if opts.PartitionSize == 0 {
		opts.PartitionSize = defaultPartitionSize
	}
	if opts.MemoryBudget == 0 {
		opts.MemoryBudget = defaultMemoryBudget
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if _, err := opts.spillCodec(); err != nil {
		return err
	}
	return nil
}

func (opts *Options) spillCodec() (spill.Codec, error) {
	switch opts.SpillCompression {
	case "", "lz4":
		return spill.LZ4, nil
	case "zstd":
		return spill.Zstd, nil
	default:
		return spill.LZ4, fmt.Errorf("Options.SpillCompression %q must be one of lz4 or zstd", opts.SpillCompression)
	}
}
