package testing

import (
	"context"
	"os"

	"github.com/go-sif/quantiles"
	"github.com/go-sif/quantiles/engine"
	"github.com/go-sif/quantiles/evaluator"
	"github.com/go-sif/quantiles/logging"
)

// LocalRun runs fn over rows on a local engine with a certain number of workers, logging warnings
// to stderr and spilling to a temporary directory which is removed afterwards
func LocalRun[T any](ctx context.Context, fn *evaluator.Function[T], args []quantiles.TypeDescriptor, rows []quantiles.Row, opts *engine.Options, numWorkers int) (result *engine.Result[T], err error) {
	// handle panics
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = anErr
			} else {
				panic(r)
			}
		}
	}()

	opts = engine.CloneOptions(opts)
	opts.NumWorkers = numWorkers
	if opts.NumReducers == 0 {
		opts.NumReducers = numWorkers
	}
	if opts.PartitionSize == 0 {
		opts.PartitionSize = 16
	}
	if opts.Logger == nil {
		logger, err := logging.NewLogger(logging.WarnLevel)
		if err != nil {
			return nil, err
		}
		defer logger.Sync()
		opts.Logger = logger
	}
	if opts.TempDir == "" {
		tempDir, err := os.MkdirTemp("", "quantiles-spill")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tempDir)
		opts.TempDir = tempDir
	}
	return engine.Run(ctx, fn, args, rows, opts)
}
