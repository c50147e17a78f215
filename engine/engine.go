package engine

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/quantiles"
	"github.com/go-sif/quantiles/evaluator"
	"github.com/go-sif/quantiles/internal/spill"
	istats "github.com/go-sif/quantiles/internal/stats"
	iutil "github.com/go-sif/quantiles/internal/util"
	uuid "github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result holds the final summary for every aggregation key of a Run. A key whose rows never
// carried any data maps to nil.
type Result[T any] struct {
	Summaries map[string]*evaluator.Result[T]
	Errors    *multierror.Error // per-key failures which were dropped because of IgnoreKeyErrors
	Stats     quantiles.RuntimeStatistics
}

// Keys returns every key in this Result, in sorted order
func (r *Result[T]) Keys() []string {
	keys := make([]string, 0, len(r.Summaries))
	for k := range r.Summaries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// run carries the state shared by every worker and reducer of a single Run
type run[T any] struct {
	fn       *evaluator.Function[T]
	args     []quantiles.TypeDescriptor
	opts     *Options
	logger   *zap.Logger
	stats    *istats.RunStatistics
	codec    spill.Codec
	failLock sync.Mutex
	failed   map[string]bool
	merr     *multierror.Error
	resLock  sync.Mutex
	results  map[string]*evaluator.Result[T]
}

// Run aggregates rows by key with fn. Argument descriptors are validated once, before any row is
// touched. Unless opts.SinglePass is set, rows are dealt in partitions to concurrent workers which
// build RawPartial sketches, combine them per key with CombinePartial, and shuffle the partials by
// key hash to concurrent reducers running FinalReduce.
func Run[T any](ctx context.Context, fn *evaluator.Function[T], args []quantiles.TypeDescriptor, rows []quantiles.Row, opts *Options) (*Result[T], error) {
	opts = CloneOptions(opts)
	if err := ensureDefaultOptionsValues(opts); err != nil {
		return nil, err
	}
	if _, err := fn.Validate(args); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	codec, _ := opts.spillCodec()
	r := &run[T]{
		fn:      fn,
		args:    args,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("function", fn.Name())),
		stats:   &istats.RunStatistics{},
		codec:   codec,
		failed:  make(map[string]bool),
		results: make(map[string]*evaluator.Result[T]),
	}
	r.stats.Start()
	defer r.stats.Finish()
	r.logger.Info("starting aggregation",
		zap.Int("num_rows", len(rows)),
		zap.Bool("single_pass", opts.SinglePass),
		zap.Int("num_workers", opts.NumWorkers),
		zap.Int("num_reducers", opts.NumReducers),
	)

	var err error
	if opts.SinglePass {
		err = r.oneShot(ctx, rows)
	} else {
		err = r.distributed(ctx, rows)
	}
	if err != nil {
		return nil, err
	}
	if r.merr != nil {
		r.merr.ErrorFormat = iutil.FormatMultiError
		r.logger.Warn("dropped keys with errors", zap.Int("num_keys", len(r.merr.Errors)))
	}
	return &Result[T]{Summaries: r.results, Errors: r.merr, Stats: r.stats}, nil
}

func (r *run[T]) evaluator(phase quantiles.Phase) (*evaluator.Evaluator[T], error) {
	opts := []evaluator.Option{evaluator.WithLogger(r.logger)}
	if phase.IsTerminal() && len(r.opts.Quantiles) > 0 {
		opts = append(opts, evaluator.WithQuantiles(r.opts.Quantiles...))
	}
	return r.fn.NewEvaluator(phase, r.args, opts...)
}

// keyFailed records a per-key failure. It returns the error to abort the run with, or nil if the
// key should just be dropped.
func (r *run[T]) keyFailed(key string, err error) error {
	if !r.opts.IgnoreKeyErrors {
		return err
	}
	r.failLock.Lock()
	defer r.failLock.Unlock()
	if r.failed[key] {
		return nil
	}
	r.failed[key] = true
	r.merr = multierror.Append(r.merr, err)
	r.stats.AddKeyError()
	r.logger.Warn("dropping key", zap.String("key", key), zap.Error(err))
	return nil
}

func (r *run[T]) hasFailed(key string) bool {
	r.failLock.Lock()
	defer r.failLock.Unlock()
	return r.failed[key]
}

func (r *run[T]) setResult(key string, res *evaluator.Result[T]) {
	r.resLock.Lock()
	defer r.resLock.Unlock()
	r.results[key] = res
}

func (r *run[T]) oneShot(ctx context.Context, rows []quantiles.Row) error {
	eval, err := r.evaluator(quantiles.OneShot)
	if err != nil {
		return err
	}
	defer r.stats.StartPhase(quantiles.OneShot)()
	buffers := make(map[string]*evaluator.Buffer[T])
	for i, row := range rows {
		if i%r.opts.PartitionSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := r.iterate(eval, buffers, row); err != nil {
			return err
		}
	}
	r.stats.AddRows(len(rows))
	for key, buf := range buffers {
		if r.hasFailed(key) {
			continue
		}
		var res *evaluator.Result[T]
		err := iutil.SafeKeyOperation("terminate", key, func() (err error) {
			res, err = eval.Terminate(buf)
			return
		})
		if err != nil {
			if err = r.keyFailed(key, err); err != nil {
				return err
			}
			continue
		}
		r.setResult(key, res)
	}
	return nil
}

func (r *run[T]) iterate(eval *evaluator.Evaluator[T], buffers map[string]*evaluator.Buffer[T], row quantiles.Row) error {
	if r.hasFailed(row.Key) {
		return nil
	}
	buf, ok := buffers[row.Key]
	if !ok {
		buf = eval.NewBuffer()
		buffers[row.Key] = buf
	}
	err := iutil.SafeKeyOperation("iterate", row.Key, func() error {
		return eval.Iterate(buf, row.Values)
	})
	if err != nil {
		delete(buffers, row.Key)
		return r.keyFailed(row.Key, err)
	}
	return nil
}

func (r *run[T]) distributed(ctx context.Context, rows []quantiles.Row) error {
	inboxes := make([]*spill.Store, r.opts.NumReducers)
	for i := range inboxes {
		inbox, err := spill.New(&spill.Config{Codec: r.codec})
		if err != nil {
			return err
		}
		defer inbox.Close()
		inboxes[i] = inbox
	}

	workers := make([]*worker[T], r.opts.NumWorkers)
	for i := range workers {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("unable to generate worker id: %w", err)
		}
		workers[i] = &worker[T]{id: id.String(), run: r, inboxes: inboxes}
	}

	// map side
	g, gctx := errgroup.WithContext(ctx)
	partitions := make(chan []quantiles.Row)
	g.Go(func() error {
		defer close(partitions)
		for start := 0; start < len(rows); start += r.opts.PartitionSize {
			end := start + r.opts.PartitionSize
			if end > len(rows) {
				end = len(rows)
			}
			select {
			case partitions <- rows[start:end]:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.start(gctx, partitions)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// reduce side
	g, gctx = errgroup.WithContext(ctx)
	for _, inbox := range inboxes {
		inbox := inbox
		g.Go(func() error {
			return r.reduce(gctx, inbox)
		})
	}
	return g.Wait()
}

func (r *run[T]) reduce(ctx context.Context, inbox *spill.Store) error {
	eval, err := r.evaluator(quantiles.FinalReduce)
	if err != nil {
		return err
	}
	defer r.stats.StartPhase(quantiles.FinalReduce)()
	buf := eval.NewBuffer()
	for _, key := range inbox.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		partials, err := inbox.Take(key)
		if err != nil {
			return err
		}
		if r.hasFailed(key) {
			continue
		}
		var res *evaluator.Result[T]
		err = iutil.SafeKeyOperation("final reduce", key, func() error {
			if err := eval.Reset(buf); err != nil {
				return err
			}
			for _, partial := range partials {
				if err := eval.Merge(buf, partialOrNil(partial)); err != nil {
					return err
				}
			}
			res, err = eval.Terminate(buf)
			return err
		})
		r.stats.AddPartials(quantiles.FinalReduce, len(partials))
		if err != nil {
			if err = r.keyFailed(key, err); err != nil {
				return err
			}
			continue
		}
		r.setResult(key, res)
	}
	return nil
}

// Shuffled and spilled partials are never nil, so a key whose rows carried no data is sent as an
// empty blob.
func partialOrNil(partial []byte) []byte {
	if len(partial) == 0 {
		return nil
	}
	return partial
}

func bucket(key string, numBuckets int) int {
	return int(xxhash.Sum64String(key) % uint64(numBuckets))
}

// worker runs RawPartial over the partitions it is dealt, then CombinePartial over its own partials
type worker[T any] struct {
	id      string
	run     *run[T]
	inboxes []*spill.Store
}

func (w *worker[T]) start(ctx context.Context, partitions <-chan []quantiles.Row) error {
	r := w.run
	logger := r.logger.With(zap.String("worker", w.id))
	raw, err := r.evaluator(quantiles.RawPartial)
	if err != nil {
		return err
	}
	spillConf := &spill.Config{Codec: r.codec}
	if r.opts.TempDir != "" {
		spillConf.Dir = path.Join(r.opts.TempDir, w.id)
	}
	spilled, err := spill.New(spillConf)
	if err != nil {
		return err
	}
	defer spilled.Close()

	buffers := make(map[string]*evaluator.Buffer[T])
	numPartitions := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case part, ok := <-partitions:
			if !ok {
				logger.Debug("finished raw partial phase", zap.Int("num_partitions", numPartitions), zap.Int("num_keys", len(buffers)))
				return w.combine(ctx, raw, buffers, spilled)
			}
			done := r.stats.StartPhase(quantiles.RawPartial)
			for _, row := range part {
				if err := r.iterate(raw, buffers, row); err != nil {
					done()
					return err
				}
			}
			done()
			numPartitions++
			r.stats.AddRows(len(part))
			if err := w.maybeSpill(raw, buffers, spilled, logger); err != nil {
				return err
			}
		}
	}
}

// maybeSpill flushes every buffer to spill storage when their estimated footprint exceeds the budget
func (w *worker[T]) maybeSpill(raw *evaluator.Evaluator[T], buffers map[string]*evaluator.Buffer[T], spilled *spill.Store, logger *zap.Logger) error {
	r := w.run
	if r.opts.MemoryBudget < 0 {
		return nil
	}
	footprint := 0
	for _, buf := range buffers {
		footprint += raw.EstimateMemory(buf)
	}
	if footprint <= r.opts.MemoryBudget {
		return nil
	}
	before := spilled.SpilledBytes()
	for key, buf := range buffers {
		partial, err := raw.TerminatePartial(buf)
		if err != nil {
			return err
		}
		if err := spilled.Append(key, partial); err != nil {
			return err
		}
		if err := raw.Reset(buf); err != nil {
			return err
		}
	}
	r.stats.AddSpill(spilled.SpilledBytes() - before)
	logger.Debug("spilled buffers", zap.Int("num_keys", len(buffers)), zap.Int("estimated_bytes", footprint))
	return nil
}

// combine merges spilled and in-memory partials into one partial per key and shuffles them to the reducers
func (w *worker[T]) combine(ctx context.Context, raw *evaluator.Evaluator[T], buffers map[string]*evaluator.Buffer[T], spilled *spill.Store) error {
	r := w.run
	combiner, err := r.evaluator(quantiles.CombinePartial)
	if err != nil {
		return err
	}
	defer r.stats.StartPhase(quantiles.CombinePartial)()

	keys := spilled.Keys()
	for key := range buffers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	buf := combiner.NewBuffer()
	for i, key := range keys {
		if i > 0 && keys[i-1] == key {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		partials, err := spilled.Take(key)
		if err != nil {
			return err
		}
		if r.hasFailed(key) {
			continue
		}
		var out []byte
		err = iutil.SafeKeyOperation("combine partial", key, func() error {
			if rawBuf, ok := buffers[key]; ok {
				partial, err := raw.TerminatePartial(rawBuf)
				if err != nil {
					return err
				}
				partials = append(partials, partial)
			}
			if err := combiner.Reset(buf); err != nil {
				return err
			}
			for _, partial := range partials {
				if err := combiner.Merge(buf, partialOrNil(partial)); err != nil {
					return err
				}
			}
			out, err = combiner.TerminatePartial(buf)
			return err
		})
		r.stats.AddPartials(quantiles.CombinePartial, len(partials))
		if err != nil {
			if err = r.keyFailed(key, err); err != nil {
				return err
			}
			continue
		}
		if out == nil {
			out = []byte{}
		}
		if err := w.inboxes[bucket(key, len(w.inboxes))].Append(key, out); err != nil {
			return err
		}
	}
	return nil
}
