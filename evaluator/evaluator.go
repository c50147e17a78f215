package evaluator

import (
	"fmt"
	"math"

	"github.com/go-sif/quantiles"
	"github.com/go-sif/quantiles/accumulators"
	qerrors "github.com/go-sif/quantiles/errors"
	"github.com/go-sif/quantiles/sketch"
	"go.uber.org/zap"
)

// BufferState is the lifecycle state of a Buffer
type BufferState int

const (
	// Created buffers have not received any data since creation or the last Reset
	Created BufferState = iota
	// Accumulating buffers have received at least one item or sketch
	Accumulating
	// Terminated buffers have produced a final result and must be Reset before receiving more data
	Terminated
)

// String returns a textual representation of this BufferState
func (s BufferState) String() string {
	switch s {
	case Created:
		return "created"
	case Accumulating:
		return "accumulating"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Buffer is the per-key aggregation state handed out by an Evaluator
type Buffer[T any] struct {
	union *accumulators.UnionState[T]
	state BufferState
}

// State returns the lifecycle state of this Buffer
func (b *Buffer[T]) State() BufferState {
	return b.state
}

// Accumulator returns the union backing this Buffer
func (b *Buffer[T]) Accumulator() *accumulators.UnionState[T] {
	return b.union
}

// Result is the final output of a terminal phase
type Result[T any] struct {
	Summary   quantiles.Summary[T]
	Quantiles []T // set iff the Evaluator was created WithQuantiles and the Summary is not empty
}

type config struct {
	logger *zap.Logger
	ranks  []float64
}

// Option configures an Evaluator
type Option func(*config)

// WithLogger sets the logger used by an Evaluator
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithQuantiles asks terminal phases to also convert the final sketch into the items at the given ranks
func WithQuantiles(ranks ...float64) Option {
	return func(c *config) {
		c.ranks = append([]float64(nil), ranks...)
	}
}

// Evaluator drives Buffers for one Function in one Phase, and rejects the operations that Phase does not permit
type Evaluator[T any] struct {
	fn      *Function[T]
	phase   quantiles.Phase
	numArgs int
	ranks   []float64
	logger  *zap.Logger
}

// NewEvaluator validates the declared arguments and produces an Evaluator bound to phase
func (f *Function[T]) NewEvaluator(phase quantiles.Phase, args []quantiles.TypeDescriptor, opts ...Option) (*Evaluator[T], error) {
	if _, err := f.Validate(args); err != nil {
		return nil, err
	}
	if !phase.IsValid() {
		return nil, fmt.Errorf("unknown phase %s", phase)
	}
	conf := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(conf)
	}
	for _, r := range conf.ranks {
		if math.IsNaN(r) || r < 0 || r > 1 {
			return nil, fmt.Errorf("%w: %f", sketch.ErrInvalidRank, r)
		}
	}
	e := &Evaluator[T]{
		fn:      f,
		phase:   phase,
		numArgs: len(args),
		ranks:   conf.ranks,
		logger:  conf.logger.With(zap.String("function", f.name), zap.Stringer("phase", phase)),
	}
	e.logger.Debug("evaluator initialized", zap.Int("num_args", len(args)), zap.Stringer("family", f.family))
	return e, nil
}

// Function returns the Function this Evaluator evaluates
func (e *Evaluator[T]) Function() *Function[T] {
	return e.fn
}

// Phase returns the Phase this Evaluator is bound to
func (e *Evaluator[T]) Phase() quantiles.Phase {
	return e.phase
}

// ResultType describes the output of this Evaluator: a serialized sketch, or in terminal phases with
// WithQuantiles, a list of items
func (e *Evaluator[T]) ResultType() quantiles.TypeDescriptor {
	if e.phase.IsTerminal() && len(e.ranks) > 0 {
		return quantiles.ListOf(quantiles.Primitive(e.fn.itemKind))
	}
	return quantiles.Primitive(quantiles.BinaryKind)
}

// NewBuffer produces a fresh Buffer in the Created state
func (e *Evaluator[T]) NewBuffer() *Buffer[T] {
	return &Buffer[T]{union: accumulators.NewUnionState(e.fn.items)}
}

// Iterate folds one row of original arguments into buf. The row must carry exactly the arguments the
// Evaluator was declared with. A nil primary value is skipped. The optional resolution argument only
// takes effect on the first row with a non-nil primary value, even when that value is then skipped
// (a NaN double, for instance).
func (e *Evaluator[T]) Iterate(buf *Buffer[T], row []interface{}) error {
	if err := e.check(buf, quantiles.IterateOperation); err != nil {
		return err
	}
	if len(row) != e.numArgs {
		return qerrors.ArgumentCountError{Function: e.fn.name, Min: e.numArgs, Max: e.numArgs, Got: len(row)}
	}
	if row[0] == nil {
		return nil
	}
	if !buf.union.IsInitialized() {
		k := 0
		if e.fn.family != MergeFamily {
			k = sketch.DefaultK
		}
		if e.numArgs > 1 && row[1] != nil {
			var err error
			if k, err = toK(row[1]); err != nil {
				return err
			}
		}
		if err := buf.union.Init(k); err != nil {
			return err
		}
	}

	switch e.fn.family {
	case DataFamily:
		item, ok, err := e.fn.convert(row[0])
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := buf.union.Update(item); err != nil {
			return err
		}
	default:
		serialized, ok := row[0].([]byte)
		if !ok {
			return qerrors.InvalidValueError{Position: 0, Expected: quantiles.BinaryKind.String(), Value: row[0]}
		}
		if err := e.merge(buf, serialized); err != nil {
			return err
		}
	}
	buf.state = Accumulating
	return nil
}

// Merge folds a serialized partial sketch produced by TerminatePartial into buf. A nil partial
// (from a buffer which never received data) is skipped.
func (e *Evaluator[T]) Merge(buf *Buffer[T], partial []byte) error {
	if err := e.check(buf, quantiles.MergeOperation); err != nil {
		return err
	}
	if partial == nil {
		return nil
	}
	if !buf.union.IsInitialized() {
		if err := buf.union.Init(0); err != nil {
			return err
		}
	}
	if err := e.merge(buf, partial); err != nil {
		return err
	}
	buf.state = Accumulating
	return nil
}

func (e *Evaluator[T]) merge(buf *Buffer[T], serialized []byte) error {
	err := buf.union.Merge(serialized)
	if err != nil {
		e.logger.Error("unable to merge sketch", zap.Int("num_bytes", len(serialized)), zap.Error(err))
	}
	return err
}

// TerminatePartial serializes buf for the next phase, or returns nil if buf never received data.
// buf is not modified, and may keep accumulating.
func (e *Evaluator[T]) TerminatePartial(buf *Buffer[T]) ([]byte, error) {
	if err := e.check(buf, quantiles.TerminatePartialOperation); err != nil {
		return nil, err
	}
	return buf.union.SerializedResult()
}

// Terminate produces the final Result, or nil if buf never received data. buf must then be Reset
// or discarded.
func (e *Evaluator[T]) Terminate(buf *Buffer[T]) (*Result[T], error) {
	if err := e.check(buf, quantiles.TerminateOperation); err != nil {
		return nil, err
	}
	buf.state = Terminated
	s := buf.union.Sketch()
	if s == nil {
		return nil, nil
	}
	result := &Result[T]{Summary: s}
	if len(e.ranks) > 0 && !s.IsEmpty() {
		qs, err := s.Quantiles(e.ranks)
		if err != nil {
			return nil, err
		}
		result.Quantiles = qs
	}
	return result, nil
}

// Reset returns buf to the Created state, dropping its sketch and configured resolution
func (e *Evaluator[T]) Reset(buf *Buffer[T]) error {
	if err := e.check(buf, quantiles.ResetOperation); err != nil {
		return err
	}
	buf.union.Reset()
	buf.state = Created
	return nil
}

// EstimateMemory returns a conservative upper bound on the footprint of buf, in bytes
func (e *Evaluator[T]) EstimateMemory(buf *Buffer[T]) int {
	return buf.union.EstimateMemory()
}

func (e *Evaluator[T]) check(buf *Buffer[T], op quantiles.Operation) error {
	if !e.phase.Permits(op) {
		return qerrors.IllegalOperationError{Phase: e.phase.String(), Operation: op.String()}
	}
	if buf.state == Terminated && (op == quantiles.IterateOperation || op == quantiles.MergeOperation) {
		return qerrors.IllegalOperationError{Phase: e.phase.String(), Operation: op.String(), Reason: "buffer was terminated and must be reset first"}
	}
	return nil
}
