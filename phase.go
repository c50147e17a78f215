package quantiles

import "fmt"

// Phase describes the distributed execution mode of an evaluator, used to control which
// Accumulator operations are reachable
type Phase int

const (
	// RawPartial consumes original row arguments and produces a serialized partial sketch (map side)
	RawPartial Phase = iota
	// CombinePartial merges serialized partial sketches into a serialized partial sketch (combiner)
	CombinePartial
	// FinalReduce merges serialized partial sketches into the final sketch (reduce side)
	FinalReduce
	// OneShot consumes original row arguments and produces the final sketch in a single pass
	OneShot
)

// Phases lists every Phase, in execution order
var Phases = []Phase{RawPartial, CombinePartial, FinalReduce, OneShot}

// Operation identifies an evaluator operation which may or may not be permitted in a Phase
type Operation int

const (
	// IterateOperation folds original row arguments into a buffer
	IterateOperation Operation = iota
	// MergeOperation folds a serialized partial sketch into a buffer
	MergeOperation
	// TerminatePartialOperation serializes a buffer for the next phase
	TerminatePartialOperation
	// TerminateOperation produces the final result from a buffer
	TerminateOperation
	// ResetOperation returns a buffer to its freshly created state
	ResetOperation
)

var permittedOperations = map[Phase]map[Operation]bool{
	RawPartial: {
		IterateOperation:          true,
		TerminatePartialOperation: true,
		ResetOperation:            true,
	},
	CombinePartial: {
		MergeOperation:            true,
		TerminatePartialOperation: true,
		ResetOperation:            true,
	},
	FinalReduce: {
		MergeOperation:     true,
		TerminateOperation: true,
		ResetOperation:     true,
	},
	OneShot: {
		IterateOperation:   true,
		TerminateOperation: true,
		ResetOperation:     true,
	},
}

// Permits returns true iff op may be performed on a buffer in this Phase
func (p Phase) Permits(op Operation) bool {
	return permittedOperations[p][op]
}

// IsValid returns true iff p is one of the four known Phases
func (p Phase) IsValid() bool {
	_, ok := permittedOperations[p]
	return ok
}

// ConsumesRows returns true iff this Phase is fed original row arguments rather than partial sketches
func (p Phase) ConsumesRows() bool {
	return p == RawPartial || p == OneShot
}

// IsTerminal returns true iff this Phase produces the final result rather than a partial sketch
func (p Phase) IsTerminal() bool {
	return p == FinalReduce || p == OneShot
}

// String returns a textual representation of this Phase
func (p Phase) String() string {
	switch p {
	case RawPartial:
		return "raw_partial"
	case CombinePartial:
		return "combine_partial"
	case FinalReduce:
		return "final_reduce"
	case OneShot:
		return "one_shot"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// String returns a textual representation of this Operation
func (op Operation) String() string {
	switch op {
	case IterateOperation:
		return "iterate"
	case MergeOperation:
		return "merge"
	case TerminatePartialOperation:
		return "terminate_partial"
	case TerminateOperation:
		return "terminate"
	case ResetOperation:
		return "reset"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}
