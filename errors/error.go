package errors

import (
	"fmt"
)

// ArgumentCountError occurs when an aggregate function is invoked with an unsupported number of arguments
type ArgumentCountError struct {
	Function string
	Min      int
	Max      int
	Got      int
}

// Error returns a textual representation of this ArgumentCountError
func (e ArgumentCountError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("%s expects exactly %d argument(s), got %d", e.Function, e.Min, e.Got)
	}
	return fmt.Sprintf("%s expects %d to %d arguments, got %d", e.Function, e.Min, e.Max, e.Got)
}

// ArgumentTypeError occurs when an argument is not a primitive, or is not the expected primitive
type ArgumentTypeError struct {
	Function string
	Position int // zero-based argument position
	Expected string
	Got      string
}

// Error returns a textual representation of this ArgumentTypeError
func (e ArgumentTypeError) Error() string {
	return fmt.Sprintf("%s argument %d must be %s, got %s", e.Function, e.Position, e.Expected, e.Got)
}

// DeserializationError occurs when bytes handed to merge are not a valid, compatible serialized sketch.
// It is fatal for the accumulator which received the bytes.
type DeserializationError struct {
	Err error
}

// Error returns a textual representation of this DeserializationError
func (e DeserializationError) Error() string {
	return fmt.Sprintf("unable to deserialize sketch: %v", e.Err)
}

// Unwrap returns the underlying decoding error
func (e DeserializationError) Unwrap() error {
	return e.Err
}

// IllegalOperationError occurs when an evaluator is asked to perform an operation its phase does not permit,
// or when a terminated buffer receives more data before being reset
type IllegalOperationError struct {
	Phase     string
	Operation string
	Reason    string
}

// Error returns a textual representation of this IllegalOperationError
func (e IllegalOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("operation %s is not permitted in phase %s: %s", e.Operation, e.Phase, e.Reason)
	}
	return fmt.Sprintf("operation %s is not permitted in phase %s", e.Operation, e.Phase)
}

// InvalidResolutionError occurs when a sketch resolution k is not a power of two within the supported range
type InvalidResolutionError struct {
	K   int
	Min int
	Max int
}

// Error returns a textual representation of this InvalidResolutionError
func (e InvalidResolutionError) Error() string {
	return fmt.Sprintf("resolution k=%d must be a power of two between %d and %d", e.K, e.Min, e.Max)
}

// InvalidValueError occurs when a row value cannot be converted into a sketch item or a resolution
type InvalidValueError struct {
	Position int
	Expected string
	Value    interface{}
}

// Error returns a textual representation of this InvalidValueError
func (e InvalidValueError) Error() string {
	return fmt.Sprintf("value %#v at position %d cannot be used as %s", e.Value, e.Position, e.Expected)
}
