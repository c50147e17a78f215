package quantiles

import "io"

// A RowParser turns raw data into aggregation Rows
type RowParser interface {
	// Arguments returns the argument descriptors of the Rows this parser produces, suitable for validation
	Arguments() []TypeDescriptor
	// Parse reads every Row from r
	Parse(r io.Reader) ([]Row, error)
}
