package quantiles

// Row is a single input record for an aggregate function: a grouping key and the
// function's argument values, positionally matching the declared TypeDescriptors.
// A nil value represents SQL NULL.
type Row struct {
	Key    string
	Values []interface{}
}
