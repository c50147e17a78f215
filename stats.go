package quantiles

import "time"

// RuntimeStatistics facilitates the retrieval of statistics about a sketch aggregation run
type RuntimeStatistics interface {
	// GetStartTime returns the start time of the run
	GetStartTime() time.Time
	// GetRuntime returns the running time of the run
	GetRuntime() time.Duration
	// GetNumRowsProcessed returns the number of Rows which have been fed to row-consuming Phases
	GetNumRowsProcessed() int64
	// GetNumPartialsProcessed returns the number of serialized partial sketches merged, counted by Phase
	GetNumPartialsProcessed() []int64
	// GetPhaseRuntimes returns the wall time spent in each Phase, summed across concurrent workers
	GetPhaseRuntimes() []time.Duration
	// GetNumSpills returns the number of times a worker flushed its buffers to spill storage
	GetNumSpills() int64
	// GetSpilledBytes returns the total compressed size of everything written to spill storage
	GetSpilledBytes() int64
	// GetNumKeyErrors returns the number of aggregation keys dropped because of errors
	GetNumKeyErrors() int64
}
