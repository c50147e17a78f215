package stats

import (
	"sync"
	"time"

	"github.com/go-sif/quantiles"
)

// RunStatistics contains statistics about a running aggregation. It is safe for concurrent use.
type RunStatistics struct {
	lock              sync.Mutex
	started           bool
	finished          bool
	startTime         time.Time
	totalRuntime      time.Duration
	rowsProcessed     int64
	partialsProcessed []int64         // indexed by Phase
	phaseRuntimes     []time.Duration // indexed by Phase
	numSpills         int64
	spilledBytes      int64
	keyErrors         int64
}

var _ quantiles.RuntimeStatistics = (*RunStatistics)(nil)

// Start triggers statistics tracking, if it hasn't been started already
func (rs *RunStatistics) Start() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if !rs.started {
		rs.started = true
		rs.startTime = time.Now()
		rs.partialsProcessed = make([]int64, len(quantiles.Phases))
		rs.phaseRuntimes = make([]time.Duration, len(quantiles.Phases))
	}
}

// Finish completes statistics tracking
func (rs *RunStatistics) Finish() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.totalRuntime = time.Since(rs.startTime)
	rs.finished = true
}

// StartPhase returns a function which, when called, records the time elapsed in phase
func (rs *RunStatistics) StartPhase(phase quantiles.Phase) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		rs.lock.Lock()
		defer rs.lock.Unlock()
		rs.phaseRuntimes[phase] += elapsed
	}
}

// AddRows tracks rows fed to a row-consuming phase
func (rs *RunStatistics) AddRows(numRows int) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.rowsProcessed += int64(numRows)
}

// AddPartials tracks partial sketches merged in phase
func (rs *RunStatistics) AddPartials(phase quantiles.Phase, numPartials int) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.partialsProcessed[phase] += int64(numPartials)
}

// AddSpill tracks one flush of buffers to spill storage
func (rs *RunStatistics) AddSpill(numBytes int) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.numSpills++
	rs.spilledBytes += int64(numBytes)
}

// AddKeyError tracks one dropped aggregation key
func (rs *RunStatistics) AddKeyError() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.keyErrors++
}

// GetStartTime returns the start time of the run
func (rs *RunStatistics) GetStartTime() time.Time {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.startTime
}

// GetRuntime returns the running time of the run
func (rs *RunStatistics) GetRuntime() time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if rs.finished {
		return rs.totalRuntime
	}
	return time.Since(rs.startTime)
}

// GetNumRowsProcessed returns the number of Rows which have been processed so far
func (rs *RunStatistics) GetNumRowsProcessed() int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.rowsProcessed
}

// GetNumPartialsProcessed returns the number of partial sketches merged so far, counted by Phase
func (rs *RunStatistics) GetNumPartialsProcessed() []int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return append([]int64(nil), rs.partialsProcessed...)
}

// GetPhaseRuntimes returns the time spent in each Phase
func (rs *RunStatistics) GetPhaseRuntimes() []time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return append([]time.Duration(nil), rs.phaseRuntimes...)
}

// GetNumSpills returns the number of buffer flushes to spill storage
func (rs *RunStatistics) GetNumSpills() int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.numSpills
}

// GetSpilledBytes returns the compressed size of everything spilled
func (rs *RunStatistics) GetSpilledBytes() int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.spilledBytes
}

// GetNumKeyErrors returns the number of dropped aggregation keys
func (rs *RunStatistics) GetNumKeyErrors() int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.keyErrors
}
