// Package quantiles contains the core types of a multi-phase aggregation protocol for quantile sketches,
// designed to be driven by a Sif-style map/reduce engine. This root package defines the execution phases
// and the operations each of them permits, the descriptors used to validate aggregate function arguments,
// and the Summary and Accumulator contracts implemented by the sketch and accumulators packages.
package quantiles
