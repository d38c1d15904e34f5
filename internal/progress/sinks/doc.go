// Package sinks implements lifecycle event consumers: structured logging,
// Prometheus counters, message publication and the retired-task archive.
// Each sink satisfies progress.Sink and tolerates repeated Consume/Close calls.
package sinks
