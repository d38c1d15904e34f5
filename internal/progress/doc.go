// Package progress provides the lifecycle event primitives, the non-blocking
// hub, and the emitter interface that the orchestration components use to
// report task, worker and round transitions. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as structured
// logs, Prometheus counters, a Pub/Sub topic, or a blob archive.
package progress
