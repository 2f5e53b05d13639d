// Package sim provides the discrete-event engine of traysim: trays carrying
// workpieces flow through stations joined by timed links.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - scheduler.go: the cooperative clock; resumptions ordered by (time, insertion sequence)
//   - signal.go: the one-shot suspension primitive every blocking operation is built on
//   - worker.go: the per-station state machine (ARRIVE → DECIDE → SERVICE → ROUTE → TRANSIT)
//   - controller.go: tray injection, detached transfers, completion ledger
//
// # Concurrency model
//
// Everything on the timeline runs on the goroutine that calls Controller.Run.
// Tasks are chains of continuations; they suspend only by waiting on a Signal
// (Buffer.Get/Put, ServicePool.Acquire, Scheduler.Timeout, authority answers)
// and every resumption goes through the scheduler queue. Events due at the
// same instant resume in submission order, so a fixed seed and injection plan
// replay identically.
//
// # Architecture
//
// The sim package defines the engine and its contracts; collaborators live in
// sub-packages:
//   - sim/topology/: topology files (YAML/JSON) and distribution samplers
//   - sim/mes/: MES wire codec, correlation client, RemoteAuthority
//   - sim/transport/: framed TCP message channel
//   - sim/eventlog/: event sinks (memory, logrus, JSON lines, SQLite)
//   - sim/metrics/: Prometheus collector sink
//   - sim/trace/: decision trace recording
//
// # Key Interfaces
//   - TopologyProvider: stations and links by id
//   - DurationSampler: service and transfer durations
//   - RoutingAuthority: action and routing decisions (LocalDefaultPolicy or mes.RemoteAuthority)
//   - EventSink: consumer of Event records
package sim
