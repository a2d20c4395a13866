// Package sim is a discrete-event simulation engine for production and
// processing networks: machines, buffers, part sources and sinks wired into a
// directed flow graph, driven by an ordered event timeline.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - event.go: Event, EventKind priorities, and the total event order
//   - environment.go: the clock, the event heap, pause/resume/cancel
//   - system.go: System, which owns one complete simulation
//
// # Architecture
//
// A System ties together four independent pieces:
//   - Environment: the event queue and simulation clock
//   - Graph: the arena of flow nodes and their upstream/downstream edges
//   - ResourceManager: shared limited resources with all-or-nothing reservation
//   - Recorder: opaque datapoint collection (MemoryRecorder or NopRecorder)
//
// Flow devices build on two bases. FlowController is a pass-through node
// that relays parts without holding them; DecisionGate and the group
// adapters extend it. Handler adds a single-part input slot, a cycle timer,
// and an output slot; Machine extends Handler with failures, shutdown and
// restore, resource needs, and maintenance support.
//
// Parts move strictly by handoff: an upstream calls GivePart on a downstream,
// which returns false to refuse. Refused senders wait for a
// NotifyUpstreamOfAvailableSpace callback instead of polling.
//
// # Determinism
//
// Two runs with the same seed and the same construction order are identical.
// All randomness flows from one PartitionedRNG; simultaneous events are
// ordered by EventKind, then a seeded tie-break.
package sim
