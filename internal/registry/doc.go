// Package registry owns the directory of live session actors.
//
// A Registry maps caller-chosen session IDs to running actors. It is
// the single shared mutable structure in the system: the same instance
// is used by every concurrent request, and all creation, lookup, and
// teardown is serialized through it.
//
// # Creation
//
// GetOrCreate is atomic per session ID. Concurrent calls for one ID are
// serialized through a per-key lock, so exactly one subprocess is ever
// spawned for a session and every caller receives the same actor.
// Calls for unrelated IDs proceed in parallel. An existing live actor
// is returned directly; Connect only runs for fresh constructions, so
// retried requests never double-deliver the initial prompt.
//
// # Death and replacement
//
// The registry never watches subprocesses. An actor that goes Dead
// stays in the map until the next GetOrCreate, Get, or sweep touches it,
// at which point the entry is dropped and, for GetOrCreate, replaced by
// a fresh actor. Callers that hold the prior conversation can seed it
// onto the replacement through CreateOptions.Seed.
//
// # Reclamation
//
// Idle sessions are reclaimed only by SweepIdle, either called directly
// or driven by the background loop started with StartSweeper. Evict
// removes a session immediately regardless of its state; an eviction
// that races an in-flight query makes that query fail with an engine
// crash rather than blocking.
//
// Lifecycle transitions are published on the event bus as
// session.created, session.evicted, and sweep.completed events.
package registry
