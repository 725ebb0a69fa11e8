// Package history provides durable storage for conversation turns.
//
// The registry deliberately keeps no durable state: when an engine
// crashes, the actor's in-memory history dies with it. The orchestrator
// therefore appends every exchanged turn to a Store and re-seeds the
// replacement actor from it, which is what makes crash recovery able to
// restore conversational context.
//
// Three backends are provided, selected by Options.Backend:
//
//   - memory: process-local, for tests and one-shot runs
//   - file: one JSON file per session, atomic writes
//   - redis: one list per session with TTL, for front ends that move
//     between hosts mid-conversation
//
// All backends treat unknown sessions as empty rather than as errors,
// so a first turn and a resumed turn follow the same code path.
package history
