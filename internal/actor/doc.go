// Package actor implements the session actor: the single owner of one
// conversation and the one engine subprocess backing it.
//
// # Lifecycle
//
// An actor moves through Starting, Ready, Busy, Idle, Terminating, and
// Dead. Connect launches the subprocess and collects the engine's first
// response (Starting to Ready). Each Query marks the actor Busy for the
// duration of the turn and Idle afterwards. Disconnect kills the
// subprocess and lands in Dead, as does any subprocess failure. Dead is
// terminal: the actor never restarts its own engine, replacement is the
// registry's responsibility.
//
// # Turn serialization
//
// One conversation has no parallel turns. A Connect or Query arriving
// while another turn is in flight fails fast with an error matching
// errors.ErrActorBusy instead of queuing, so the caller decides whether
// to retry.
//
// # History
//
// The actor records every human turn and every engine response turn in
// an append-only, strictly ordered history. Engine activity that is not
// response text (tool invocations, reasoning, lifecycle notices) is
// recorded as system-event turns with a tag. History survives only as
// long as the actor; durable storage is the caller's concern.
//
// # Failure semantics
//
// The engine exiting before a turn's terminal event surfaces an error
// matching errors.ErrEngineCrashed, carrying the exit status and the
// subprocess's last stderr output. A turn exceeding its response
// deadline kills the engine and surfaces errors.ErrEngineTimeout. Both
// leave the actor Dead. Disconnect racing an in-flight Query is safe:
// the query observes the engine's death and reports a crash rather than
// hanging.
package actor
