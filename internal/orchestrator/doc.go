// Package orchestrator conducts conversations between a human and a
// session actor: deliver input, render the engine's response, suspend
// for the next human turn, repeat.
//
// # Loop shape
//
// Run opens a session through the registry, delivering the initial
// prompt when that constructs a fresh actor and querying when a live
// one already exists. After each engine response it checks the terminal
// conditions in order: the engine's completion marker (auto mode), the
// wall-clock ceiling, and the turn limit. If none hold, the Prompter
// suspends the conversation for human input; a stop phrase, an empty
// reply, or cancellation ends it, anything else becomes the next turn.
// Whatever the ending, the actor is evicted and a Summary is built from
// the durable transcript plus any files harvested from the engine's
// working directory.
//
// # Statelessness
//
// The loop holds no actor reference across a suspension. Every exchange
// re-resolves the session by ID, so a conversation survives the front
// end rotating underneath it as long as the registry or the history
// store still knows the session.
//
// # Failure policy
//
// ActorBusy is absorbed with a short bounded retry. A crash, timeout,
// or a session that disappeared while suspended triggers one recovery
// per conversation: evict, re-create seeded from the history store, and
// re-send the unanswered input prefixed "Continuing conversation:". Any
// further failure ends the conversation with a failure Summary rather
// than retrying again.
package orchestrator
