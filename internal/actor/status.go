package actor

// Status represents the lifecycle state of a session actor.
type Status int

const (
	// StatusStarting indicates the actor exists but has not connected its
	// engine subprocess yet.
	StatusStarting Status = iota

	// StatusReady indicates the engine is connected and the first
	// response has been collected.
	StatusReady

	// StatusBusy indicates a turn is currently in flight.
	StatusBusy

	// StatusIdle indicates the actor is between turns, waiting for the
	// next human input.
	StatusIdle

	// StatusTerminating indicates Disconnect is tearing the actor down.
	StatusTerminating

	// StatusDead indicates the engine subprocess is gone. Dead is
	// terminal: a dead actor never respawns its engine, replacement is
	// the registry's job.
	StatusDead
)

// String returns a human-readable string for the status.
func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusReady:
		return "ready"
	case StatusBusy:
		return "busy"
	case StatusIdle:
		return "idle"
	case StatusTerminating:
		return "terminating"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Alive reports whether the actor can still serve turns.
func (s Status) Alive() bool {
	return s != StatusTerminating && s != StatusDead
}
