// Package event defines event types for decoupling components in Parley.
// These events let the registry, orchestrator, and CLI observe lifecycle
// transitions without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.created", "turn.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionCreatedEvent is emitted when the registry creates a new session
// actor, including replacements for crashed sessions.
type SessionCreatedEvent struct {
	baseEvent
	SessionID   string // Caller-chosen session identifier
	ExecutionID string // Identifier for this actor incarnation
	Replacement bool   // True if this actor replaces a dead one
}

// NewSessionCreatedEvent creates a SessionCreatedEvent.
func NewSessionCreatedEvent(sessionID, executionID string, replacement bool) SessionCreatedEvent {
	return SessionCreatedEvent{
		baseEvent:   newBaseEvent("session.created"),
		SessionID:   sessionID,
		ExecutionID: executionID,
		Replacement: replacement,
	}
}

// SessionEvictedEvent is emitted when a session is removed from the
// registry, either explicitly or by the idle sweeper.
type SessionEvictedEvent struct {
	baseEvent
	SessionID string // Session that was evicted
	Reason    string // Why the session was removed (e.g., "explicit", "idle", "dead")
}

// NewSessionEvictedEvent creates a SessionEvictedEvent.
func NewSessionEvictedEvent(sessionID, reason string) SessionEvictedEvent {
	return SessionEvictedEvent{
		baseEvent: newBaseEvent("session.evicted"),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// SessionCrashedEvent is emitted when a session's engine subprocess
// exits unexpectedly and the actor transitions to Dead.
type SessionCrashedEvent struct {
	baseEvent
	SessionID   string // Session whose engine crashed
	ExecutionID string // Incarnation that crashed
	Error       string // Description of the failure
}

// NewSessionCrashedEvent creates a SessionCrashedEvent.
func NewSessionCrashedEvent(sessionID, executionID, errMsg string) SessionCrashedEvent {
	return SessionCrashedEvent{
		baseEvent:   newBaseEvent("session.crashed"),
		SessionID:   sessionID,
		ExecutionID: executionID,
		Error:       errMsg,
	}
}

// -----------------------------------------------------------------------------
// Sweep Events
// -----------------------------------------------------------------------------

// SweepCompletedEvent is emitted after each idle sweep pass over the
// registry.
type SweepCompletedEvent struct {
	baseEvent
	Scanned int      // Number of sessions examined
	Evicted []string // Session IDs removed during this pass
}

// NewSweepCompletedEvent creates a SweepCompletedEvent.
func NewSweepCompletedEvent(scanned int, evicted []string) SweepCompletedEvent {
	return SweepCompletedEvent{
		baseEvent: newBaseEvent("sweep.completed"),
		Scanned:   scanned,
		Evicted:   evicted,
	}
}

// -----------------------------------------------------------------------------
// Turn Events
// -----------------------------------------------------------------------------

// TurnCompletedEvent is emitted when a query turn finishes, whether it
// produced a response or failed.
type TurnCompletedEvent struct {
	baseEvent
	SessionID string        // Session the turn ran against
	Turn      int           // Turn number within the conversation, starting at 1
	Duration  time.Duration // Wall-clock time the turn took
	Success   bool          // Whether the engine produced a response
	Error     string        // Failure description (empty on success)
}

// NewTurnCompletedEvent creates a TurnCompletedEvent.
func NewTurnCompletedEvent(sessionID string, turn int, duration time.Duration, success bool, errMsg string) TurnCompletedEvent {
	return TurnCompletedEvent{
		baseEvent: newBaseEvent("turn.completed"),
		SessionID: sessionID,
		Turn:      turn,
		Duration:  duration,
		Success:   success,
		Error:     errMsg,
	}
}
