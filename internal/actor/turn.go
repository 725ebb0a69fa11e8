package actor

import (
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleHuman marks input supplied by the human participant.
	RoleHuman Role = "human"

	// RoleEngine marks user-facing response text from the engine.
	RoleEngine Role = "engine"

	// RoleSystem marks engine activity that is not response text, such as
	// tool invocations or lifecycle notices. Surfaced for context display
	// but never treated as the answer.
	RoleSystem Role = "system-event"
)

// Turn tags attached to ConversationTurn.Tag. Empty means plain text.
const (
	// TagFinal marks the turn that closed out an engine response.
	TagFinal = "final"

	// TagThinking marks internal reasoning output.
	TagThinking = "thinking"

	// TagToolUse marks a tool invocation request.
	TagToolUse = "tool-use"

	// TagToolResult marks the outcome of a tool invocation.
	TagToolResult = "tool-result"

	// TagSystem marks an engine lifecycle notice.
	TagSystem = "system"
)

// ConversationTurn is one entry in a session's conversation history.
// History is append-only and strictly ordered: the sequence of turns
// recorded for a session matches the order they were exchanged.
type ConversationTurn struct {
	// Role identifies the producer of this turn.
	Role Role `json:"role"`

	// Content is the turn's text payload.
	Content string `json:"content"`

	// Tag optionally classifies the turn (e.g. "final", "tool-use").
	Tag string `json:"tag,omitempty"`

	// Timestamp records when the turn was observed.
	Timestamp time.Time `json:"timestamp"`
}

// IsResponse reports whether the turn carries user-facing response text.
func (t ConversationTurn) IsResponse() bool {
	return t.Role == RoleEngine
}

// CloneTurns returns a deep copy of a turn slice. Turns contain no
// reference types beyond strings, so a slice copy is sufficient.
func CloneTurns(turns []ConversationTurn) []ConversationTurn {
	if turns == nil {
		return nil
	}
	out := make([]ConversationTurn, len(turns))
	copy(out, turns)
	return out
}
