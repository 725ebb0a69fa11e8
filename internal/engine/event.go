package engine

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of engine event parsed from one output
// line.
type EventType string

const (
	// EventTypeSystem is an engine lifecycle notice (init, config).
	EventTypeSystem EventType = "system"

	// EventTypeText is user-facing response text.
	EventTypeText EventType = "text"

	// EventTypeThinking is the engine's internal reasoning output.
	EventTypeThinking EventType = "thinking"

	// EventTypeToolCall is a tool invocation request.
	EventTypeToolCall EventType = "tool_call"

	// EventTypeToolResult is the outcome of a tool invocation.
	EventTypeToolResult EventType = "tool_result"

	// EventTypeResult is the per-turn terminal event carrying metrics.
	EventTypeResult EventType = "result"

	// EventTypeRaw preserves lines the parser does not recognize.
	EventTypeRaw EventType = "raw"
)

// Event is one parsed engine output line. Exactly one of the payload
// pointers matching Type is non-nil; Raw is set only for EventTypeRaw.
type Event struct {
	Timestamp time.Time
	Type      EventType

	System     *SystemEvent
	Text       *TextEvent
	Thinking   *ThinkingEvent
	ToolCall   *ToolCallEvent
	ToolResult *ToolResultEvent
	Result     *ResultEvent

	// Raw holds the original line for events the parser could not
	// classify.
	Raw json.RawMessage
}

// Terminal reports whether this event ends the current turn.
func (e Event) Terminal() bool { return e.Type == EventTypeResult }

// SystemEvent is an engine lifecycle notice.
type SystemEvent struct {
	Subtype string
	Message string
}

// TextEvent is one chunk of user-facing response text.
type TextEvent struct {
	Content string
}

// ThinkingEvent is internal reasoning output, surfaced for context
// display but never shown as the response itself.
type ThinkingEvent struct {
	Content   string
	Signature string
}

// ToolCallEvent is a tool invocation request from the engine.
type ToolCallEvent struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultEvent is the outcome of a tool invocation.
type ToolResultEvent struct {
	ID      string
	IsError bool
	Content string
}

// ResultEvent carries the engine's end-of-turn summary and usage
// metrics.
type ResultEvent struct {
	Subtype      string
	IsError      bool
	Result       string
	DurationMS   float64
	TurnCount    int64
	CostUSD      float64
	InputTokens  int64
	OutputTokens int64
}
