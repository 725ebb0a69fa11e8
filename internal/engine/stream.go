package engine

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

const (
	// Engine output lines can carry large tool results.
	initialScanBuffer = 64 * 1024
	maxScanBuffer     = 1024 * 1024
)

// pumpEvents reads line-delimited JSON from r and delivers one Event per
// line until EOF or stop closes. Returns the scanner error, if any.
func pumpEvents(r io.Reader, events chan<- Event, stop <-chan struct{}) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialScanBuffer), maxScanBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		select {
		case events <- parseLine(line):
		case <-stop:
			return nil
		}
	}
	return scanner.Err()
}

// envelope is the common header shared by all control protocol lines.
type envelope struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

// parseLine converts one output line into an Event. Lines that are not
// valid JSON, or carry an unknown type, come back as EventTypeRaw with
// the original bytes preserved.
func parseLine(line []byte) Event {
	now := time.Now()

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return rawEvent(now, line)
	}

	switch env.Type {
	case "system":
		return Event{
			Timestamp: now,
			Type:      EventTypeSystem,
			System: &SystemEvent{
				Subtype: env.Subtype,
				Message: stringField(line, "message"),
			},
		}
	case "assistant":
		return parseAssistantLine(now, env.Subtype, line)
	case "tool":
		return parseToolLine(now, env.Subtype, line)
	case "result":
		return parseResultLine(now, env.Subtype, line)
	default:
		return rawEvent(now, line)
	}
}

// parseAssistantLine handles {"type":"assistant",...} lines.
func parseAssistantLine(ts time.Time, subtype string, line []byte) Event {
	switch subtype {
	case "text":
		return Event{
			Timestamp: ts,
			Type:      EventTypeText,
			Text:      &TextEvent{Content: stringField(line, "text")},
		}
	case "thinking":
		return Event{
			Timestamp: ts,
			Type:      EventTypeThinking,
			Thinking: &ThinkingEvent{
				Content:   stringField(line, "thinking"),
				Signature: stringField(line, "signature"),
			},
		}
	case "tool_use":
		var call struct {
			ID    string          `json:"tool_use_id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}
		_ = json.Unmarshal(line, &call)
		return Event{
			Timestamp: ts,
			Type:      EventTypeToolCall,
			ToolCall: &ToolCallEvent{
				ID:    call.ID,
				Name:  call.Name,
				Input: call.Input,
			},
		}
	default:
		return rawEvent(ts, line)
	}
}

// parseToolLine handles {"type":"tool",...} lines.
func parseToolLine(ts time.Time, subtype string, line []byte) Event {
	if subtype != "result" {
		return rawEvent(ts, line)
	}

	var result struct {
		ToolUseID string `json:"tool_use_id"`
		IsError   bool   `json:"is_error"`
		Content   string `json:"content"`
	}
	_ = json.Unmarshal(line, &result)
	return Event{
		Timestamp: ts,
		Type:      EventTypeToolResult,
		ToolResult: &ToolResultEvent{
			ID:      result.ToolUseID,
			IsError: result.IsError,
			Content: result.Content,
		},
	}
}

// parseResultLine handles {"type":"result",...} lines, extracting the
// turn summary and metrics. Older engine versions report cost under
// "cost_usd" rather than "total_cost_usd".
func parseResultLine(ts time.Time, subtype string, line []byte) Event {
	var result struct {
		IsError       bool    `json:"is_error"`
		Result        string  `json:"result"`
		CostUSD       float64 `json:"total_cost_usd"`
		LegacyCostUSD float64 `json:"cost_usd"`
		InputTokens   int64   `json:"input_tokens"`
		OutputTokens  int64   `json:"output_tokens"`
		DurationMS    float64 `json:"duration_ms"`
		TurnCount     int64   `json:"num_turns"`
	}
	_ = json.Unmarshal(line, &result)

	cost := result.CostUSD
	if cost == 0 {
		cost = result.LegacyCostUSD
	}

	return Event{
		Timestamp: ts,
		Type:      EventTypeResult,
		Result: &ResultEvent{
			Subtype:      subtype,
			IsError:      result.IsError,
			Result:       result.Result,
			DurationMS:   result.DurationMS,
			TurnCount:    result.TurnCount,
			CostUSD:      cost,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
		},
	}
}

// rawEvent preserves an unrecognized line verbatim.
func rawEvent(ts time.Time, line []byte) Event {
	return Event{
		Timestamp: ts,
		Type:      EventTypeRaw,
		Raw:       json.RawMessage(append([]byte(nil), line...)),
	}
}

// stringField extracts a single string field from a JSON object without
// deserializing the whole line. Returns "" on any error.
func stringField(data []byte, field string) string {
	var parsed map[string]json.RawMessage
	if json.Unmarshal(data, &parsed) != nil {
		return ""
	}
	raw, ok := parsed[field]
	if !ok {
		return ""
	}
	var value string
	if json.Unmarshal(raw, &value) != nil {
		return ""
	}
	return value
}
