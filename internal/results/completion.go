// Package results decides when a conversation is finished and turns the
// outcome into deliverables: a markdown summary and the files the
// engine produced in its working directory.
package results

import (
	"slices"
	"strings"

	"github.com/Iron-Ham/parley/internal/errors"
)

// CompletionMarker is the token the engine emits inside a response when
// it considers the task finished. It is stripped from all displayed and
// summarized text.
const CompletionMarker = "[TASK_COMPLETE]"

// Mode selects how a conversation can end in the absence of an explicit
// human stop.
type Mode string

const (
	// ModeManual keeps the conversation open until the human ends it or
	// a limit trips.
	ModeManual Mode = "manual"

	// ModeAuto additionally ends the conversation when the engine emits
	// the completion marker.
	ModeAuto Mode = "auto"
)

// ParseMode normalizes a configured completion mode. The long spellings
// auto-complete and continuous are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "auto-complete":
		return ModeAuto, nil
	case "manual", "continuous":
		return ModeManual, nil
	default:
		return "", errors.NewValidationError("unknown completion mode").
			WithField("orchestrator.completion_mode").WithValue(s)
	}
}

// DefaultStopPhrases are the inputs that end a conversation when typed
// as the entire human turn.
var DefaultStopPhrases = []string{"done", "exit", "quit", "stop"}

// IsStopPhrase reports whether the input, trimmed and lowercased, is
// one of the stop phrases. A nil phrase list uses the defaults.
func IsStopPhrase(input string, phrases []string) bool {
	if phrases == nil {
		phrases = DefaultStopPhrases
	}
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return false
	}
	return slices.Contains(phrases, normalized)
}

// HasMarker reports whether the text contains the completion marker.
func HasMarker(text string) bool {
	return strings.Contains(text, CompletionMarker)
}

// StripMarker removes every occurrence of the completion marker and
// trims the result.
func StripMarker(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, CompletionMarker, ""))
}
