package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/parley/internal/actor"
)

// Reason identifies why a conversation ended.
type Reason string

const (
	// ReasonCompleted means the human ended it with a stop phrase.
	ReasonCompleted Reason = "completed"

	// ReasonMarker means the engine emitted the completion marker in
	// auto mode.
	ReasonMarker Reason = "task-complete"

	// ReasonEmptyInput means the human submitted an empty turn.
	ReasonEmptyInput Reason = "empty-input"

	// ReasonMaxTurns means the per-conversation turn limit tripped.
	ReasonMaxTurns Reason = "max-turns"

	// ReasonDeadline means the conversation ceiling elapsed.
	ReasonDeadline Reason = "deadline"

	// ReasonCanceled means the invocation context was canceled.
	ReasonCanceled Reason = "canceled"

	// ReasonCrashed means the engine failed and the retry budget was
	// spent.
	ReasonCrashed Reason = "crashed"
)

// Successful reports whether the conversation reached a deliberate end
// rather than tripping a limit or failing.
func (r Reason) Successful() bool {
	return r == ReasonCompleted || r == ReasonMarker
}

// Status is the human-readable outcome line used in summaries and
// end-of-conversation notices.
func (r Reason) Status() string {
	switch r {
	case ReasonCompleted:
		return "✓ conversation completed"
	case ReasonMarker:
		return "✓ task completed by the engine"
	case ReasonEmptyInput:
		return "⚠ empty response ended the conversation"
	case ReasonMaxTurns:
		return "⚠ turn limit reached"
	case ReasonDeadline:
		return "⏱ conversation time limit reached"
	case ReasonCanceled:
		return "⏹ conversation canceled"
	case ReasonCrashed:
		return "✗ engine failed"
	default:
		return string(r)
	}
}

// Summary is everything known about a finished conversation.
type Summary struct {
	SessionID  string
	Reason     Reason
	Detail     string // optional elaboration, e.g. the crash error
	Turns      int
	Duration   time.Duration
	EndedAt    time.Time
	Transcript []actor.ConversationTurn

	// Files holds the relative paths collected from the engine's
	// working directory.
	Files []string
}

// Markdown renders the summary document: outcome, metadata, the full
// transcript under role headings with the completion marker stripped,
// and the collected file manifest.
func (s Summary) Markdown() string {
	var b strings.Builder

	if s.Reason.Successful() {
		b.WriteString("# Task Completed\n\n")
	} else {
		b.WriteString("# Conversation Ended\n\n")
	}

	fmt.Fprintf(&b, "**Status:** %s\n", s.Reason.Status())
	if s.Detail != "" {
		fmt.Fprintf(&b, "**Detail:** %s\n", s.Detail)
	}
	fmt.Fprintf(&b, "**Session:** %s\n", s.SessionID)
	fmt.Fprintf(&b, "**Turns:** %d\n", s.Turns)
	if s.Duration > 0 {
		fmt.Fprintf(&b, "**Duration:** %s\n", s.Duration.Round(time.Second))
	}
	if !s.EndedAt.IsZero() {
		fmt.Fprintf(&b, "**Ended:** %s\n", s.EndedAt.Format("2006-01-02 15:04:05"))
	}

	if transcript := s.renderTranscript(); transcript != "" {
		b.WriteString("\n## Transcript\n\n")
		b.WriteString(transcript)
	}

	if len(s.Files) > 0 {
		b.WriteString("\n## Collected Files\n\n")
		for _, f := range s.Files {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}

	return b.String()
}

func (s Summary) renderTranscript() string {
	var b strings.Builder
	for _, t := range s.Transcript {
		var heading string
		switch t.Role {
		case actor.RoleHuman:
			heading = "**You:**"
		case actor.RoleEngine:
			heading = "**Claude:**"
		default:
			// Tool activity and reasoning stay out of the summary.
			continue
		}

		content := StripMarker(t.Content)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "%s\n\n%s\n\n", heading, content)
	}
	return b.String()
}
