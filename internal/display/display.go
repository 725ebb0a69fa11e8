// Package display renders conversation turns to an output stream.
//
// The renderer is deliberately dumb: it formats whatever turns it is
// given, one line-oriented block per turn, with role-colored labels for
// the human and engine sides and dimmed single lines for tool activity
// and engine notices. Styling is optional; with it off the same layout
// is emitted as plain text, suitable for pipes and logs.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/parley/internal/actor"
)

// maxDetailWidth caps dimmed detail lines (tool output, reasoning) so a
// noisy tool cannot flood the transcript.
const maxDetailWidth = 160

// Options configures a Renderer.
type Options struct {
	// Styled enables ANSI styling. Off emits the same layout as plain
	// text.
	Styled bool

	// ShowThinking includes the engine's reasoning turns, dimmed.
	ShowThinking bool

	// Timestamps prefixes each turn with its wall-clock time.
	Timestamps bool
}

// Renderer writes turns to a single output stream. Methods are not safe
// for concurrent use; callers serialize rendering the same way they
// serialize turns.
type Renderer struct {
	w    io.Writer
	opts Options
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	return &Renderer{w: w, opts: opts}
}

// Turns renders a sequence of turns in order.
func (r *Renderer) Turns(turns []actor.ConversationTurn) {
	for _, t := range turns {
		r.Turn(t)
	}
}

// Turn renders one turn. Reasoning turns are dropped unless the
// renderer was built with ShowThinking.
func (r *Renderer) Turn(t actor.ConversationTurn) {
	prefix := ""
	if r.opts.Timestamps && !t.Timestamp.IsZero() {
		prefix = r.style(mutedText, t.Timestamp.Format("15:04:05")) + " "
	}

	switch {
	case t.Role == actor.RoleHuman:
		fmt.Fprintf(r.w, "%s%s %s\n", prefix, r.style(humanLabel, "you ❯"), t.Content)
	case t.Role == actor.RoleEngine:
		fmt.Fprintf(r.w, "%s%s %s\n", prefix, r.style(engineLabel, "claude ❯"), t.Content)
	case t.Tag == actor.TagThinking:
		if !r.opts.ShowThinking {
			return
		}
		fmt.Fprintf(r.w, "%s%s\n", prefix, r.style(mutedText, "  · "+clip(t.Content)))
	case t.Tag == actor.TagToolUse:
		fmt.Fprintf(r.w, "%s%s\n", prefix, r.style(mutedText, "  ⚙ "+clip(t.Content)))
	case t.Tag == actor.TagToolResult:
		fmt.Fprintf(r.w, "%s%s\n", prefix, r.style(mutedText, "  ✓ "+clip(t.Content)))
	default:
		fmt.Fprintf(r.w, "%s%s\n", prefix, r.style(mutedText, "  [system] "+clip(t.Content)))
	}
}

// Notice prints a dimmed informational line, for lifecycle messages
// like session creation and eviction.
func (r *Renderer) Notice(format string, args ...any) {
	fmt.Fprintln(r.w, r.style(noticeText, fmt.Sprintf(format, args...)))
}

// Error prints a highlighted error line.
func (r *Renderer) Error(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(r.w, r.style(errorText, "error: "+err.Error()))
}

func (r *Renderer) style(st lipgloss.Style, s string) string {
	if !r.opts.Styled {
		return s
	}
	return st.Render(s)
}

// clip reduces detail content to its first line, truncated to
// maxDetailWidth runes.
func clip(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) <= maxDetailWidth {
		return s
	}
	return string(runes[:maxDetailWidth]) + "…"
}
