// Package prompt suspends a conversation while a human supplies the
// next input.
//
// Two implementations cover the two ways the CLI is driven. The
// terminal prompter runs a small interactive input inline in the
// invoking terminal. The file prompter suspends across processes: it
// writes a prompt file into an exchange directory and waits for another
// process (a web front end, a bot, a human with an editor) to drop the
// matching reply file.
package prompt

import "context"

// PromptSpec describes the input being requested.
type PromptSpec struct {
	// SessionID identifies the paused conversation.
	SessionID string

	// Turn is the number the next human turn will carry, starting at 1.
	Turn int

	// Question is the engine's most recent response, shown to the human
	// for context.
	Question string
}

// Prompter obtains the next human input for a paused conversation.
type Prompter interface {
	// Prompt blocks until input is available or ctx is done. The
	// returned string is the raw human input, not yet checked against
	// stop phrases.
	Prompt(ctx context.Context, spec PromptSpec) (string, error)
}
