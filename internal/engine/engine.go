// Package engine spawns and supervises the external conversational engine
// subprocess and translates its line-oriented control protocol into
// structured events.
package engine

import (
	"context"
)

// Driver launches engine subprocesses. Implementations own the argv
// construction and transport details for one engine flavor.
type Driver interface {
	// Start spawns the subprocess with the initial prompt and returns a
	// live Process handle. The subprocess outlives ctx; ctx only bounds
	// the spawn itself. Lifetime of the subprocess is owned by the
	// returned handle.
	Start(ctx context.Context, opts StartOptions) (Process, error)
}

// Process is a handle on one running engine subprocess.
//
// The subprocess's standard input stays open for the life of the handle.
// Closing it ends the control protocol prematurely, so only Kill releases
// the stream.
type Process interface {
	// SendTurn writes one human turn to the engine. The control protocol
	// frames one turn per line, so interior newlines in text are
	// flattened to spaces.
	SendTurn(text string) error

	// Events returns the stream of parsed engine events. The channel is
	// closed when the subprocess's output ends, whether by clean exit,
	// crash, or Kill.
	Events() <-chan Event

	// Done is closed once the subprocess has exited and been reaped.
	Done() <-chan struct{}

	// Err returns the subprocess exit error. Only meaningful after Done
	// is closed; nil means a clean exit.
	Err() error

	// StderrTail returns the last captured stderr output, for crash
	// diagnostics.
	StderrTail() string

	// PID returns the subprocess id, or 0 if the process never started.
	PID() int

	// Kill forcibly terminates the subprocess and releases its
	// resources. Idempotent; safe to call on an already-dead process.
	Kill() error
}

// StartOptions configures one engine spawn.
type StartOptions struct {
	// WorkingDir is the subprocess working directory. Empty inherits the
	// parent's.
	WorkingDir string

	// InitialPrompt is the first human turn, passed on the engine's
	// command line. The engine begins responding to it immediately.
	InitialPrompt string

	// PermissionMode controls the engine's tool permission behavior
	// (e.g. "acceptEdits", "plan"). Empty uses the engine default.
	PermissionMode string

	// SystemPromptFile, when set, appends a system prompt loaded from
	// the given file.
	SystemPromptFile string

	// ExtraEnv entries are appended to the inherited environment.
	ExtraEnv []string
}
