package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/Iron-Ham/parley/internal/errors"
)

// DefaultBinary is the engine executable used when no override is
// configured. The CLAUDE_BINARY environment variable takes precedence
// over this default but not over an explicit Binary setting.
const DefaultBinary = "claude"

// eventBuffer bounds how many parsed events can queue between the
// subprocess and a slow reader.
const eventBuffer = 64

// stderrTailBytes is how much trailing stderr output is retained for
// crash diagnostics.
const stderrTailBytes = 4096

// -----------------------------------------------------------------------------
// ClaudeDriver
// -----------------------------------------------------------------------------

// ClaudeDriver spawns the Claude Code CLI in stream-json mode. The
// initial prompt rides on the command line; follow-up turns are written
// to the subprocess's stdin, which stays open for the life of the
// process.
type ClaudeDriver struct {
	// Binary overrides the engine executable path.
	Binary string

	// QuotaCommand, when non-empty, is prepended to the engine argv to
	// constrain subprocess resources, e.g. ["prlimit", "--as=1073741824"].
	QuotaCommand []string

	// ExtraArgs are appended to the engine argv before the prompt.
	ExtraArgs []string
}

// Start spawns the engine subprocess with the initial prompt as the
// final positional argument. The subprocess is placed in its own
// process group so Kill reaches quota-wrapper children too.
func (d *ClaudeDriver) Start(ctx context.Context, opts StartOptions) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewEngineError("spawn aborted", errors.Join(errors.ErrCanceled, err))
	}

	argv := d.buildArgs(opts)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = append(os.Environ(), opts.ExtraEnv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewEngineError("failed to open engine stdin", errors.Join(errors.ErrSpawnFailed, err))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, errors.NewEngineError("failed to open engine stdout", errors.Join(errors.ErrSpawnFailed, err))
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, errors.NewEngineError("failed to spawn engine", errors.Join(errors.ErrSpawnFailed, err))
	}

	p := &claudeProcess{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.run(stdout)

	return p, nil
}

// buildArgs assembles the full argv, quota wrapper first, prompt last.
func (d *ClaudeDriver) buildArgs(opts StartOptions) []string {
	binary := d.Binary
	if binary == "" {
		binary = os.Getenv("CLAUDE_BINARY")
	}
	if binary == "" {
		binary = DefaultBinary
	}

	args := []string{
		"--output-format", "stream-json",
		"--print",
		"--verbose",
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	if opts.SystemPromptFile != "" {
		args = append(args, "--append-system-prompt-file", opts.SystemPromptFile)
	}
	args = append(args, d.ExtraArgs...)
	// Initial prompt as positional argument.
	args = append(args, opts.InitialPrompt)

	argv := append([]string{}, d.QuotaCommand...)
	argv = append(argv, binary)
	return append(argv, args...)
}

// -----------------------------------------------------------------------------
// claudeProcess
// -----------------------------------------------------------------------------

// claudeProcess is the live subprocess handle returned by Start.
type claudeProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	events chan Event
	stop   chan struct{}
	exited chan struct{}

	killOnce sync.Once
	stopOnce sync.Once

	waitErr error
}

// run pumps subprocess output into the events channel, then reaps the
// process. Wait must not race the stdout pipe read, so both happen on
// this goroutine.
func (p *claudeProcess) run(stdout io.Reader) {
	_ = pumpEvents(stdout, p.events, p.stop)
	p.waitErr = p.cmd.Wait()
	close(p.events)
	close(p.exited)
}

// SendTurn writes one human turn as a single protocol line. Interior
// newlines are flattened to spaces so one call is exactly one turn.
func (p *claudeProcess) SendTurn(text string) error {
	line := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", " ")
	if _, err := fmt.Fprintf(p.stdin, "%s\n", line); err != nil {
		return errors.NewEngineError("failed to write turn", errors.Join(errors.ErrEngineCrashed, err))
	}
	return nil
}

// Events returns the stream of parsed engine events.
func (p *claudeProcess) Events() <-chan Event { return p.events }

// Done is closed once the subprocess has exited and been reaped.
func (p *claudeProcess) Done() <-chan struct{} { return p.exited }

// Err returns the exit error recorded by Wait. Only meaningful after
// Done is closed.
func (p *claudeProcess) Err() error { return p.waitErr }

// StderrTail returns the last captured stderr output.
func (p *claudeProcess) StderrTail() string { return p.stderr.String() }

// PID returns the subprocess id.
func (p *claudeProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Kill force-terminates the subprocess's process group and unblocks the
// event pump. Idempotent.
func (p *claudeProcess) Kill() error {
	p.stopOnce.Do(func() { close(p.stop) })

	var killErr error
	p.killOnce.Do(func() {
		if p.cmd.Process == nil {
			return
		}
		// Negative pid targets the whole group, so a quota wrapper's
		// engine child dies with it.
		err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
		if err != nil && err != syscall.ESRCH {
			killErr = errors.Wrap(err, "failed to kill engine process")
		}
		_ = p.stdin.Close()
	})
	return killErr
}

// -----------------------------------------------------------------------------
// tailBuffer
// -----------------------------------------------------------------------------

// tailBuffer retains the last max bytes written to it. Used to capture
// subprocess stderr without unbounded growth.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

// Write appends p, discarding the oldest bytes beyond the cap.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

// String returns the retained tail.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
