package actor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/parley/internal/clock"
	"github.com/Iron-Ham/parley/internal/engine"
	"github.com/Iron-Ham/parley/internal/errors"
	"github.com/Iron-Ham/parley/internal/logging"
)

const (
	// DefaultTurnTimeout bounds how long one turn may wait for the
	// engine's terminal event before the actor declares the engine hung.
	DefaultTurnTimeout = 5 * time.Minute

	// killGrace bounds how long Disconnect waits for the subprocess to be
	// reaped after Kill.
	killGrace = 5 * time.Second

	// namePrefix is prepended to the execution ID to form the actor name.
	namePrefix = "claude-session-"
)

// Config configures a new session actor.
type Config struct {
	// SessionID is the conversation's registry key.
	SessionID string

	// ExecutionID uniquely identifies this actor incarnation. A session
	// that crashes and is replaced gets a fresh ExecutionID. Generated
	// when empty.
	ExecutionID string

	// Driver launches the engine subprocess.
	Driver engine.Driver

	// Start carries the spawn options for Connect. Its InitialPrompt
	// field is overwritten with Connect's argument.
	Start engine.StartOptions

	// TurnTimeout is the per-turn response deadline. Zero uses
	// DefaultTurnTimeout.
	TurnTimeout time.Duration

	// Clock supplies time. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives actor lifecycle logs. Nil discards them.
	Logger *logging.Logger
}

// SessionActor owns one conversation: exactly one engine subprocess, the
// append-only turn history, and the idle deadline. At most one turn is in
// flight at a time; a second concurrent Connect or Query is rejected with
// ErrActorBusy rather than queued.
//
// A SessionActor never restarts its own engine. Once the subprocess dies
// the actor is Dead for good and the registry constructs a replacement.
type SessionActor struct {
	sessionID   string
	executionID string
	driver      engine.Driver
	startOpts   engine.StartOptions
	turnTimeout time.Duration
	clock       clock.Clock
	logger      *logging.Logger

	// opMu serializes turns. Acquired with TryLock so a second caller
	// fails fast instead of queuing behind an in-flight turn.
	opMu sync.Mutex

	// mu guards the mutable state below. Never held across engine I/O.
	mu           sync.Mutex
	status       Status
	proc         engine.Process
	history      []ConversationTurn
	lastActivity time.Time
}

// New creates a session actor in the Starting state. The engine
// subprocess is not launched until Connect.
func New(cfg Config) *SessionActor {
	if cfg.ExecutionID == "" {
		cfg.ExecutionID = uuid.NewString()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}

	a := &SessionActor{
		sessionID:   cfg.SessionID,
		executionID: cfg.ExecutionID,
		driver:      cfg.Driver,
		startOpts:   cfg.Start,
		turnTimeout: cfg.TurnTimeout,
		clock:       cfg.Clock,
		status:      StatusStarting,
	}
	a.logger = cfg.Logger.
		WithSession(cfg.SessionID).
		WithExecution(cfg.ExecutionID).
		WithComponent("actor")
	a.lastActivity = a.clock.Now()
	return a
}

// SessionID returns the conversation's registry key.
func (a *SessionActor) SessionID() string { return a.sessionID }

// ExecutionID returns the identifier of this actor incarnation.
func (a *SessionActor) ExecutionID() string { return a.executionID }

// Name returns the actor's process-facing name.
func (a *SessionActor) Name() string { return namePrefix + a.executionID }

// Status returns the actor's current lifecycle state.
func (a *SessionActor) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// LastActivity returns when the actor last started or finished a turn.
func (a *SessionActor) LastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActivity
}

// History returns a copy of the conversation history.
func (a *SessionActor) History() []ConversationTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return CloneTurns(a.history)
}

// Seed preloads conversation history onto a not-yet-connected actor. The
// registry uses this to carry prior turns onto a replacement actor after
// a crash. Seeding after Connect is an error.
func (a *SessionActor) Seed(turns []ConversationTurn) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusStarting {
		return errors.NewSessionError("cannot seed history after connect", errors.ErrInvalidInput).
			WithSessionID(a.sessionID)
	}
	a.history = append(a.history, turns...)
	return nil
}

// Connect launches the engine subprocess, delivers the initial prompt,
// and collects the engine's first response. On success the actor
// transitions Starting to Ready and the response turns are returned.
//
// A spawn failure leaves the actor Dead; the caller gets an error
// matching ErrSpawnFailed and must not reuse the actor.
func (a *SessionActor) Connect(ctx context.Context, initialPrompt string) ([]ConversationTurn, error) {
	if !a.opMu.TryLock() {
		return nil, a.busyError()
	}
	defer a.opMu.Unlock()

	a.mu.Lock()
	if a.status != StatusStarting {
		status := a.status
		a.mu.Unlock()
		if !status.Alive() {
			return nil, errors.NewSessionError("connect on dead actor", errors.ErrActorDead).
				WithSessionID(a.sessionID)
		}
		return nil, errors.NewSessionError("actor already connected", errors.ErrInvalidInput).
			WithSessionID(a.sessionID)
	}
	a.mu.Unlock()

	if a.driver == nil {
		return nil, errors.NewEngineError("no engine driver configured", errors.ErrInvalidInput).
			WithSessionID(a.sessionID)
	}

	opts := a.startOpts
	opts.InitialPrompt = initialPrompt

	a.logger.Info("starting engine",
		"actor_name", a.Name(),
		"working_dir", opts.WorkingDir)

	proc, err := a.driver.Start(ctx, opts)
	if err != nil {
		a.markDead()
		return nil, a.annotate(err, "engine start failed", errors.ErrSpawnFailed)
	}

	a.mu.Lock()
	if !a.status.Alive() {
		a.mu.Unlock()
		_ = proc.Kill()
		return nil, errors.NewSessionError("actor disconnected during connect", errors.ErrActorDead).
			WithSessionID(a.sessionID)
	}
	a.proc = proc
	now := a.clock.Now()
	a.lastActivity = now
	a.history = append(a.history, ConversationTurn{Role: RoleHuman, Content: initialPrompt, Timestamp: now})
	a.mu.Unlock()

	turns, err := a.collectResponse(ctx, proc)
	if err != nil {
		a.markDead()
		return nil, err
	}

	a.mu.Lock()
	a.history = append(a.history, turns...)
	a.lastActivity = a.clock.Now()
	if a.status == StatusStarting {
		a.status = StatusReady
	}
	a.mu.Unlock()

	a.logger.Info("engine connected",
		"pid", proc.PID(),
		"response_turns", len(turns))
	return turns, nil
}

// Query delivers one human turn to the engine and blocks until the
// engine's terminal event for that turn. The human turn and the response
// turns are appended to history in order, lastActivity is refreshed, and
// the response turns are returned.
//
// If the subprocess dies or the per-turn deadline expires mid-query, the
// actor marks itself Dead and returns an error matching ErrEngineCrashed
// or ErrEngineTimeout. It never respawns in place.
func (a *SessionActor) Query(ctx context.Context, humanText string) ([]ConversationTurn, error) {
	if !a.opMu.TryLock() {
		return nil, a.busyError()
	}
	defer a.opMu.Unlock()

	a.mu.Lock()
	switch {
	case !a.status.Alive():
		a.mu.Unlock()
		return nil, errors.NewSessionError("query on dead actor", errors.ErrActorDead).
			WithSessionID(a.sessionID)
	case a.status == StatusStarting:
		a.mu.Unlock()
		return nil, errors.NewSessionError("query before connect", errors.ErrInvalidInput).
			WithSessionID(a.sessionID)
	}
	a.status = StatusBusy
	now := a.clock.Now()
	a.lastActivity = now
	a.history = append(a.history, ConversationTurn{Role: RoleHuman, Content: humanText, Timestamp: now})
	proc := a.proc
	a.mu.Unlock()

	a.logger.Debug("sending turn", "chars", len(humanText))

	if err := proc.SendTurn(humanText); err != nil {
		a.markDead()
		return nil, a.annotate(err, "failed to deliver turn", errors.ErrEngineCrashed)
	}

	turns, err := a.collectResponse(ctx, proc)
	if err != nil {
		a.markDead()
		return nil, err
	}

	a.mu.Lock()
	a.history = append(a.history, turns...)
	a.lastActivity = a.clock.Now()
	if a.status == StatusBusy {
		a.status = StatusIdle
	}
	a.mu.Unlock()

	a.logger.Debug("turn complete", "response_turns", len(turns))
	return turns, nil
}

// CheckIdle reports whether the actor has been inactive longer than
// idleThreshold as of now. Read-only; the sweep decision stays with the
// caller.
func (a *SessionActor) CheckIdle(now time.Time, idleThreshold time.Duration) bool {
	a.mu.Lock()
	last := a.lastActivity
	a.mu.Unlock()
	return now.Sub(last) > idleThreshold
}

// Disconnect kills the engine subprocess and transitions the actor to
// Dead. Safe to call repeatedly and at any point, including while a turn
// is in flight: the in-flight Query observes the engine's death and
// returns an error matching ErrEngineCrashed.
func (a *SessionActor) Disconnect() error {
	a.mu.Lock()
	if a.status == StatusDead {
		a.mu.Unlock()
		return nil
	}
	a.status = StatusTerminating
	proc := a.proc
	a.mu.Unlock()

	if proc != nil {
		if err := proc.Kill(); err != nil {
			a.logger.Warn("engine kill failed", "error", err.Error())
		}
		select {
		case <-proc.Done():
		case <-a.clock.After(killGrace):
			a.logger.Warn("engine not reaped within grace period", "pid", proc.PID())
		}
	}

	a.mu.Lock()
	a.status = StatusDead
	a.mu.Unlock()

	a.logger.Info("actor disconnected", "actor_name", a.Name())
	return nil
}

// collectResponse drains engine events until the turn's terminal event,
// converting them to conversation turns. The engine exiting before the
// terminal event is a crash; the per-turn deadline expiring kills the
// engine and surfaces a timeout.
func (a *SessionActor) collectResponse(ctx context.Context, proc engine.Process) ([]ConversationTurn, error) {
	var turns []ConversationTurn
	sawText := false
	deadline := a.clock.After(a.turnTimeout)

	for {
		select {
		case ev, ok := <-proc.Events():
			if !ok {
				return nil, a.crashError(proc)
			}
			if ev.Terminal() {
				return finalizeTurns(turns, ev, sawText, a.clock.Now()), nil
			}
			turn, keep := a.turnFromEvent(ev)
			if !keep {
				continue
			}
			if turn.Role == RoleEngine {
				sawText = true
			}
			turns = append(turns, turn)

		case <-deadline:
			_ = proc.Kill()
			return nil, errors.NewEngineError("no terminal event within turn deadline", errors.ErrEngineTimeout).
				WithSessionID(a.sessionID).
				WithExecutionID(a.executionID)

		case <-ctx.Done():
			_ = proc.Kill()
			return nil, errors.NewEngineError("turn canceled", errors.Join(errors.ErrCanceled, ctx.Err())).
				WithSessionID(a.sessionID).
				WithExecutionID(a.executionID)
		}
	}
}

// crashError builds the error for an engine that exited before yielding
// the turn's terminal event. It waits briefly for the exit status so the
// error can carry it along with the captured stderr tail.
func (a *SessionActor) crashError(proc engine.Process) error {
	select {
	case <-proc.Done():
	case <-a.clock.After(killGrace):
	}

	cause := error(errors.ErrEngineCrashed)
	if exitErr := proc.Err(); exitErr != nil {
		cause = errors.Join(errors.ErrEngineCrashed, exitErr)
	}
	msg := "engine exited mid-turn"
	if tail := strings.TrimSpace(proc.StderrTail()); tail != "" {
		msg = fmt.Sprintf("engine exited mid-turn: %s", tail)
	}
	return errors.NewEngineError(msg, cause).
		WithSessionID(a.sessionID).
		WithExecutionID(a.executionID)
}

// turnFromEvent converts one non-terminal engine event into a
// conversation turn. Events with no conversational payload are dropped.
func (a *SessionActor) turnFromEvent(ev engine.Event) (ConversationTurn, bool) {
	now := a.clock.Now()
	switch ev.Type {
	case engine.EventTypeText:
		return ConversationTurn{Role: RoleEngine, Content: ev.Text.Content, Timestamp: now}, true

	case engine.EventTypeThinking:
		return ConversationTurn{Role: RoleSystem, Content: ev.Thinking.Content, Tag: TagThinking, Timestamp: now}, true

	case engine.EventTypeToolCall:
		content := ev.ToolCall.Name
		if in := strings.TrimSpace(string(ev.ToolCall.Input)); in != "" && in != "null" {
			content += " " + in
		}
		return ConversationTurn{Role: RoleSystem, Content: content, Tag: TagToolUse, Timestamp: now}, true

	case engine.EventTypeToolResult:
		return ConversationTurn{Role: RoleSystem, Content: ev.ToolResult.Content, Tag: TagToolResult, Timestamp: now}, true

	case engine.EventTypeSystem:
		content := ev.System.Message
		if content == "" {
			content = ev.System.Subtype
		}
		return ConversationTurn{Role: RoleSystem, Content: content, Tag: TagSystem, Timestamp: now}, true

	default:
		a.logger.Debug("dropping engine event with no conversational payload", "type", string(ev.Type))
		return ConversationTurn{}, false
	}
}

// finalizeTurns applies the turn's terminal event. When the engine
// reported a final result without having streamed any text, the result
// becomes the response turn; otherwise the last streamed response turn
// is tagged final.
func finalizeTurns(turns []ConversationTurn, ev engine.Event, sawText bool, now time.Time) []ConversationTurn {
	if res := ev.Result; res != nil && res.Result != "" && !sawText {
		return append(turns, ConversationTurn{Role: RoleEngine, Content: res.Result, Tag: TagFinal, Timestamp: now})
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleEngine {
			turns[i].Tag = TagFinal
			break
		}
	}
	return turns
}

// markDead transitions the actor to Dead and kills any live subprocess.
// Idempotent; called on every failure path.
func (a *SessionActor) markDead() {
	a.mu.Lock()
	if a.status == StatusDead {
		a.mu.Unlock()
		return
	}
	a.status = StatusDead
	proc := a.proc
	a.mu.Unlock()

	if proc != nil {
		_ = proc.Kill()
	}
	a.logger.Warn("actor marked dead", "actor_name", a.Name())
}

func (a *SessionActor) busyError() error {
	return errors.NewSessionError("a turn is already in flight", errors.ErrActorBusy).
		WithSessionID(a.sessionID)
}

// annotate wraps an engine failure with session context. Errors that are
// already engine errors keep their message and gain the IDs; anything
// else is wrapped with msg and joined to the given kind so callers can
// match it.
func (a *SessionActor) annotate(err error, msg string, kind error) error {
	var engErr *errors.EngineError
	if errors.As(err, &engErr) {
		engErr.WithSessionID(a.sessionID).WithExecutionID(a.executionID)
		return err
	}
	return errors.NewEngineError(msg, errors.Join(kind, err)).
		WithSessionID(a.sessionID).
		WithExecutionID(a.executionID)
}
