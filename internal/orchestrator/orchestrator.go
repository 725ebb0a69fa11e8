package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/parley/internal/actor"
	"github.com/Iron-Ham/parley/internal/clock"
	"github.com/Iron-Ham/parley/internal/display"
	"github.com/Iron-Ham/parley/internal/errors"
	"github.com/Iron-Ham/parley/internal/event"
	"github.com/Iron-Ham/parley/internal/history"
	"github.com/Iron-Ham/parley/internal/logging"
	"github.com/Iron-Ham/parley/internal/prompt"
	"github.com/Iron-Ham/parley/internal/registry"
	"github.com/Iron-Ham/parley/internal/results"
)

// Defaults applied by New for zero Config fields.
const (
	// DefaultMaxTurns caps human/engine exchanges within one
	// conversation.
	DefaultMaxTurns = 50

	// DefaultCeiling bounds one conversation's wall-clock duration.
	DefaultCeiling = 10 * time.Minute
)

// Bounds for the retry on a busy actor. A concurrent turn either
// finishes quickly or ends in a crash we recover from elsewhere, so the
// window stays short.
const (
	busyAttempts     = 3
	defaultBusyDelay = 200 * time.Millisecond
)

// resumePrefix introduces the re-sent input on a replacement actor, so
// the fresh engine process knows it is picking up mid-conversation.
const resumePrefix = "Continuing conversation: "

// Config assembles the orchestrator's collaborators and limits.
type Config struct {
	// Registry resolves and creates session actors. Required.
	Registry *registry.Registry

	// History is the durable conversation log. The orchestrator
	// appends every exchange to it and re-seeds replacement actors
	// from it. Required.
	History history.Store

	// Prompter suspends the conversation for human input. Required.
	Prompter prompt.Prompter

	// Renderer displays turns as they arrive. Nil disables rendering.
	Renderer *display.Renderer

	// Collector harvests files the engine wrote once the conversation
	// ends. Nil disables collection.
	Collector *results.Collector

	// WorkDir is the engine working directory the Collector scans.
	WorkDir string

	// ResultsDir receives collected files, one subdirectory per
	// session. Empty disables collection.
	ResultsDir string

	// Mode selects how conversations complete. Empty means ModeAuto,
	// where the engine's completion marker ends the conversation.
	Mode results.Mode

	// StopPhrases overrides the human inputs that end a conversation.
	// Nil keeps the defaults.
	StopPhrases []string

	// MaxTurns caps exchanges per conversation. Zero means
	// DefaultMaxTurns.
	MaxTurns int

	// Ceiling bounds a conversation's wall-clock duration. Zero means
	// DefaultCeiling.
	Ceiling time.Duration

	// Bus receives turn and crash events. Nil uses the registry's bus.
	Bus *event.Bus

	// Clock supplies time. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives orchestration logs. Nil discards them.
	Logger *logging.Logger
}

// Orchestrator conducts conversations: it resolves the session actor,
// exchanges turns, suspends for human input, and decides when the
// conversation is over.
//
// It keeps no conversation state of its own between suspensions. The
// actor is re-resolved by session ID after every human pause, and the
// durable record lives in the history store, so any invocation can pick
// a session up where the last one left off.
type Orchestrator struct {
	registry  *registry.Registry
	store     history.Store
	prompter  prompt.Prompter
	renderer  *display.Renderer
	collector *results.Collector

	workDir    string
	resultsDir string

	mode        results.Mode
	stopPhrases []string
	maxTurns    int
	ceiling     time.Duration

	bus    *event.Bus
	clock  clock.Clock
	logger *logging.Logger

	busyDelay time.Duration
}

// New validates cfg and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errors.NewValidationError("orchestrator requires a registry").WithField("registry")
	case cfg.History == nil:
		return nil, errors.NewValidationError("orchestrator requires a history store").WithField("history")
	case cfg.Prompter == nil:
		return nil, errors.NewValidationError("orchestrator requires a prompter").WithField("prompter")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = results.ModeAuto
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Bus == nil {
		cfg.Bus = cfg.Registry.Bus()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}

	return &Orchestrator{
		registry:    cfg.Registry,
		store:       cfg.History,
		prompter:    cfg.Prompter,
		renderer:    cfg.Renderer,
		collector:   cfg.Collector,
		workDir:     cfg.WorkDir,
		resultsDir:  cfg.ResultsDir,
		mode:        mode,
		stopPhrases: cfg.StopPhrases,
		maxTurns:    cfg.MaxTurns,
		ceiling:     cfg.Ceiling,
		bus:         cfg.Bus,
		clock:       cfg.Clock,
		logger:      cfg.Logger.WithComponent("orchestrator"),
		busyDelay:   defaultBusyDelay,
	}, nil
}

// Run conducts one conversation against sessionID, opening with
// initialPrompt, until a terminal condition is reached: a stop phrase
// or empty reply from the human, the engine's completion marker in auto
// mode, the turn limit, the wall-clock ceiling, cancellation, or an
// unrecoverable failure. The session actor is always evicted on the way
// out.
//
// Run always returns a Summary describing how the conversation ended.
// The error is non-nil only for failures: validation, capacity, spawn
// errors, and crashes that exhausted the recovery budget. Deliberate
// endings, including cancellation, return a nil error.
func (o *Orchestrator) Run(ctx context.Context, sessionID, initialPrompt string) (results.Summary, error) {
	input := strings.TrimSpace(initialPrompt)
	switch {
	case strings.TrimSpace(sessionID) == "":
		return results.Summary{}, errors.NewValidationError("session ID must not be empty").WithField("session")
	case input == "":
		return results.Summary{}, errors.NewValidationError("initial prompt must not be empty").WithField("prompt")
	}

	logger := o.logger.WithSession(sessionID)
	start := o.clock.Now()
	deadline := start.Add(o.ceiling)

	// One actor re-creation per conversation, whether the engine
	// crashed mid-turn or the session vanished during a suspension.
	recoveries := 1
	turns := 0

	logger.Info("conversation starting",
		"mode", string(o.mode),
		"max_turns", o.maxTurns,
		"ceiling", o.ceiling)

	engineTurns, err := o.exchange(ctx, sessionID, input, 1, true, &recoveries, logger)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish(ctx, sessionID, results.ReasonCanceled, "", turns, start, logger), nil
		}
		return o.fail(ctx, sessionID, start, turns, err, logger)
	}
	turns++

	for {
		o.renderTurns(engineTurns)

		if o.mode == results.ModeAuto && results.HasMarker(engineText(engineTurns)) {
			return o.finish(ctx, sessionID, results.ReasonMarker, "", turns, start, logger), nil
		}
		if !o.clock.Now().Before(deadline) {
			detail := fmt.Sprintf("conversation exceeded %s", o.ceiling)
			return o.finish(ctx, sessionID, results.ReasonDeadline, detail, turns, start, logger), nil
		}
		if turns >= o.maxTurns {
			detail := fmt.Sprintf("reached the limit of %d turns", o.maxTurns)
			return o.finish(ctx, sessionID, results.ReasonMaxTurns, detail, turns, start, logger), nil
		}

		reply, err := o.prompter.Prompt(ctx, prompt.PromptSpec{
			SessionID: sessionID,
			Turn:      turns + 1,
			Question:  lastEngineText(engineTurns),
		})
		if err != nil {
			if errors.Is(err, errors.ErrCanceled) || ctx.Err() != nil {
				return o.finish(ctx, sessionID, results.ReasonCanceled, "", turns, start, logger), nil
			}
			return o.fail(ctx, sessionID, start, turns, err, logger)
		}

		reply = strings.TrimSpace(reply)
		if results.IsStopPhrase(reply, o.stopPhrases) {
			return o.finish(ctx, sessionID, results.ReasonCompleted, "", turns, start, logger), nil
		}
		if reply == "" {
			return o.finish(ctx, sessionID, results.ReasonEmptyInput, "", turns, start, logger), nil
		}

		o.renderTurn(actor.ConversationTurn{Role: actor.RoleHuman, Content: reply, Timestamp: o.clock.Now()})

		engineTurns, err = o.exchange(ctx, sessionID, reply, turns+1, false, &recoveries, logger)
		if err != nil {
			if ctx.Err() != nil {
				return o.finish(ctx, sessionID, results.ReasonCanceled, "", turns, start, logger), nil
			}
			return o.fail(ctx, sessionID, start, turns, err, logger)
		}
		turns++
	}
}

// exchange delivers one human input to the session's actor and returns
// the engine's response turns, recording the pair in the history store.
//
// The first exchange resolves through GetOrCreate so a missing or dead
// session gets a fresh actor, seeded from durable history and opened
// with input as its initial prompt. Later exchanges re-resolve by name
// and query; an actor that crashed or disappeared since the last
// suspension is rebuilt once per conversation via recover.
func (o *Orchestrator) exchange(ctx context.Context, sessionID, input string, turnNo int, first bool, recoveries *int, logger *logging.Logger) ([]actor.ConversationTurn, error) {
	began := o.clock.Now()
	turns, err := o.deliver(ctx, sessionID, input, first, recoveries, logger)
	o.publishTurn(sessionID, turnNo, began, err)
	return turns, err
}

func (o *Orchestrator) deliver(ctx context.Context, sessionID, input string, first bool, recoveries *int, logger *logging.Logger) ([]actor.ConversationTurn, error) {
	var act *actor.SessionActor

	if first {
		seed := o.loadSeed(ctx, sessionID, logger)
		res, err := o.registry.GetOrCreate(ctx, sessionID, registry.CreateOptions{
			InitialPrompt: input,
			Seed:          seed,
		})
		if err != nil {
			return nil, err
		}
		if res.Created {
			if res.Replaced {
				o.notice("previous engine session had ended; starting fresh with its history")
			}
			o.record(ctx, sessionID, input, res.ConnectTurns, logger)
			return res.ConnectTurns, nil
		}
		logger.Debug("joined existing session")
		act = res.Actor
	} else {
		var err error
		act, err = o.registry.Get(sessionID)
		if err != nil {
			if errors.IsNotFound(err) {
				// Swept or evicted while the conversation was
				// suspended.
				return o.recover(ctx, sessionID, input, recoveries, err, logger)
			}
			return nil, err
		}
	}

	turns, err := o.query(ctx, act, input)
	if err == nil {
		o.record(ctx, sessionID, input, turns, logger)
		return turns, nil
	}

	if errors.IsCrash(err) || errors.Is(err, errors.ErrActorDead) {
		o.bus.Publish(event.NewSessionCrashedEvent(sessionID, act.ExecutionID(), err.Error()))
		logger.Warn("engine failed mid-turn", "error", err)
		return o.recover(ctx, sessionID, input, recoveries, err, logger)
	}
	return nil, err
}

// recover rebuilds the session after its actor was lost and re-sends
// the input that went unanswered, prefixed so the replacement engine
// knows the conversation is being continued. It runs at most once per
// conversation; past that the original cause is returned.
func (o *Orchestrator) recover(ctx context.Context, sessionID, input string, recoveries *int, cause error, logger *logging.Logger) ([]actor.ConversationTurn, error) {
	_ = o.registry.Evict(sessionID)

	if *recoveries <= 0 {
		return nil, cause
	}
	*recoveries--

	o.notice("engine failed, retrying with a fresh session")
	logger.Info("recovering session", "cause", cause)

	resume := resumePrefix + input
	res, err := o.registry.GetOrCreate(ctx, sessionID, registry.CreateOptions{
		InitialPrompt: resume,
		Seed:          o.loadSeed(ctx, sessionID, logger),
	})
	if err != nil {
		return nil, err
	}
	if res.Created {
		o.record(ctx, sessionID, resume, res.ConnectTurns, logger)
		return res.ConnectTurns, nil
	}

	// Another invocation rebuilt the session first; deliver through
	// its actor.
	turns, err := o.query(ctx, res.Actor, input)
	if err != nil {
		return nil, err
	}
	o.record(ctx, sessionID, input, turns, logger)
	return turns, nil
}

// query sends one turn to the actor, absorbing a short burst of
// ActorBusy from a concurrent invocation before giving up.
func (o *Orchestrator) query(ctx context.Context, act *actor.SessionActor, input string) ([]actor.ConversationTurn, error) {
	for attempt := 1; ; attempt++ {
		turns, err := act.Query(ctx, input)
		if err == nil || !errors.IsBusy(err) || attempt == busyAttempts {
			return turns, err
		}
		o.logger.Debug("actor busy, retrying", "attempt", attempt)
		o.clock.Sleep(o.busyDelay)
	}
}

// finish evicts the session and assembles the ending Summary: outcome,
// durable transcript, and any files collected from the work directory.
func (o *Orchestrator) finish(ctx context.Context, sessionID string, reason results.Reason, detail string, turns int, start time.Time, logger *logging.Logger) results.Summary {
	if err := o.registry.Evict(sessionID); err != nil {
		logger.Warn("eviction failed", "error", err)
	}

	sum := results.Summary{
		SessionID: sessionID,
		Reason:    reason,
		Detail:    detail,
		Turns:     turns,
		EndedAt:   o.clock.Now(),
	}
	sum.Duration = sum.EndedAt.Sub(start)

	// The transcript and collected files still matter when ctx was
	// canceled, so the load runs detached from it.
	transcript, err := o.store.Load(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		logger.Warn("transcript load failed", "error", err)
	} else {
		sum.Transcript = transcript
	}

	sum.Files = o.collect(sessionID, logger)

	o.notice("%s", reason.Status())
	logger.Info("conversation ended",
		"reason", string(reason),
		"turns", turns,
		"duration", sum.Duration)
	return sum
}

// fail is finish for error endings: the summary reports the failure and
// the cause is handed back to the caller.
func (o *Orchestrator) fail(ctx context.Context, sessionID string, start time.Time, turns int, cause error, logger *logging.Logger) (results.Summary, error) {
	if o.renderer != nil {
		o.renderer.Error(cause)
	}
	logger.Error("conversation failed", "error", cause)
	sum := o.finish(ctx, sessionID, results.ReasonCrashed, cause.Error(), turns, start, logger)
	return sum, cause
}

// loadSeed fetches the session's durable history for re-seeding a
// replacement actor. Best effort: a failed load means starting without
// context, not failing the conversation.
func (o *Orchestrator) loadSeed(ctx context.Context, sessionID string, logger *logging.Logger) []actor.ConversationTurn {
	seed, err := o.store.Load(ctx, sessionID)
	if err != nil {
		logger.Warn("history load failed", "error", err)
		return nil
	}
	return seed
}

// record appends one completed exchange, the human input plus the
// engine's response turns, to the durable history store.
func (o *Orchestrator) record(ctx context.Context, sessionID, humanText string, engineTurns []actor.ConversationTurn, logger *logging.Logger) {
	turns := make([]actor.ConversationTurn, 0, len(engineTurns)+1)
	turns = append(turns, actor.ConversationTurn{
		Role:      actor.RoleHuman,
		Content:   humanText,
		Timestamp: o.clock.Now(),
	})
	turns = append(turns, engineTurns...)
	if err := o.store.Append(ctx, sessionID, turns); err != nil {
		logger.Warn("history append failed", "error", err)
	}
}

// collect harvests files from the engine's working directory into the
// session's results directory.
func (o *Orchestrator) collect(sessionID string, logger *logging.Logger) []string {
	if o.collector == nil || o.workDir == "" || o.resultsDir == "" {
		return nil
	}
	files, err := o.collector.Collect(o.workDir, filepath.Join(o.resultsDir, sessionID))
	if err != nil {
		logger.Warn("file collection failed", "error", err)
		return nil
	}
	return files
}

func (o *Orchestrator) publishTurn(sessionID string, turnNo int, began time.Time, err error) {
	elapsed := o.clock.Now().Sub(began)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	o.bus.Publish(event.NewTurnCompletedEvent(sessionID, turnNo, elapsed, err == nil, msg))
}

func (o *Orchestrator) renderTurns(turns []actor.ConversationTurn) {
	if o.renderer != nil {
		o.renderer.Turns(turns)
	}
}

func (o *Orchestrator) renderTurn(t actor.ConversationTurn) {
	if o.renderer != nil {
		o.renderer.Turn(t)
	}
}

func (o *Orchestrator) notice(format string, args ...any) {
	if o.renderer != nil {
		o.renderer.Notice(format, args...)
	}
}

// engineText joins the response text of one exchange for marker
// detection.
func engineText(turns []actor.ConversationTurn) string {
	var parts []string
	for _, t := range turns {
		if t.Role == actor.RoleEngine && strings.TrimSpace(t.Content) != "" {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// lastEngineText is the most recent visible engine message, shown to
// the human alongside the input prompt.
func lastEngineText(turns []actor.ConversationTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == actor.RoleEngine && strings.TrimSpace(turns[i].Content) != "" {
			return turns[i].Content
		}
	}
	return ""
}
