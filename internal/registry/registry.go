package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/parley/internal/actor"
	"github.com/Iron-Ham/parley/internal/clock"
	"github.com/Iron-Ham/parley/internal/engine"
	"github.com/Iron-Ham/parley/internal/errors"
	"github.com/Iron-Ham/parley/internal/event"
	"github.com/Iron-Ham/parley/internal/logging"
)

const (
	// DefaultIdleTimeout is how long a session may sit between turns
	// before the sweeper reclaims it.
	DefaultIdleTimeout = 11 * time.Minute

	// DefaultSweepInterval is how often the background sweeper runs.
	DefaultSweepInterval = time.Minute

	// evictParallelism bounds concurrent disconnects during sweeps and
	// shutdown.
	evictParallelism = 4
)

// Eviction reasons recorded on session.evicted events.
const (
	ReasonExplicit = "explicit"
	ReasonIdle     = "idle"
	ReasonDead     = "dead"
	ReasonShutdown = "shutdown"
)

// Config configures a Registry.
type Config struct {
	// Driver launches engine subprocesses for new actors.
	Driver engine.Driver

	// StartOptions is the base spawn configuration shared by every
	// actor. Per-session fields (the initial prompt) are filled in at
	// creation time.
	StartOptions engine.StartOptions

	// TurnTimeout is the per-turn response deadline passed to actors.
	TurnTimeout time.Duration

	// MaxActors caps the number of simultaneously live actors. Zero
	// means unlimited.
	MaxActors int

	// IdleTimeout is the default threshold used by the background
	// sweeper. Zero uses DefaultIdleTimeout.
	IdleTimeout time.Duration

	// SweepInterval is the background sweeper period. Zero uses
	// DefaultSweepInterval.
	SweepInterval time.Duration

	// Clock supplies time. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives registry logs. Nil discards them.
	Logger *logging.Logger

	// Bus receives lifecycle events. Nil creates a private bus,
	// reachable via Bus().
	Bus *event.Bus
}

// CreateOptions carries the per-session inputs to GetOrCreate.
type CreateOptions struct {
	// InitialPrompt is the first human turn, delivered by Connect when a
	// fresh actor is constructed. Ignored when a live actor exists.
	InitialPrompt string

	// Seed preloads prior conversation history onto a freshly
	// constructed actor, letting a replacement for a crashed session
	// keep its context. Ignored when a live actor exists.
	Seed []actor.ConversationTurn
}

// Resolution is the outcome of GetOrCreate.
type Resolution struct {
	// Actor is the live actor for the session.
	Actor *actor.SessionActor

	// ConnectTurns holds the engine's first response when this call
	// constructed and connected a fresh actor. Nil when an existing
	// actor was returned.
	ConnectTurns []actor.ConversationTurn

	// Created reports whether this call constructed the actor.
	Created bool

	// Replaced reports whether the construction replaced an actor that
	// was found dead.
	Replaced bool
}

// SessionInfo is a point-in-time view of one registered session.
type SessionInfo struct {
	SessionID    string
	ExecutionID  string
	Status       actor.Status
	LastActivity time.Time
	CreatedAt    time.Time
	Turns        int
}

// entry is the registry's bookkeeping for one session.
type entry struct {
	actor     *actor.SessionActor
	createdAt time.Time
}

// Registry is the concurrency-safe directory of session actors. It owns
// the only shared mutable map in the system: all actor creation,
// lookup, and teardown goes through it.
//
// Creation for one session ID is serialized by a per-key lock, so
// exactly one actor is ever constructed per ID even under concurrent
// GetOrCreate calls, while unrelated sessions never contend.
type Registry struct {
	driver      engine.Driver
	startOpts   engine.StartOptions
	turnTimeout time.Duration
	maxActors   int
	idleTimeout time.Duration
	sweepEvery  time.Duration
	clock       clock.Clock
	baseLogger  *logging.Logger
	logger      *logging.Logger
	bus         *event.Bus

	keys *keyedMutex

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	sweepOnce    sync.Once
	sweepRunning bool
	sweepStop    chan struct{}
	sweepDone    chan struct{}
}

// New creates an empty registry. The background sweeper does not run
// until StartSweeper.
func New(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Bus == nil {
		cfg.Bus = event.NewBus()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	return &Registry{
		driver:      cfg.Driver,
		startOpts:   cfg.StartOptions,
		turnTimeout: cfg.TurnTimeout,
		maxActors:   cfg.MaxActors,
		idleTimeout: cfg.IdleTimeout,
		sweepEvery:  cfg.SweepInterval,
		clock:       cfg.Clock,
		baseLogger:  cfg.Logger,
		logger:      cfg.Logger.WithComponent("registry"),
		bus:         cfg.Bus,
		keys:        newKeyedMutex(),
		entries:     make(map[string]*entry),
		sweepStop:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}
}

// Bus returns the registry's event bus.
func (r *Registry) Bus() *event.Bus { return r.bus }

// IdleTimeout returns the configured idle threshold.
func (r *Registry) IdleTimeout() time.Duration { return r.idleTimeout }

// GetOrCreate returns the live actor for sessionID, constructing and
// connecting a fresh one when none exists. Calls for the same session
// ID are serialized: under concurrency exactly one actor is constructed
// and every caller gets it. An existing live actor is returned as-is
// without re-invoking Connect.
//
// A previous actor observed Dead is treated as absent and transparently
// replaced; opts.Seed lets the caller carry prior history onto the
// replacement.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID string, opts CreateOptions) (Resolution, error) {
	if sessionID == "" {
		return Resolution{}, errors.NewValidationError("session id is required")
	}

	unlock := r.keys.lock(sessionID)
	defer unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Resolution{}, errors.NewSessionError("registry is closed", errors.ErrRegistryClosed).
			WithSessionID(sessionID)
	}

	replaced := false
	if e, ok := r.entries[sessionID]; ok {
		if e.actor.Status().Alive() {
			r.mu.Unlock()
			return Resolution{Actor: e.actor}, nil
		}
		// Dead actor observed lazily: drop it and build a replacement.
		delete(r.entries, sessionID)
		replaced = true
	}

	if r.maxActors > 0 && len(r.entries) >= r.maxActors {
		r.mu.Unlock()
		return Resolution{}, errors.NewSessionError("live actor limit reached", errors.ErrCapacityExceeded).
			WithSessionID(sessionID)
	}

	act := actor.New(actor.Config{
		SessionID:   sessionID,
		Driver:      r.driver,
		Start:       r.startOpts,
		TurnTimeout: r.turnTimeout,
		Clock:       r.clock,
		Logger:      r.baseLogger,
	})
	e := &entry{actor: act, createdAt: r.clock.Now()}
	r.entries[sessionID] = e
	r.mu.Unlock()

	if replaced {
		r.bus.Publish(event.NewSessionEvictedEvent(sessionID, ReasonDead))
	}

	if len(opts.Seed) > 0 {
		if err := act.Seed(opts.Seed); err != nil {
			r.removeEntry(sessionID, e)
			return Resolution{}, err
		}
	}

	turns, err := act.Connect(ctx, opts.InitialPrompt)
	if err != nil {
		r.removeEntry(sessionID, e)
		return Resolution{}, err
	}

	// An unconditional Evict may have raced the connect; its Disconnect
	// already tore the actor down, so just report absence.
	r.mu.Lock()
	current, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok || current != e {
		return Resolution{}, errors.NewNotFoundError("session", sessionID)
	}

	r.logger.Info("session created",
		"session_id", sessionID,
		"execution_id", act.ExecutionID(),
		"replacement", replaced)
	r.bus.Publish(event.NewSessionCreatedEvent(sessionID, act.ExecutionID(), replaced))

	return Resolution{Actor: act, ConnectTurns: turns, Created: true, Replaced: replaced}, nil
}

// Get resolves an existing live actor without creating one. A session
// that is absent, or whose actor is found dead, yields an error
// matching errors.ErrNotFound; the dead entry is dropped on the way.
func (r *Registry) Get(sessionID string) (*actor.SessionActor, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.NewSessionError("registry is closed", errors.ErrRegistryClosed).
			WithSessionID(sessionID)
	}
	e, ok := r.entries[sessionID]
	r.mu.Unlock()

	if !ok {
		return nil, errors.NewNotFoundError("session", sessionID)
	}
	if !e.actor.Status().Alive() {
		r.removeEntry(sessionID, e)
		r.logger.Info("dead session dropped", "session_id", sessionID)
		r.bus.Publish(event.NewSessionEvictedEvent(sessionID, ReasonDead))
		return nil, errors.NewNotFoundError("session", sessionID)
	}
	return e.actor, nil
}

// Evict disconnects the session's actor and removes its entry.
// Idempotent: evicting an absent session is a no-op. Unconditional: an
// in-flight query on the actor observes the engine's death rather than
// blocking eviction.
func (r *Registry) Evict(sessionID string) error {
	r.evict(sessionID, ReasonExplicit)
	return nil
}

// evict removes the entry and tears down its actor, reporting whether
// this call did the removal.
func (r *Registry) evict(sessionID, reason string) bool {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	if err := e.actor.Disconnect(); err != nil {
		r.logger.Warn("disconnect failed during eviction",
			"session_id", sessionID,
			"error", err.Error())
	}
	r.logger.Info("session evicted", "session_id", sessionID, "reason", reason)
	r.bus.Publish(event.NewSessionEvictedEvent(sessionID, reason))
	return true
}

// SweepIdle evicts every session idle past the threshold, plus any
// entry whose actor died without being observed. This is the only
// reclaimer of idle sessions. A non-positive threshold uses the
// configured idle timeout. Returns the evicted session IDs, sorted.
func (r *Registry) SweepIdle(idleThreshold time.Duration) []string {
	if idleThreshold <= 0 {
		idleThreshold = r.idleTimeout
	}
	now := r.clock.Now()

	type candidate struct {
		id     string
		reason string
	}

	r.mu.Lock()
	scanned := len(r.entries)
	var candidates []candidate
	for id, e := range r.entries {
		switch {
		case !e.actor.Status().Alive():
			candidates = append(candidates, candidate{id: id, reason: ReasonDead})
		case e.actor.CheckIdle(now, idleThreshold):
			candidates = append(candidates, candidate{id: id, reason: ReasonIdle})
		}
	}
	r.mu.Unlock()

	var (
		evictedMu sync.Mutex
		evicted   []string
	)
	p := pool.New().WithMaxGoroutines(evictParallelism)
	for _, c := range candidates {
		p.Go(func() {
			if r.evict(c.id, c.reason) {
				evictedMu.Lock()
				evicted = append(evicted, c.id)
				evictedMu.Unlock()
			}
		})
	}
	p.Wait()

	sort.Strings(evicted)
	r.logger.Debug("idle sweep completed", "scanned", scanned, "evicted", len(evicted))
	r.bus.Publish(event.NewSweepCompletedEvent(scanned, evicted))
	return evicted
}

// StartSweeper launches the background sweep loop. Starting twice is a
// no-op; Close stops the loop.
func (r *Registry) StartSweeper() {
	r.sweepOnce.Do(func() {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.sweepRunning = true
		r.mu.Unlock()

		go r.sweepLoop()
	})
}

func (r *Registry) sweepLoop() {
	defer close(r.sweepDone)

	ticker := r.clock.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	r.logger.Debug("sweeper started", "interval", r.sweepEvery.String())
	for {
		select {
		case <-ticker.C:
			r.SweepIdle(r.idleTimeout)
		case <-r.sweepStop:
			return
		}
	}
}

// Sessions returns the live session IDs, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns a point-in-time view of every registered session,
// sorted by session ID.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.Lock()
	entries := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = e
	}
	r.mu.Unlock()

	infos := make([]SessionInfo, 0, len(entries))
	for id, e := range entries {
		infos = append(infos, SessionInfo{
			SessionID:    id,
			ExecutionID:  e.actor.ExecutionID(),
			Status:       e.actor.Status(),
			LastActivity: e.actor.LastActivity(),
			CreatedAt:    e.createdAt,
			Turns:        len(e.actor.History()),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	return infos
}

// Close stops the sweeper, disconnects every actor in parallel, and
// rejects further registry operations. Safe to call repeatedly.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	remaining := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		remaining[id] = e
	}
	r.entries = make(map[string]*entry)
	sweeping := r.sweepRunning
	r.mu.Unlock()

	close(r.sweepStop)
	if sweeping {
		<-r.sweepDone
	}

	p := pool.New().WithMaxGoroutines(evictParallelism)
	for id, e := range remaining {
		p.Go(func() {
			if err := e.actor.Disconnect(); err != nil {
				r.logger.Warn("disconnect failed during shutdown",
					"session_id", id,
					"error", err.Error())
			}
			r.bus.Publish(event.NewSessionEvictedEvent(id, ReasonShutdown))
		})
	}
	p.Wait()

	r.logger.Info("registry closed", "sessions", len(remaining))
	return nil
}

// removeEntry deletes the session's entry only if it is still the one
// this caller created, so a concurrent replacement is never clobbered.
func (r *Registry) removeEntry(sessionID string, e *entry) {
	r.mu.Lock()
	if cur, ok := r.entries[sessionID]; ok && cur == e {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()
}
