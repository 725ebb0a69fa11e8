package history

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/parley/internal/actor"
	"github.com/Iron-Ham/parley/internal/errors"
)

// Supported storage backends.
const (
	// BackendMemory keeps history in process memory. It is lost on exit.
	BackendMemory = "memory"

	// BackendFile stores one JSON file per session under a directory.
	BackendFile = "file"

	// BackendRedis stores history in Redis lists with an optional TTL.
	BackendRedis = "redis"
)

// Store is the durable conversation log. The orchestrator appends every
// exchanged turn and re-seeds replacement actors from it after a crash;
// the registry itself never persists history.
//
// Implementations must tolerate unknown session IDs: Load returns an
// empty history and Clear is a no-op.
type Store interface {
	// Append adds turns to the end of a session's history.
	Append(ctx context.Context, sessionID string, turns []actor.ConversationTurn) error

	// Load returns a session's full history in append order. A session
	// with no recorded history yields a nil slice and no error.
	Load(ctx context.Context, sessionID string) ([]actor.ConversationTurn, error)

	// Clear removes a session's history. Idempotent.
	Clear(ctx context.Context, sessionID string) error

	// Sessions returns the IDs with recorded history, lexically sorted.
	Sessions(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is one of BackendMemory, BackendFile, BackendRedis. Empty
	// selects memory.
	Backend string

	// Dir is the storage directory for the file backend.
	Dir string

	// Redis configures the redis backend.
	Redis RedisConfig
}

// Open constructs the store selected by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(opts.Dir)
	case BackendRedis:
		return NewRedisStore(opts.Redis), nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown history backend %q", opts.Backend))
	}
}
