package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Iron-Ham/parley/internal/actor"
)

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces all keys. Defaults to "parley:history:".
	Prefix string

	// TTL expires a session's history after inactivity. Zero keeps
	// history forever.
	TTL time.Duration
}

// RedisStore persists each session's history as a redis list, one JSON
// entry per turn, plus a set indexing the known session IDs. Suited to
// front ends that are rescheduled across hosts between turns.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store. The connection is
// established lazily on first use.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "parley:history:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}
}

// Append pushes turns onto the end of the session's list and refreshes
// its TTL.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns []actor.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		raw, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, raw)
	}

	key := s.sessionKey(sessionID)
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set history TTL: %w", err)
		}
	}
	if err := s.client.SAdd(ctx, s.indexKey(), sessionID).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// Load returns a session's full history. An unknown session yields a
// nil slice and no error.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]actor.ConversationTurn, error) {
	raw, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	turns := make([]actor.ConversationTurn, 0, len(raw))
	for _, entry := range raw {
		var turn actor.ConversationTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("corrupt history entry for session %s: %w", sessionID, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear deletes the session's history and removes it from the index.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if err := s.client.SRem(ctx, s.indexKey(), sessionID).Err(); err != nil {
		return fmt.Errorf("failed to update session index: %w", err)
	}
	return nil
}

// Sessions returns the indexed session IDs, lexically sorted.
func (s *RedisStore) Sessions(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping checks the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}
