package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/parley/internal/actor"
)

func mkTurn(role actor.Role, content string) actor.ConversationTurn {
	return actor.ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// openBackends builds one store per local backend so the behavioral
// tests run identically against each.
func openBackends(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestStoreBehavior(t *testing.T) {
	ctx := context.Background()

	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("append and load preserve order", func(t *testing.T) {
				turns := []actor.ConversationTurn{
					mkTurn(actor.RoleHuman, "hello"),
					mkTurn(actor.RoleEngine, "hi there"),
				}
				if err := store.Append(ctx, "s1", turns); err != nil {
					t.Fatalf("Append failed: %v", err)
				}
				if err := store.Append(ctx, "s1", []actor.ConversationTurn{mkTurn(actor.RoleHuman, "continue")}); err != nil {
					t.Fatalf("second Append failed: %v", err)
				}

				got, err := store.Load(ctx, "s1")
				if err != nil {
					t.Fatalf("Load failed: %v", err)
				}
				want := []string{"hello", "hi there", "continue"}
				if len(got) != len(want) {
					t.Fatalf("loaded %d turns, want %d", len(got), len(want))
				}
				for i, content := range want {
					if got[i].Content != content {
						t.Errorf("turn[%d].Content = %q, want %q", i, got[i].Content, content)
					}
				}
				if got[0].Role != actor.RoleHuman || got[1].Role != actor.RoleEngine {
					t.Errorf("roles not preserved: %+v", got[:2])
				}
			})

			t.Run("unknown session loads empty", func(t *testing.T) {
				got, err := store.Load(ctx, "never-seen")
				if err != nil {
					t.Fatalf("Load failed: %v", err)
				}
				if len(got) != 0 {
					t.Errorf("loaded %d turns for unknown session, want 0", len(got))
				}
			})

			t.Run("appending no turns is a no-op", func(t *testing.T) {
				if err := store.Append(ctx, "empty-append", nil); err != nil {
					t.Fatalf("Append failed: %v", err)
				}
				ids, err := store.Sessions(ctx)
				if err != nil {
					t.Fatalf("Sessions failed: %v", err)
				}
				for _, id := range ids {
					if id == "empty-append" {
						t.Error("empty append created a session entry")
					}
				}
			})

			t.Run("sessions are sorted", func(t *testing.T) {
				for _, id := range []string{"s3", "s2"} {
					if err := store.Append(ctx, id, []actor.ConversationTurn{mkTurn(actor.RoleHuman, "x")}); err != nil {
						t.Fatalf("Append failed: %v", err)
					}
				}

				ids, err := store.Sessions(ctx)
				if err != nil {
					t.Fatalf("Sessions failed: %v", err)
				}
				for i := 1; i < len(ids); i++ {
					if ids[i-1] > ids[i] {
						t.Errorf("sessions not sorted: %v", ids)
					}
				}
			})

			t.Run("clear removes and is idempotent", func(t *testing.T) {
				if err := store.Append(ctx, "doomed", []actor.ConversationTurn{mkTurn(actor.RoleHuman, "x")}); err != nil {
					t.Fatalf("Append failed: %v", err)
				}
				if err := store.Clear(ctx, "doomed"); err != nil {
					t.Fatalf("Clear failed: %v", err)
				}
				if err := store.Clear(ctx, "doomed"); err != nil {
					t.Fatalf("second Clear failed: %v", err)
				}
				got, err := store.Load(ctx, "doomed")
				if err != nil {
					t.Fatalf("Load failed: %v", err)
				}
				if len(got) != 0 {
					t.Errorf("cleared session still has %d turns", len(got))
				}
			})
		})
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Append(ctx, "s1", []actor.ConversationTurn{mkTurn(actor.RoleHuman, "original")}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	loaded[0].Content = "mutated"

	again, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again[0].Content != "original" {
		t.Errorf("caller mutation leaked into the store: %q", again[0].Content)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a directory", func(t *testing.T) {
		if _, err := NewFileStore(""); err == nil {
			t.Error("NewFileStore(\"\") succeeded, want error")
		}
	})

	t.Run("writes valid json files", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir)
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}

		if err := store.Append(ctx, "s1", []actor.ConversationTurn{mkTurn(actor.RoleHuman, "hello")}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "s1.json"))
		if err != nil {
			t.Fatalf("history file not written: %v", err)
		}
		var turns []actor.ConversationTurn
		if err := json.Unmarshal(data, &turns); err != nil {
			t.Fatalf("history file is not valid JSON: %v", err)
		}
		if len(turns) != 1 || turns[0].Content != "hello" {
			t.Errorf("file contents = %+v", turns)
		}
	})

	t.Run("escapes hostile session ids", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir)
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}

		id := "tenant/42 conv"
		if err := store.Append(ctx, id, []actor.ConversationTurn{mkTurn(actor.RoleHuman, "hi")}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		// The ID must not have produced a subdirectory.
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 || entries[0].IsDir() {
			t.Fatalf("unexpected directory layout: %v", entries)
		}

		ids, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != id {
			t.Errorf("Sessions = %v, want [%q]", ids, id)
		}
	})

	t.Run("corrupt file surfaces an error", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir)
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}

		if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
			t.Fatalf("writing corrupt file: %v", err)
		}
		if _, err := store.Load(ctx, "bad"); err == nil {
			t.Error("Load of corrupt file succeeded, want error")
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir)
		if err != nil {
			t.Fatalf("NewFileStore failed: %v", err)
		}

		for i := 0; i < 5; i++ {
			turn := mkTurn(actor.RoleHuman, fmt.Sprintf("turn-%d", i))
			if err := store.Append(ctx, "s1", []actor.ConversationTurn{turn}); err != nil {
				t.Fatalf("Append %d failed: %v", i, err)
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("directory has %d entries, want 1: %v", len(entries), entries)
		}
	})
}

// newTestRedisStore connects to the redis named by PARLEY_TEST_REDIS_ADDR,
// skipping when no server is available. Keys are namespaced per run and
// cleaned up afterwards.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("PARLEY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PARLEY_TEST_REDIS_ADDR not set; skipping redis store tests")
	}

	store := NewRedisStore(RedisConfig{
		Addr:   addr,
		Prefix: fmt.Sprintf("parley-test:%d:", time.Now().UnixNano()),
		TTL:    time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		ids, _ := store.Sessions(ctx)
		for _, id := range ids {
			_ = store.Clear(ctx, id)
		}
		_ = store.Close()
	})
	return store
}

func TestRedisStore(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		turns := []actor.ConversationTurn{
			mkTurn(actor.RoleHuman, "hello"),
			mkTurn(actor.RoleEngine, "hi there"),
		}
		if err := store.Append(ctx, "s1", turns); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		got, err := store.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got) != 2 || got[0].Content != "hello" || got[1].Content != "hi there" {
			t.Errorf("loaded turns = %+v", got)
		}
	})

	t.Run("index tracks sessions", func(t *testing.T) {
		if err := store.Append(ctx, "s2", []actor.ConversationTurn{mkTurn(actor.RoleHuman, "x")}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		ids, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions failed: %v", err)
		}
		found := false
		for _, id := range ids {
			if id == "s2" {
				found = true
			}
		}
		if !found {
			t.Errorf("Sessions = %v, missing s2", ids)
		}

		if err := store.Clear(ctx, "s2"); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		ids, err = store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions after Clear failed: %v", err)
		}
		for _, id := range ids {
			if id == "s2" {
				t.Errorf("cleared session still indexed: %v", ids)
			}
		}
	})
}

func TestOpen(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "default is memory", opts: Options{}},
		{name: "memory", opts: Options{Backend: BackendMemory}},
		{name: "file", opts: Options{Backend: BackendFile, Dir: t.TempDir()}},
		{name: "redis", opts: Options{Backend: BackendRedis}},
		{name: "unknown backend", opts: Options{Backend: "etcd"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Error("Open succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if store == nil {
				t.Fatal("Open returned nil store")
			}
			_ = store.Close()
		})
	}
}
