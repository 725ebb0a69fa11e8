package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/parley/internal/actor"
	"github.com/Iron-Ham/parley/internal/config"
	"github.com/Iron-Ham/parley/internal/history"
	"github.com/Iron-Ham/parley/internal/logging"
	"github.com/Iron-Ham/parley/internal/prompt"
	"github.com/Iron-Ham/parley/internal/results"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// seedHistory writes one stored exchange whose last turn carries the
// given timestamp.
func seedHistory(t *testing.T, dir, sessionID string, last time.Time) {
	t.Helper()

	store, err := history.Open(history.Options{Backend: "file", Dir: dir})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	turns := []actor.ConversationTurn{
		{Role: actor.RoleHuman, Content: "hello", Timestamp: last.Add(-time.Minute)},
		{Role: actor.RoleEngine, Content: "hi there", Timestamp: last},
	}
	if err := store.Append(context.Background(), sessionID, turns); err != nil {
		t.Fatalf("failed to seed session %s: %v", sessionID, err)
	}
}

// storedSessions lists the session IDs the file store under dir holds.
func storedSessions(t *testing.T, dir string) []string {
	t.Helper()

	store, err := history.Open(history.Options{Backend: "file", Dir: dir})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ids, err := store.Sessions(context.Background())
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	return ids
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "parley" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "parley")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"query", "sessions", "config", "logs"}
	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestQuerySession(t *testing.T) {
	defer func() { queryNew = false }()

	t.Run("explicit session ID", func(t *testing.T) {
		queryNew = false
		id, initialPrompt, err := querySession([]string{"abc123", "fix", "the", "bug"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "abc123" {
			t.Errorf("session ID = %q, want %q", id, "abc123")
		}
		if initialPrompt != "fix the bug" {
			t.Errorf("prompt = %q, want %q", initialPrompt, "fix the bug")
		}
	})

	t.Run("prompt required without --new", func(t *testing.T) {
		queryNew = false
		if _, _, err := querySession([]string{"abc123"}); err == nil {
			t.Error("expected an error when only a session ID is given")
		}
	})

	t.Run("--new generates a session ID", func(t *testing.T) {
		queryNew = true
		id, initialPrompt, err := querySession([]string{"fix", "the", "bug"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id == "" {
			t.Error("expected a generated session ID")
		}
		if len(id) != 36 {
			t.Errorf("generated ID %q is not a UUID", id)
		}
		if initialPrompt != "fix the bug" {
			t.Errorf("prompt = %q, want %q", initialPrompt, "fix the bug")
		}
	})
}

func TestQueryCompletionMode(t *testing.T) {
	defer func() { queryMode = "" }()
	cfg := config.Default()

	t.Run("config default applies", func(t *testing.T) {
		queryMode = ""
		mode, err := queryCompletionMode(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mode != results.ModeAuto {
			t.Errorf("mode = %q, want %q", mode, results.ModeAuto)
		}
	})

	t.Run("flag overrides config", func(t *testing.T) {
		queryMode = "manual"
		mode, err := queryCompletionMode(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mode != results.ModeManual {
			t.Errorf("mode = %q, want %q", mode, results.ModeManual)
		}
	})

	t.Run("aliases are accepted", func(t *testing.T) {
		queryMode = "continuous"
		mode, err := queryCompletionMode(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mode != results.ModeManual {
			t.Errorf("mode = %q, want %q", mode, results.ModeManual)
		}
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		queryMode = "bogus"
		if _, err := queryCompletionMode(cfg); err == nil {
			t.Error("expected an error for an unknown mode")
		}
	})
}

func TestQueryPrompter(t *testing.T) {
	logger := logging.NopLogger()

	t.Run("terminal mode", func(t *testing.T) {
		cfg := config.Default()
		cfg.Prompt.Mode = "terminal"
		p, err := queryPrompter(cfg, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*prompt.TerminalPrompter); !ok {
			t.Errorf("prompter = %T, want *prompt.TerminalPrompter", p)
		}
	})

	t.Run("empty mode means terminal", func(t *testing.T) {
		cfg := config.Default()
		cfg.Prompt.Mode = ""
		p, err := queryPrompter(cfg, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*prompt.TerminalPrompter); !ok {
			t.Errorf("prompter = %T, want *prompt.TerminalPrompter", p)
		}
	})

	t.Run("file mode", func(t *testing.T) {
		cfg := config.Default()
		cfg.Prompt.Mode = "file"
		cfg.Prompt.ExchangeDir = t.TempDir()
		p, err := queryPrompter(cfg, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*prompt.FilePrompter); !ok {
			t.Errorf("prompter = %T, want *prompt.FilePrompter", p)
		}
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		cfg := config.Default()
		cfg.Prompt.Mode = "smoke-signal"
		if _, err := queryPrompter(cfg, logger); err == nil {
			t.Error("expected an error for an unknown prompt mode")
		}
	})
}

func TestValidateConfigString(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"engine.binary", "claude-dev", false},
		{"engine.permission_mode", "plan", false},
		{"engine.permission_mode", "yolo", true},
		{"orchestrator.completion_mode", "manual", false},
		{"orchestrator.completion_mode", "sometimes", true},
		{"history.backend", "redis", false},
		{"history.backend", "sqlite", true},
		{"prompt.mode", "file", false},
		{"prompt.mode", "carrier-pigeon", true},
		{"logging.level", "debug", false},
		{"logging.level", "DEBUG", false}, // Levels are case-insensitive
		{"logging.level", "verbose", true},
	}

	for _, tt := range tests {
		err := validateConfigString(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateConfigString(%q, %q) error = %v, wantErr %v",
				tt.key, tt.value, err, tt.wantErr)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()

	sum := results.Summary{
		SessionID: "s1",
		Reason:    results.ReasonCompleted,
		Turns:     3,
	}

	path, err := writeSummary(dir, sum)
	if err != nil {
		t.Fatalf("writeSummary failed: %v", err)
	}

	want := filepath.Join(dir, "s1", "summary.md")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read summary: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "# Task Completed") {
		t.Error("summary missing the outcome heading")
	}
	if !strings.Contains(text, "s1") {
		t.Error("summary missing the session ID")
	}
}

func TestFormatLogEntry(t *testing.T) {
	entry := logging.LogEntry{
		Timestamp: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		Level:     logging.LevelInfo,
		Message:   "conversation starting",
		SessionID: "abc123",
		Component: "orchestrator",
		Attrs:     map[string]any{"turns": 3},
	}

	line := formatLogEntry(entry)

	for _, want := range []string{
		"conversation starting",
		"session=abc123",
		"component=orchestrator",
		"turns",
		"[INFO]",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted entry missing %q: %s", want, line)
		}
	}
}

func TestSessionsCommands(t *testing.T) {
	dir := t.TempDir()
	defer func() {
		viper.Reset()
		config.SetDefaults()
	}()

	// Point the commands at a file store so the records survive between
	// invocations, the way separate CLI runs would see them.
	reset := func() {
		viper.Reset()
		viper.Set("history.backend", "file")
		viper.Set("history.dir", dir)
	}

	t.Run("evict removes the stored record", func(t *testing.T) {
		reset()
		seedHistory(t, dir, "evict-me", time.Now())

		if _, err := executeCommand(rootCmd, "sessions", "evict", "evict-me"); err != nil {
			t.Fatalf("evict failed: %v", err)
		}
		if slices.Contains(storedSessions(t, dir), "evict-me") {
			t.Error("session still stored after evict")
		}
	})

	t.Run("evict of an unknown session succeeds", func(t *testing.T) {
		reset()
		if _, err := executeCommand(rootCmd, "sessions", "evict", "ghost"); err != nil {
			t.Fatalf("evict of unknown session failed: %v", err)
		}
	})

	t.Run("sweep clears only idle sessions", func(t *testing.T) {
		reset()
		defer func() { sweepOlderThan = "" }()
		seedHistory(t, dir, "stale", time.Now().Add(-2*time.Hour))
		seedHistory(t, dir, "fresh", time.Now())

		if _, err := executeCommand(rootCmd, "sessions", "sweep", "--older-than", "1h"); err != nil {
			t.Fatalf("sweep failed: %v", err)
		}

		ids := storedSessions(t, dir)
		if slices.Contains(ids, "stale") {
			t.Error("idle session survived the sweep")
		}
		if !slices.Contains(ids, "fresh") {
			t.Error("active session was swept")
		}
	})

	t.Run("list succeeds with stored sessions", func(t *testing.T) {
		reset()
		seedHistory(t, dir, "listed", time.Now())

		if _, err := executeCommand(rootCmd, "sessions", "list"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
	})
}
