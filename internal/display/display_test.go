package display

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/parley/internal/actor"
)

func turn(role actor.Role, tag, content string) actor.ConversationTurn {
	return actor.ConversationTurn{
		Role:      role,
		Tag:       tag,
		Content:   content,
		Timestamp: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestRendererPlain(t *testing.T) {
	t.Run("labels human and engine turns", func(t *testing.T) {
		var buf bytes.Buffer
		r := New(&buf, Options{})

		r.Turns([]actor.ConversationTurn{
			turn(actor.RoleHuman, "", "hello"),
			turn(actor.RoleEngine, actor.TagFinal, "hi there"),
		})

		want := "you ❯ hello\nclaude ❯ hi there\n"
		if got := buf.String(); got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})

	t.Run("dims tool and system activity", func(t *testing.T) {
		var buf bytes.Buffer
		r := New(&buf, Options{})

		r.Turn(turn(actor.RoleSystem, actor.TagToolUse, `read_file {"path":"main.go"}`))
		r.Turn(turn(actor.RoleSystem, actor.TagToolResult, "package main"))
		r.Turn(turn(actor.RoleSystem, actor.TagSystem, "engine ready"))

		want := "  ⚙ read_file {\"path\":\"main.go\"}\n" +
			"  ✓ package main\n" +
			"  [system] engine ready\n"
		if got := buf.String(); got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})

	t.Run("drops thinking unless requested", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, Options{}).Turn(turn(actor.RoleSystem, actor.TagThinking, "pondering"))
		if buf.Len() != 0 {
			t.Errorf("thinking rendered by default: %q", buf.String())
		}

		buf.Reset()
		New(&buf, Options{ShowThinking: true}).Turn(turn(actor.RoleSystem, actor.TagThinking, "pondering"))
		if got := buf.String(); got != "  · pondering\n" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("clips detail lines to their first line", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, Options{}).Turn(turn(actor.RoleSystem, actor.TagToolResult, "line one\nline two"))
		if got := buf.String(); got != "  ✓ line one\n" {
			t.Errorf("output = %q, want first line only", got)
		}
	})

	t.Run("truncates very long detail lines", func(t *testing.T) {
		var buf bytes.Buffer
		long := strings.Repeat("x", maxDetailWidth+40)
		New(&buf, Options{}).Turn(turn(actor.RoleSystem, actor.TagToolResult, long))

		got := buf.String()
		if !strings.HasSuffix(strings.TrimSuffix(got, "\n"), "…") {
			t.Errorf("long detail not truncated: %d chars", len(got))
		}
	})

	t.Run("prefixes timestamps when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, Options{Timestamps: true}).Turn(turn(actor.RoleHuman, "", "hello"))
		if got := buf.String(); got != "09:30:00 you ❯ hello\n" {
			t.Errorf("output = %q", got)
		}
	})
}

func TestRendererNoticeAndError(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})

	r.Notice("session %s created", "conv-1")
	r.Error(fmt.Errorf("engine crashed"))
	r.Error(nil)

	want := "session conv-1 created\nerror: engine crashed\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRendererStyledKeepsContent(t *testing.T) {
	// Styled output depends on the terminal profile, so only the
	// content is asserted, not the escape sequences.
	var buf bytes.Buffer
	r := New(&buf, Options{Styled: true})

	r.Turn(turn(actor.RoleHuman, "", "hello"))
	r.Turn(turn(actor.RoleEngine, actor.TagFinal, "hi there"))

	got := buf.String()
	for _, want := range []string{"you", "hello", "claude", "hi there"} {
		if !strings.Contains(got, want) {
			t.Errorf("styled output missing %q: %q", want, got)
		}
	}
}
