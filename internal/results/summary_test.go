package results

import (
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/parley/internal/actor"
)

func TestSummaryMarkdown(t *testing.T) {
	t.Run("successful outcome", func(t *testing.T) {
		s := Summary{
			SessionID: "conv-42",
			Reason:    ReasonCompleted,
			Turns:     7,
			Duration:  3*time.Minute + 24*time.Second,
			EndedAt:   time.Date(2025, 6, 1, 14, 3, 11, 0, time.UTC),
			Transcript: []actor.ConversationTurn{
				{Role: actor.RoleHuman, Content: "analyze the data"},
				{Role: actor.RoleSystem, Tag: actor.TagToolUse, Content: "read_file data.csv"},
				{Role: actor.RoleEngine, Content: "The average is 12.4. [TASK_COMPLETE]"},
			},
			Files: []string{"report.csv", "charts/trend.png"},
		}

		md := s.Markdown()

		for _, want := range []string{
			"# Task Completed",
			"**Status:** ✓ conversation completed",
			"**Session:** conv-42",
			"**Turns:** 7",
			"**Duration:** 3m24s",
			"**Ended:** 2025-06-01 14:03:11",
			"## Transcript",
			"**You:**\n\nanalyze the data",
			"**Claude:**\n\nThe average is 12.4.",
			"## Collected Files",
			"- `report.csv`",
			"- `charts/trend.png`",
		} {
			if !strings.Contains(md, want) {
				t.Errorf("summary missing %q:\n%s", want, md)
			}
		}

		if strings.Contains(md, CompletionMarker) {
			t.Error("completion marker leaked into the summary")
		}
		if strings.Contains(md, "read_file") {
			t.Error("tool activity leaked into the transcript")
		}
	})

	t.Run("failed outcome", func(t *testing.T) {
		s := Summary{
			SessionID: "conv-42",
			Reason:    ReasonCrashed,
			Detail:    "engine crashed: exit status 3",
			Turns:     2,
		}

		md := s.Markdown()
		if !strings.Contains(md, "# Conversation Ended") {
			t.Errorf("failure summary uses wrong title:\n%s", md)
		}
		if !strings.Contains(md, "**Status:** ✗ engine failed") {
			t.Errorf("failure summary missing status:\n%s", md)
		}
		if !strings.Contains(md, "**Detail:** engine crashed: exit status 3") {
			t.Errorf("failure summary missing detail:\n%s", md)
		}
	})

	t.Run("marker-only turns vanish", func(t *testing.T) {
		s := Summary{
			Reason: ReasonMarker,
			Transcript: []actor.ConversationTurn{
				{Role: actor.RoleEngine, Content: "[TASK_COMPLETE]"},
			},
		}
		if md := s.Markdown(); strings.Contains(md, "## Transcript") {
			t.Errorf("empty transcript rendered a section:\n%s", md)
		}
	})

	t.Run("no files means no manifest section", func(t *testing.T) {
		s := Summary{Reason: ReasonCompleted}
		if md := s.Markdown(); strings.Contains(md, "## Collected Files") {
			t.Errorf("file section rendered without files:\n%s", md)
		}
	})
}

func TestReasonSuccessful(t *testing.T) {
	successful := []Reason{ReasonCompleted, ReasonMarker}
	for _, r := range successful {
		if !r.Successful() {
			t.Errorf("%s.Successful() = false", r)
		}
	}
	for _, r := range []Reason{ReasonEmptyInput, ReasonMaxTurns, ReasonDeadline, ReasonCanceled, ReasonCrashed} {
		if r.Successful() {
			t.Errorf("%s.Successful() = true", r)
		}
	}
}
