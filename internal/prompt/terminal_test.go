package prompt

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func typeRunes(m inputModel, s string) inputModel {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(inputModel)
	}
	return m
}

func TestInputModel(t *testing.T) {
	spec := PromptSpec{SessionID: "conv-1", Turn: 3, Question: "what next?"}

	t.Run("enter submits the typed value", func(t *testing.T) {
		m := typeRunes(newInputModel(spec), "keep going")

		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = next.(inputModel)

		if !m.done || m.canceled {
			t.Errorf("done=%v canceled=%v, want submitted", m.done, m.canceled)
		}
		if got := m.input.Value(); got != "keep going" {
			t.Errorf("value = %q, want %q", got, "keep going")
		}
		if cmd == nil {
			t.Error("enter did not quit the program")
		}
	})

	t.Run("esc cancels", func(t *testing.T) {
		next, cmd := newInputModel(spec).Update(tea.KeyMsg{Type: tea.KeyEsc})
		m := next.(inputModel)

		if !m.canceled {
			t.Error("esc did not cancel")
		}
		if cmd == nil {
			t.Error("esc did not quit the program")
		}
	})

	t.Run("ctrl+c cancels", func(t *testing.T) {
		next, _ := newInputModel(spec).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		if m := next.(inputModel); !m.canceled {
			t.Error("ctrl+c did not cancel")
		}
	})

	t.Run("view names the session and turn", func(t *testing.T) {
		view := newInputModel(spec).View()
		if !strings.Contains(view, "conv-1") || !strings.Contains(view, "turn 3") {
			t.Errorf("view missing session context: %q", view)
		}
	})

	t.Run("view collapses after submit", func(t *testing.T) {
		m := newInputModel(spec)
		m.done = true
		if got := m.View(); got != "" {
			t.Errorf("view after submit = %q, want empty", got)
		}
	})
}
