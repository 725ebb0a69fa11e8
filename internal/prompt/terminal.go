package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/parley/internal/errors"
)

var (
	promptHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")) // Purple
	promptHelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))            // Gray
)

// TerminalPrompter reads the next turn interactively from the invoking
// terminal.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a terminal-backed prompter.
func NewTerminalPrompter() *TerminalPrompter { return &TerminalPrompter{} }

// Prompt runs an inline input until the human submits a line or
// cancels. Canceling with esc or ctrl+c, or through ctx, yields an
// error matching errors.ErrCanceled.
func (p *TerminalPrompter) Prompt(ctx context.Context, spec PromptSpec) (string, error) {
	prog := tea.NewProgram(newInputModel(spec), tea.WithContext(ctx))
	out, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewSessionError("prompt canceled",
				errors.Join(errors.ErrCanceled, ctx.Err())).WithSessionID(spec.SessionID)
		}
		return "", errors.NewSessionError("terminal prompt failed", err).
			WithSessionID(spec.SessionID)
	}

	m, ok := out.(inputModel)
	if !ok || m.canceled {
		return "", errors.NewSessionError("prompt canceled", errors.ErrCanceled).
			WithSessionID(spec.SessionID)
	}
	return strings.TrimSpace(m.input.Value()), nil
}

// inputModel is the single-line input shown while a conversation waits
// for its next turn.
type inputModel struct {
	spec     PromptSpec
	input    textinput.Model
	done     bool
	canceled bool
}

func newInputModel(spec PromptSpec) inputModel {
	ti := textinput.New()
	ti.Placeholder = "reply, or done to finish"
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 72

	return inputModel{spec: spec, input: ti}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.canceled {
		return ""
	}

	header := fmt.Sprintf("session %s · turn %d", m.spec.SessionID, m.spec.Turn)
	return fmt.Sprintf("%s\n%s\n%s\n",
		promptHeaderStyle.Render(header),
		m.input.View(),
		promptHelpStyle.Render("enter to send · esc to cancel"))
}
