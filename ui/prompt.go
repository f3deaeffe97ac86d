// Package ui provides the small interactive pieces micli needs: one-line
// text and password prompts, a yes/no confirmation, and a single-choice
// selector. Each runs as its own short-lived bubbletea program on the
// regular screen, since micli is a one-shot CLI, not a persistent TUI.
package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user aborts a prompt with Esc or
// Ctrl+C. It carries no cause chain; the invocation just ends.
var ErrCancelled = errors.New("cancelled")

type promptModel struct {
	label     string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newPromptModel(label string, masked bool) promptModel {
	input := textinput.New()
	input.Prompt = ""
	if masked {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '*'
	}
	input.Focus()

	return promptModel{label: label, input: input}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		// Leave the answered prompt on screen without the cursor.
		return ""
	}
	return LabelStyle.Render(m.label) + " " + m.input.View()
}

func runPrompt(label string, masked bool) (string, error) {
	final, err := tea.NewProgram(newPromptModel(label, masked)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	m := final.(promptModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.input.Value(), nil
}

// PromptText asks for one line of input.
func PromptText(label string) (string, error) {
	return runPrompt(label, false)
}

// PromptPassword asks for one line of masked input.
func PromptPassword(label string) (string, error) {
	return runPrompt(label, true)
}

type confirmModel struct {
	question  string
	answer    bool
	done      bool
	cancelled bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y":
			m.answer = true
			m.done = true
			return m, tea.Quit
		case "n", "N", "enter":
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return LabelStyle.Render(m.question) + " " + DimStyle.Render("[y/N]")
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(question string) (bool, error) {
	final, err := tea.NewProgram(confirmModel{question: question}).Run()
	if err != nil {
		return false, fmt.Errorf("running prompt: %w", err)
	}
	m := final.(confirmModel)
	if m.cancelled {
		return false, ErrCancelled
	}
	return m.answer, nil
}
