package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func testOptions() []Option {
	return []Option{
		{Label: "Bedroom", Detail: "d1"},
		{Label: "Kitchen", Detail: "d2"},
		{Label: "Office", Detail: "d3"},
	}
}

func drive(t *testing.T, m selectModel, keys ...string) selectModel {
	t.Helper()
	var model tea.Model = m
	for _, k := range keys {
		model, _ = model.Update(key(k))
	}
	return model.(selectModel)
}

func TestSelectNavigateAndChoose(t *testing.T) {
	m := drive(t, newSelectModel("Target device?", testOptions()), "j", "j", "enter")
	if !m.done {
		t.Fatal("model not done after enter")
	}
	if m.choice != 2 {
		t.Errorf("choice = %d, want 2", m.choice)
	}
}

func TestSelectCursorStaysInBounds(t *testing.T) {
	m := drive(t, newSelectModel("t", testOptions()), "up", "down", "down", "down", "down", "enter")
	if m.choice != 2 {
		t.Errorf("choice = %d, want 2 (clamped at the last row)", m.choice)
	}
}

func TestSelectCancelled(t *testing.T) {
	m := drive(t, newSelectModel("t", testOptions()), "esc")
	if !m.cancelled {
		t.Error("esc did not cancel")
	}
	if m.choice != -1 {
		t.Errorf("choice = %d, want -1", m.choice)
	}
}

func TestSelectFuzzyFilter(t *testing.T) {
	// "/" enters filter mode, "kit" narrows to Kitchen, enter leaves
	// filter mode, enter again selects.
	m := drive(t, newSelectModel("t", testOptions()), "/", "k", "i", "t", "enter", "enter")
	if !m.done {
		t.Fatal("model not done")
	}
	if m.choice != 1 {
		t.Errorf("choice = %d, want 1 (Kitchen)", m.choice)
	}
}

func TestSelectFilterClearedOnEsc(t *testing.T) {
	m := drive(t, newSelectModel("t", testOptions()), "/", "z", "z")
	if len(m.visible) != 0 {
		t.Fatalf("visible = %d rows, want 0 for a non-matching filter", len(m.visible))
	}
	m = drive(t, m, "esc")
	if len(m.visible) != len(testOptions()) {
		t.Errorf("visible = %d rows after clearing filter, want %d", len(m.visible), len(testOptions()))
	}
	if m.cancelled {
		t.Error("esc in filter mode cancelled the selector instead of clearing the filter")
	}
}
