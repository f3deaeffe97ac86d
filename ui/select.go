package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

// Option is one row of a selector: a primary label plus dimmed detail.
type Option struct {
	Label  string
	Detail string
}

type optionList []Option

func (l optionList) String(i int) string { return l[i].Label }
func (l optionList) Len() int            { return len(l) }

type selectModel struct {
	title   string
	options optionList

	// visible holds indices into options, narrowed while filtering.
	visible []int
	cursor  int

	filterMode bool
	filter     textinput.Model

	choice    int
	done      bool
	cancelled bool
}

func newSelectModel(title string, options []Option) selectModel {
	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "filter"

	m := selectModel{
		title:   title,
		options: options,
		filter:  filter,
		choice:  -1,
	}
	m.resetVisible()
	return m
}

func (m *selectModel) resetVisible() {
	m.visible = m.visible[:0]
	for i := range m.options {
		m.visible = append(m.visible, i)
	}
	m.cursor = 0
}

func (m *selectModel) applyFilter() {
	pattern := m.filter.Value()
	if pattern == "" {
		m.resetVisible()
		return
	}
	matches := fuzzy.FindFrom(pattern, m.options)
	m.visible = m.visible[:0]
	for _, match := range matches {
		m.visible = append(m.visible, match.Index)
	}
	if m.cursor >= len(m.visible) {
		m.cursor = 0
	}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filterMode {
		switch key.String() {
		case "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		case "esc":
			m.filterMode = false
			m.filter.SetValue("")
			m.filter.Blur()
			m.resetVisible()
			return m, nil
		case "enter":
			m.filterMode = false
			m.filter.Blur()
			return m, nil
		case "up", "down":
			// Fall through to list navigation below.
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "/":
		m.filterMode = true
		m.filter.Focus()
		return m, textinput.Blink
	case "enter":
		if len(m.visible) > 0 {
			m.choice = m.visible[m.cursor]
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")

	if m.filterMode || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	labelWidth := 0
	for _, i := range m.visible {
		if w := runewidth.StringWidth(m.options[i].Label); w > labelWidth {
			labelWidth = w
		}
	}

	if len(m.visible) == 0 {
		b.WriteString(DimStyle.Render("  no matches"))
		b.WriteString("\n")
	}
	for pos, i := range m.visible {
		option := m.options[i]
		line := fmt.Sprintf("%s  %s",
			runewidth.FillRight(option.Label, labelWidth),
			DimStyle.Render(option.Detail))
		if pos == m.cursor {
			b.WriteString(SelectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("j/k navigate · / filter · enter select · esc cancel"))
	b.WriteString("\n")
	return b.String()
}

// Select presents a single-choice list and returns the index of the chosen
// option. Esc or Ctrl+C returns ErrCancelled.
func Select(title string, options []Option) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("nothing to select from")
	}

	final, err := tea.NewProgram(newSelectModel(title, options)).Run()
	if err != nil {
		return 0, fmt.Errorf("running selector: %w", err)
	}
	m := final.(selectModel)
	if m.cancelled || m.choice < 0 {
		return 0, ErrCancelled
	}
	return m.choice, nil
}
