// Package tui is a terminal preview of refactoring results.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/engine/suggest"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	gutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
	markStyle   = lipgloss.NewStyle().Background(lipgloss.Color("#1E3A8A"))
)

type item struct {
	s suggest.Suggestion
}

func (i item) Title() string {
	return fmt.Sprintf("%s · line %d", i.s.Category, i.s.Line)
}
func (i item) Description() string { return i.s.Message }
func (i item) FilterValue() string { return string(i.s.Category) + " " + i.s.Message }

type panelMode int

const (
	panelSuggestions panelMode = iota
	panelCode
)

// resultMsg delivers a new result for the previewed file.
type resultMsg struct {
	path   string
	source string
	result refactor.Result
	err    error
}

// writeResultMsg reports the outcome of saving refactored code.
type writeResultMsg struct {
	path string
	err  error
}

// Saver persists refactored code for a path.
type Saver func(path, content string) error

type model struct {
	list       list.Model
	code       viewport.Model
	mode       panelMode
	showSource bool
	save       Saver

	path       string
	source     string
	result     refactor.Result
	err        error
	lastUpdate time.Time
	status     string
	ready      bool
}

func initialModel(path string, save Saver) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Suggestions"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		code:       viewport.New(0, 0),
		mode:       panelSuggestions,
		path:       path,
		save:       save,
		lastUpdate: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKey(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 6
		if height < 5 {
			height = 5
		}
		m.list.SetSize(width, height)
		m.code.Width = width
		m.code.Height = height
		m.ready = true
		m.refreshCode()
	case resultMsg:
		m.path = msg.path
		m.source = msg.source
		m.result = msg.result
		m.err = msg.err
		m.lastUpdate = time.Now()
		m.status = ""
		items := make([]list.Item, 0, len(msg.result.Suggestions))
		for _, s := range msg.result.Suggestions {
			items = append(items, item{s: s})
		}
		m.list.SetItems(items)
		m.refreshCode()
	case writeResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Save failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Saved %s", msg.path)
		}
	}

	var cmd tea.Cmd
	if m.mode == panelSuggestions {
		m.list, cmd = m.list.Update(msg)
	} else {
		m.code, cmd = m.code.Update(msg)
	}
	return m, cmd
}

// selectedLine is the line of the highlighted suggestion, or 0.
func (m model) selectedLine() int {
	if it, ok := m.list.SelectedItem().(item); ok {
		return it.s.Line
	}
	return 0
}

func (m *model) refreshCode() {
	text := m.result.RefactoredText
	if m.showSource || m.err != nil {
		text = m.source
	}
	mark := 0
	if m.showSource {
		mark = m.selectedLine()
	}
	m.code.SetContent(renderCode(text, mark))
}

// renderCode numbers lines and highlights line mark when it is positive.
func renderCode(text string, mark int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		n := i + 1
		gutter := gutterStyle.Render(fmt.Sprintf("%*d │ ", width, n))
		if n == mark {
			line = markStyle.Render(line)
		}
		b.WriteString(gutter + line + "\n")
	}
	return b.String()
}

func summarize(suggestions []suggest.Suggestion) string {
	counts := suggest.CountByCategory(suggestions)
	if len(counts) == 0 {
		return successStyle.Render("No suggestions")
	}
	keys := make([]string, 0, len(counts))
	for c := range counts {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", counts[suggest.Category(k)], k))
	}
	return countStyle.Render(strings.Join(parts, " | "))
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("%s | updated %s | %d lines | %d functions",
		m.path, m.lastUpdate.Format("15:04:05"), m.result.Metrics.Lines, m.result.Metrics.Functions))

	summary := summarize(m.result.Suggestions)
	if m.err != nil {
		summary = errorStyle.Render(describeError(m))
	}
	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("pyrefactor preview"), status, summary)

	var body string
	if m.mode == panelSuggestions {
		body = m.list.View()
	} else {
		label := "refactored"
		if m.showSource || m.err != nil {
			label = "original"
		}
		body = statusStyle.Render(label) + "\n" + m.code.View()
	}
	if m.status != "" {
		body += "\n" + statusStyle.Render(m.status)
	}
	return docStyle.Render(header + "\n" + renderHelp(m) + "\n\n" + body)
}

func describeError(m model) string {
	if pe := m.result.Error; pe != nil {
		return fmt.Sprintf("parse error at %d:%d: %s", pe.Line, pe.Column, pe.Message)
	}
	return m.err.Error()
}

func renderHelp(m model) string {
	keys := "tab: switch pane | v: original/refactored | enter: show line | w: save | q: quit"
	if m.save == nil {
		keys = "tab: switch pane | v: original/refactored | enter: show line | q: quit"
	}
	return statusStyle.Render(keys)
}
