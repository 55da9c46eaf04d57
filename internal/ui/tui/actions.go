package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func handleKey(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelSuggestions {
			m.mode = panelCode
		} else {
			m.mode = panelSuggestions
		}
		return m, nil
	case "v":
		m.showSource = !m.showSource
		m.refreshCode()
		return m, nil
	case "enter":
		line := m.selectedLine()
		if line == 0 {
			return m, nil
		}
		m.showSource = true
		m.mode = panelCode
		m.refreshCode()
		offset := line - 1 - m.code.Height/2
		if offset < 0 {
			offset = 0
		}
		m.code.SetYOffset(offset)
		return m, nil
	case "w":
		if m.save == nil || m.err != nil || m.result.RefactoredText == "" {
			return m, nil
		}
		return m, saveCmd(m.save, m.path, m.result.RefactoredText)
	}

	var cmd tea.Cmd
	if m.mode == panelSuggestions {
		m.list, cmd = m.list.Update(msg)
	} else {
		m.code, cmd = m.code.Update(msg)
	}
	return m, cmd
}

func saveCmd(save Saver, path, content string) tea.Cmd {
	return func() tea.Msg {
		return writeResultMsg{path: path, err: save(path, content)}
	}
}
