package tui

import (
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/editor"
)

// EditorDoneMsg carries the text written in the external editor.
type EditorDoneMsg struct {
	Text string
	Err  error
}

// openEditor composes a chat message in $EDITOR, starting from draft.
func openEditor(draft string) tea.Cmd {
	tmp, err := os.CreateTemp("", "rirakoi_message_*.txt")
	if err != nil {
		return func() tea.Msg { return EditorDoneMsg{Err: err} }
	}
	path := tmp.Name()
	if _, err := tmp.WriteString(draft); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return func() tea.Msg { return EditorDoneMsg{Err: err} }
	}
	_ = tmp.Close()

	cmd, err := editor.Command("rirakoi", path)
	if err != nil {
		_ = os.Remove(path)
		return func() tea.Msg { return EditorDoneMsg{Err: err} }
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		defer func() { _ = os.Remove(path) }()
		if err != nil {
			return EditorDoneMsg{Err: err}
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return EditorDoneMsg{Err: err}
		}
		return EditorDoneMsg{Text: string(content)}
	})
}
