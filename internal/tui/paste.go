package tui

import (
	"fmt"
	"regexp"
	"strings"

	tea "charm.land/bubbletea/v2"
)

// inputCharLimit caps a single chat message.
const inputCharLimit = 500

// ansiEscapePattern matches CSI sequences such as colors and cursor moves.
var ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// whitespaceRun matches newlines and the blanks around them.
var whitespaceRun = regexp.MustCompile(`[ \t]*\n[\s]*`)

// cleanMessage turns pasted or edited text into one chat line: escape
// sequences and control characters are dropped and line breaks collapse
// to a single space.
func cleanMessage(content string) string {
	content = ansiEscapePattern.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var b strings.Builder
	for _, r := range content {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 32 || r == 127:
			continue
		default:
			b.WriteRune(r)
		}
	}

	content = whitespaceRun.ReplaceAllString(strings.TrimSpace(b.String()), " ")
	return strings.ReplaceAll(content, "\t", " ")
}

// handlePaste inserts cleaned paste content into the input, truncating at
// inputCharLimit.
func (a *App) handlePaste(msg tea.PasteMsg) tea.Cmd {
	content := cleanMessage(msg.Content)
	remaining := inputCharLimit - len([]rune(a.input.Value()))
	pasteLen := len([]rune(content))

	if remaining <= 0 {
		return a.toast.Show(fmt.Sprintf("%d文字を切り捨てました", pasteLen))
	}

	var toast tea.Cmd
	if pasteLen > remaining {
		content = string([]rune(content)[:remaining])
		toast = a.toast.Show(fmt.Sprintf("%d文字を切り捨てました", pasteLen-remaining))
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(tea.PasteMsg{Content: content})
	if toast != nil {
		return tea.Batch(cmd, toast)
	}
	return cmd
}
