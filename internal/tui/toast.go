package tui

import (
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/rirakoi/internal/tui/theme"
)

const toastDuration = 3 * time.Second

// ToastDismissMsg is sent when the toast should be dismissed. seq ties it to
// the Show call that scheduled it so an older timer cannot hide a newer toast.
type ToastDismissMsg struct {
	seq int
}

// Toast is a minimal toast notification component.
// Shows a message in the bottom-right corner that auto-dismisses.
type Toast struct {
	message string
	visible bool
	seq     int
}

func NewToast() *Toast {
	return &Toast{}
}

// Show displays msg and returns the command that dismisses it.
func (t *Toast) Show(msg string) tea.Cmd {
	t.message = msg
	t.visible = true
	t.seq++
	seq := t.seq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return ToastDismissMsg{seq: seq}
	})
}

func (t *Toast) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(ToastDismissMsg); ok && msg.seq == t.seq {
		t.visible = false
		t.message = ""
	}
	return nil
}

// View renders the toast box, or "" when hidden.
func (t *Toast) View(maxWidth int) string {
	if !t.visible || t.message == "" {
		return ""
	}

	th := theme.Current()
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(th.BgBase)).
		Background(lipgloss.Color(th.Warning)).
		Padding(0, 1).
		Bold(true)

	content := style.Render(t.message)
	if maxWidth > 2 && lipgloss.Width(content) > maxWidth-2 {
		content = style.Width(maxWidth - 2).Render(t.message)
	}
	return content
}

// Draw places the toast in the bottom-right corner, one row above the hint
// line.
func (t *Toast) Draw(scr uv.Screen, area uv.Rectangle) {
	content := t.View(area.Dx())
	if content == "" {
		return
	}
	w, h := lipgloss.Width(content), lipgloss.Height(content)
	x := area.Max.X - w - 1
	y := area.Max.Y - h - 1
	if x < area.Min.X {
		x = area.Min.X
	}
	if y < area.Min.Y {
		y = area.Min.Y
	}
	uv.NewStyledString(content).Draw(scr, uv.Rect(x, y, w, h))
}

func (t *Toast) IsVisible() bool {
	return t.visible
}

// GetMessage returns the current toast message (empty if not visible).
func (t *Toast) GetMessage() string {
	if !t.visible {
		return ""
	}
	return t.message
}
