package tui

import (
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/rirakoi/internal/booking"
	"github.com/mark3labs/rirakoi/internal/tui/theme"
)

// PromptList shows the current prompt set as a row of chips that wraps to
// the available width.
type PromptList struct {
	options  []booking.PromptOption
	cursor   int
	focused  bool
	disabled bool
}

func NewPromptList() *PromptList {
	return &PromptList{focused: true}
}

// SetOptions replaces the options. The cursor is kept when the set is
// unchanged so redraws do not jump back to the first chip.
func (p *PromptList) SetOptions(opts []booking.PromptOption) {
	same := slices.EqualFunc(p.options, opts, func(a, b booking.PromptOption) bool {
		return a.Kind == b.Kind && a.ID == b.ID
	})
	p.options = opts
	if !same || p.cursor >= len(opts) {
		p.cursor = 0
	}
}

func (p *PromptList) SetFocused(f bool)  { p.focused = f }
func (p *PromptList) SetDisabled(d bool) { p.disabled = d }
func (p *PromptList) Len() int           { return len(p.options) }

// Move shifts the cursor by delta, clamped to the list.
func (p *PromptList) Move(delta int) {
	if len(p.options) == 0 {
		return
	}
	p.cursor = max(0, min(len(p.options)-1, p.cursor+delta))
}

// Selected returns the option under the cursor.
func (p *PromptList) Selected() (booking.PromptOption, bool) {
	if p.cursor < 0 || p.cursor >= len(p.options) {
		return booking.PromptOption{}, false
	}
	return p.options[p.cursor], true
}

// View lays the chips out in rows no wider than width.
func (p *PromptList) View(width int) string {
	if len(p.options) == 0 {
		return ""
	}
	s := theme.Current().S()

	var rows []string
	var row []string
	rowWidth := 0
	for i, opt := range p.options {
		style := s.Prompt
		switch {
		case p.disabled:
			style = s.PromptDisabled
		case p.focused && i == p.cursor:
			style = s.PromptFocused
		}
		chip := style.Render(opt.Label)
		w := lipgloss.Width(chip)
		if len(row) > 0 && rowWidth+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, chip)
		rowWidth += w
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return strings.Join(rows, "\n")
}
