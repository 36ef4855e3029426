package tui

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func TestCleanMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "こんにちは", "こんにちは"},
		{"ansi", "\x1b[31m赤\x1b[0m", "赤"},
		{"crlf", "一行目\r\n二行目", "一行目 二行目"},
		{"blank lines", "a\n\n\n  b  \n", "a b"},
		{"control chars", "a\x00b\x07c\x7f", "abc"},
		{"tabs", "a\tb", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMessage(tt.in))
		})
	}
}

func TestApp_PasteFillsInput(t *testing.T) {
	h := newHarness(t)
	h.send(tea.PasteMsg{Content: "営業時間は\r\n何時まで？"})

	assert.Equal(t, focusInput, h.app.focus)
	assert.Equal(t, "営業時間は 何時まで？", h.app.input.Value())
}

func TestApp_PasteTruncates(t *testing.T) {
	h := newHarness(t)
	h.send(tea.PasteMsg{Content: strings.Repeat("あ", inputCharLimit+10)})

	assert.Len(t, []rune(h.app.input.Value()), inputCharLimit)
	assert.True(t, h.app.toast.IsVisible())
	assert.Equal(t, "10文字を切り捨てました", h.app.toast.GetMessage())
}

func TestApp_EditorResultIsCleaned(t *testing.T) {
	h := newHarness(t)
	h.send(EditorDoneMsg{Text: "一行目\n二行目\n"})

	assert.Equal(t, "一行目 二行目", h.app.input.Value())
}
