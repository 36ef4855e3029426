package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/rirakoi/internal/booking"
	"github.com/mark3labs/rirakoi/internal/tui/theme"
)

// renderTranscript lays out the chat history: user messages on the right,
// system messages on the left, each with its time.
func renderTranscript(msgs []booking.ChatMessage, width int) string {
	if len(msgs) == 0 {
		return theme.Current().S().Hint.Render("メニューから選択するか、メッセージを入力してください。")
	}

	s := theme.Current().S()
	bubbleWidth := max(10, width*3/4)

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}

		style := s.SystemBubble
		align := lipgloss.Left
		switch {
		case msg.IsError:
			style = s.ErrorBubble
		case msg.Sender == booking.SenderUser:
			style = s.UserBubble
			align = lipgloss.Right
		}

		bubble := style.Render(msg.Text)
		if lipgloss.Width(bubble) > bubbleWidth {
			bubble = style.Width(bubbleWidth).Render(msg.Text)
		}
		stamp := s.Timestamp.Render(msg.Timestamp.Format("15:04"))
		block := lipgloss.JoinVertical(align, bubble, stamp)
		b.WriteString(lipgloss.PlaceHorizontal(width, align, block))
	}
	return b.String()
}
