package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/rirakoi/internal/booking"
	"github.com/mark3labs/rirakoi/internal/draft"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/mark3labs/rirakoi/internal/tui/theme"
)

const (
	modalWidth        = 64
	modalContentWidth = modalWidth - 2*2 - 2 // padding and border
	policyMaxLines    = 10
)

// modalFocus is the control that receives enter/space in the modal.
type modalFocus int

const (
	focusPayment modalFocus = iota
	focusConsent
	focusCancel
	focusSubmit
)

// ModalAction is what a key press in the modal asks the app to do.
type ModalAction int

const (
	ActionNone ModalAction = iota
	ActionSelectPayment
	ActionToggleConsent
	ActionSubmit
	ActionCancel
	ActionReload
	ActionAcknowledge
)

// ConfirmationModal renders a booking.Confirmation and translates keys into
// actions. It never changes the confirmation itself.
type ConfirmationModal struct {
	c      *booking.Confirmation
	focus  modalFocus
	cursor int // highlighted payment method
}

func NewConfirmationModal(c *booking.Confirmation) *ConfirmationModal {
	return &ConfirmationModal{c: c, focus: focusConsent}
}

// Confirmation returns the confirmation this modal shows.
func (m *ConfirmationModal) Confirmation() *booking.Confirmation { return m.c }

// HandleKey maps a key press to an action. For ActionSelectPayment the
// payment method id is returned as well.
func (m *ConfirmationModal) HandleKey(msg tea.KeyPressMsg) (ModalAction, string) {
	c := m.c
	if c.Phase() == booking.PhaseSucceeded {
		switch msg.String() {
		case "enter", "esc", "space", " ":
			return ActionAcknowledge, ""
		}
		return ActionNone, ""
	}
	if c.Phase() == booking.PhaseSubmitting {
		return ActionNone, ""
	}

	switch msg.String() {
	case "esc":
		return ActionCancel, ""
	case "tab":
		m.focus = (m.focus + 1) % 4
		return ActionNone, ""
	case "shift+tab":
		m.focus = (m.focus + 3) % 4
		return ActionNone, ""
	case "r":
		if c.PaymentMethodsErr() != nil || c.PolicyErr() != nil {
			return ActionReload, ""
		}
	case "a":
		return ActionToggleConsent, ""
	case "up", "k":
		if m.focus == focusPayment {
			return m.movePayment(-1)
		}
	case "down", "j":
		if m.focus == focusPayment {
			return m.movePayment(1)
		}
	case "enter", "space", " ":
		switch m.focus {
		case focusConsent:
			return ActionToggleConsent, ""
		case focusCancel:
			return ActionCancel, ""
		case focusSubmit:
			if c.CanSubmit() {
				return ActionSubmit, ""
			}
		}
	}
	return ActionNone, ""
}

func (m *ConfirmationModal) movePayment(delta int) (ModalAction, string) {
	methods := m.c.PaymentMethods()
	if len(methods) == 0 {
		return ActionNone, ""
	}
	m.cursor = max(0, min(len(methods)-1, m.selectedIndex()+delta))
	return ActionSelectPayment, methods[m.cursor].ID
}

// selectedIndex is the position of the selected method, falling back to
// the cursor when nothing is selected.
func (m *ConfirmationModal) selectedIndex() int {
	for i, pm := range m.c.PaymentMethods() {
		if pm.ID == m.c.SelectedPaymentMethod() {
			return i
		}
	}
	return m.cursor
}

// Render builds the modal box. spin is shown while anything is in flight.
func (m *ConfirmationModal) Render(d draft.Draft, spin string) string {
	if m.c.Phase() == booking.PhaseSucceeded {
		return m.renderSuccess()
	}

	s := theme.Current().S()
	sections := []string{s.ModalTitle.Render("予約確認"), ""}

	labelWidth := 0
	rows := booking.Summary(d)
	for _, r := range rows[:5] {
		labelWidth = max(labelWidth, lipgloss.Width(r.Label))
	}
	for _, r := range rows[:5] {
		sections = append(sections, s.Label.Width(labelWidth+2).Render(r.Label)+s.Value.Render(r.Value))
	}

	sections = append(sections, "", m.renderPayments(spin), "", m.renderPolicy(spin), "", m.renderConsent())

	if err := m.c.SubmitErr(); err != nil {
		sections = append(sections, "", s.ErrorText.Width(modalContentWidth).Render("✗ "+ierr.UserMessage(err)))
	}

	submitLabel := "予約を確定する"
	if m.c.Phase() == booking.PhaseSubmitting {
		submitLabel = spin + " 送信中"
	}
	bar := NewButtonBar(modalContentWidth,
		Button{Label: "キャンセル", State: buttonState(m.focus == focusCancel, m.c.Phase() != booking.PhaseSubmitting)},
		Button{Label: submitLabel, State: buttonState(m.focus == focusSubmit, m.c.CanSubmit())},
	)
	sections = append(sections, "", bar.Render(), "", renderHints("tab", "移動", "a", "同意", "esc", "キャンセル"))

	return s.ModalBorder.Width(modalWidth).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *ConfirmationModal) renderPayments(spin string) string {
	s := theme.Current().S()
	title := s.Label.Render("支払方法")
	if m.focus == focusPayment {
		title = s.ModalTitle.Render("支払方法")
	}

	c := m.c
	switch {
	case c.PaymentMethodsErr() != nil:
		return title + "\n" + s.ErrorText.Render(ierr.UserMessage(c.PaymentMethodsErr())+" (r: 再読み込み)")
	case !c.PaymentMethodsLoaded():
		return title + "\n" + spin + " 読み込み中..."
	case len(c.PaymentMethods()) == 0:
		return title + "\n" + s.ErrorText.Render("登録済みのカードがありません。")
	}

	lines := []string{title}
	for _, pm := range c.PaymentMethods() {
		mark := "○"
		style := s.Label
		if pm.ID == c.SelectedPaymentMethod() {
			mark = "●"
			style = s.Value
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %s", mark, pm.Label())))
	}
	return strings.Join(lines, "\n")
}

func (m *ConfirmationModal) renderPolicy(spin string) string {
	s := theme.Current().S()
	c := m.c
	switch {
	case c.PolicyErr() != nil:
		return s.ErrorText.Render(ierr.UserMessage(c.PolicyErr()) + " (r: 再読み込み)")
	case !c.PolicyLoaded():
		return spin + " キャンセルポリシーを読み込み中..."
	}

	rendered := renderMarkdown(c.Policy(), modalContentWidth)
	lines := strings.Split(rendered, "\n")
	if len(lines) > policyMaxLines {
		lines = append(lines[:policyMaxLines-1], s.Hint.Render("…"))
	}
	return strings.Join(lines, "\n")
}

func (m *ConfirmationModal) renderConsent() string {
	s := theme.Current().S()
	box := "[ ]"
	if m.c.Agreed() {
		box = "[x]"
	}
	text := box + " キャンセルポリシーに同意する"
	switch {
	case !m.c.PolicyLoaded():
		return s.Hint.Render(text)
	case m.focus == focusConsent:
		return s.ModalTitle.Render(text)
	}
	return s.Value.Render(text)
}

func (m *ConfirmationModal) renderSuccess() string {
	s := theme.Current().S()
	id := ""
	if res := m.c.Result(); res != nil {
		id = string(res.ID)
	}
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.SuccessText.Render("✓ 予約が完了しました"),
		"",
		s.Label.Render("予約番号: ")+s.Value.Render(id),
		"",
		NewButtonBar(40, Button{Label: "OK", State: ButtonFocused}).Render(),
	)
	return s.ModalBorder.Render(content)
}

// Draw renders the modal centered on screen.
func (m *ConfirmationModal) Draw(scr uv.Screen, area uv.Rectangle, d draft.Draft, spin string) {
	content := m.Render(d, spin)
	w, h := lipgloss.Width(content), lipgloss.Height(content)
	x := area.Min.X + max(0, (area.Dx()-w)/2)
	y := area.Min.Y + max(0, (area.Dy()-h)/2)

	uv.NewStyledString(content).Draw(scr, uv.Rect(x, y, w, h))
}

// renderHints renders "key action" pairs as a muted hint line.
func renderHints(pairs ...string) string {
	s := theme.Current().S()
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, s.Value.Render(pairs[i])+" "+s.Hint.Render(pairs[i+1]))
	}
	return strings.Join(parts, s.Hint.Render(" • "))
}
