package tui

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"
	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/booking"
	"github.com/mark3labs/rirakoi/internal/draft"
	"github.com/mark3labs/rirakoi/internal/mockapi"
	"github.com/stretchr/testify/require"
)

func init() {
	// plain output so assertions do not depend on the terminal
	lipgloss.Writer.Profile = colorprofile.Ascii
}

var (
	keyEnter = tea.KeyPressMsg{Code: tea.KeyEnter}
	keyTab   = tea.KeyPressMsg{Code: tea.KeyTab}
	keyEsc   = tea.KeyPressMsg{Code: tea.KeyEscape}
	keyRight = tea.KeyPressMsg{Code: tea.KeyRight}
	keyDown  = tea.KeyPressMsg{Code: tea.KeyDown}
	keyUp    = tea.KeyPressMsg{Code: tea.KeyUp}
	keyAgree = tea.KeyPressMsg{Code: 'a', Text: "a"}
	keyReset = tea.KeyPressMsg{Code: 'r', Mod: tea.ModCtrl}
)

type harness struct {
	app    *App
	m      *booking.Machine
	server *mockapi.Server
	http   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	saturday := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := mockapi.NewServer(mockapi.WithClock(func() time.Time { return saturday }))
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	client := api.NewClient(api.Options{BaseURL: srv.URL, CustomerID: "15", Timeout: 2 * time.Second})
	m := booking.NewMachine(client, draft.New(nil, draft.Identity{CustomerID: "15", UserID: "1"}))
	app := NewApp(context.Background(), m)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return &harness{app: app, m: m, server: s, http: srv}
}

// send delivers msg and returns the command the app scheduled.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	_, cmd := h.app.Update(msg)
	return cmd
}

// settle runs a call command and feeds its result back to the app.
func (h *harness) settle(t *testing.T, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	switch msg.(type) {
	case CallDoneMsg, LoadDoneMsg, SubmitDoneMsg:
	default:
		t.Fatalf("unexpected message %T", msg)
	}
	return h.send(msg)
}

// press sends key and settles every call that follows from it.
func (h *harness) press(t *testing.T, key tea.KeyPressMsg) {
	t.Helper()
	cmd := h.send(key)
	for cmd != nil {
		msg := cmd()
		switch msg.(type) {
		case CallDoneMsg, LoadDoneMsg, SubmitDoneMsg:
			cmd = h.send(msg)
		default:
			return
		}
	}
}

func (h *harness) toConfirmation(t *testing.T) {
	t.Helper()
	h.press(t, keyEnter) // 予約
	h.press(t, keyEnter) // 田中
	h.press(t, keyEnter) // マッサージ
	h.press(t, keyRight) // skip closed Sunday
	h.press(t, keyEnter) // 2025-03-03
	h.press(t, keyEnter) // 10:00
	h.press(t, keyEnter) // address
	h.press(t, keyEnter) // card
	require.Equal(t, booking.StepConfirmation, h.m.Step())
}
