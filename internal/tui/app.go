// Package tui is the full-screen booking chat built on Bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/booking"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/mark3labs/rirakoi/internal/tui/theme"
)

// Messages carrying the outcome of calls that ran off the update loop.
type (
	CallDoneMsg struct {
		Call *booking.Call
		Resp *api.ChatResponse
		Err  error
	}
	LoadDoneMsg struct {
		Result booking.LoadResult
	}
	SubmitDoneMsg struct {
		Call   *booking.SubmitCall
		Result *api.BookingResult
		Err    error
	}
)

type focusArea int

const (
	focusPrompts focusArea = iota
	focusInput
)

// App is the main Bubbletea model. All wizard state lives in the machine;
// App only renders it and schedules its calls.
type App struct {
	ctx context.Context
	m   *booking.Machine
	log *logger.Logger

	transcript viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	prompts    *PromptList
	modal      *ConfirmationModal
	toast      *Toast

	focus    focusArea
	width    int
	height   int
	quitting bool
}

func NewApp(ctx context.Context, m *booking.Machine) *App {
	th := theme.Current()

	input := textinput.New()
	input.Placeholder = "メッセージを入力..."
	input.Prompt = "› "
	input.CharLimit = inputCharLimit
	input.SetStyles(textinput.Styles{
		Focused: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgBase)),
			Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(th.Primary)),
		},
		Blurred: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgSubtle)),
			Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(th.FgMuted)),
		},
		Cursor: textinput.CursorStyle{
			Color: lipgloss.Color(th.Primary),
			Shape: tea.CursorBar,
			Blink: true,
		},
	})

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(th.Primary))

	a := &App{
		ctx:        ctx,
		m:          m,
		log:        logger.With("tui"),
		transcript: viewport.New(viewport.WithWidth(80), viewport.WithHeight(10)),
		input:      input,
		spinner:    s,
		prompts:    NewPromptList(),
		toast:      NewToast(),
		width:      80,
		height:     24,
	}
	a.sync()
	return a
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, m *booking.Machine) error {
	p := tea.NewProgram(NewApp(ctx, m))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.loadConfirmation())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.sync()
		return a, nil

	case tea.KeyPressMsg:
		return a.handleKeyPress(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case CallDoneMsg:
		err := a.m.Resolve(a.ctx, msg.Call, msg.Resp, msg.Err)
		a.sync()
		if err != nil {
			return a, a.afterError(err)
		}
		return a, a.loadConfirmation()

	case LoadDoneMsg:
		if a.modal == nil {
			return a, nil
		}
		err := a.modal.Confirmation().ApplyLoad(a.ctx, msg.Result)
		cmd := a.afterError(err)
		a.sync()
		return a, cmd

	case SubmitDoneMsg:
		if a.modal == nil {
			return a, nil
		}
		err := a.modal.Confirmation().ResolveSubmit(msg.Call, msg.Result, msg.Err)
		// submission failures are shown inside the modal
		if err != nil && !errors.Is(err, ierr.ErrStale) {
			a.log.Info("submission failed: %v", err)
		}
		a.sync()
		return a, nil

	case EditorDoneMsg:
		if msg.Err != nil {
			a.log.Warn("external editor: %v", msg.Err)
			return a, a.toast.Show("エディタを開けませんでした")
		}
		text := []rune(cleanMessage(msg.Text))
		if len(text) > inputCharLimit {
			text = text[:inputCharLimit]
		}
		a.input.SetValue(string(text))
		a.setFocus(focusInput)
		return a, nil

	case tea.PasteMsg:
		if a.modal != nil {
			return a, nil
		}
		a.setFocus(focusInput)
		return a, a.handlePaste(msg)

	case ToastDismissMsg:
		return a, a.toast.Update(msg)
	}

	if a.focus == focusInput && a.modal == nil {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKeyPress(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.quitting = true
		return a, tea.Quit
	}

	if a.modal != nil {
		return a.handleModalKey(msg)
	}

	switch msg.String() {
	case "tab":
		if a.focus == focusPrompts {
			a.setFocus(focusInput)
		} else {
			a.setFocus(focusPrompts)
		}
		return a, nil
	case "esc":
		if a.m.Back(a.ctx) {
			a.sync()
		}
		return a, nil
	case "ctrl+r":
		if err := a.m.Reset(a.ctx); err != nil {
			a.log.Warn("reset: %v", err)
		}
		a.input.Reset()
		a.sync()
		return a, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.transcript, cmd = a.transcript.Update(msg)
		return a, cmd
	}

	if a.focus == focusInput {
		switch msg.String() {
		case "enter":
			return a, a.sendText()
		case "ctrl+e":
			return a, openEditor(a.input.Value())
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "left", "h", "up", "k":
		a.prompts.Move(-1)
	case "right", "l", "down", "j":
		a.prompts.Move(1)
	case "enter", "space", " ":
		return a, a.choose()
	}
	return a, nil
}

func (a *App) handleModalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	c := a.modal.Confirmation()
	action, id := a.modal.HandleKey(msg)

	var err error
	var cmd tea.Cmd
	switch action {
	case ActionNone:
		return a, nil
	case ActionSelectPayment:
		err = c.SelectPaymentMethod(a.ctx, id)
	case ActionToggleConsent:
		err = c.SetAgreed(!c.Agreed())
	case ActionReload:
		cmd = a.loadConfirmation()
	case ActionSubmit:
		cmd = a.submit(c)
	case ActionCancel:
		err = c.Cancel(a.ctx)
	case ActionAcknowledge:
		err = c.Acknowledge(a.ctx)
	}
	if err != nil {
		cmd = a.afterError(err)
	}
	a.sync()
	return a, cmd
}

func (a *App) choose() tea.Cmd {
	opt, ok := a.prompts.Selected()
	if !ok {
		return nil
	}
	call, err := a.m.Select(opt)
	a.sync()
	if err != nil {
		return a.afterError(err)
	}
	if call == nil {
		// handled locally, e.g. the chat menu entry
		a.setFocus(focusInput)
		return nil
	}
	return a.run(call)
}

func (a *App) sendText() tea.Cmd {
	call, err := a.m.SendText(a.input.Value())
	if err != nil {
		if errors.Is(err, booking.ErrEmptyText) {
			return nil
		}
		return a.afterError(err)
	}
	a.input.Reset()
	a.sync()
	return a.run(call)
}

func (a *App) run(call *booking.Call) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		resp, err := call.Run(ctx)
		return CallDoneMsg{Call: call, Resp: resp, Err: err}
	}
}

// loadConfirmation starts loading payment methods and policy text for a
// confirmation that has not been loaded yet.
func (a *App) loadConfirmation() tea.Cmd {
	if a.modal == nil {
		return nil
	}
	c := a.modal.Confirmation()
	if c.PaymentMethodsLoaded() && c.PolicyLoaded() {
		return nil
	}
	call, err := c.LoadCall()
	if err != nil {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		return LoadDoneMsg{Result: call.Run(ctx)}
	}
}

func (a *App) submit(c *booking.Confirmation) tea.Cmd {
	call, err := c.BeginSubmit()
	if err != nil {
		return a.afterError(err)
	}
	ctx := a.ctx
	return func() tea.Msg {
		res, err := call.Run(ctx)
		return SubmitDoneMsg{Call: call, Result: res, Err: err}
	}
}

// afterError decides how an error reaches the user. Stale results are
// dropped silently; everything else gets a toast on top of what the
// machine already wrote to the transcript.
func (a *App) afterError(err error) tea.Cmd {
	if err == nil || errors.Is(err, ierr.ErrStale) {
		return nil
	}
	a.log.Debug("action failed: %v", err)
	return a.toast.Show(ierr.UserMessage(err))
}

func (a *App) setFocus(f focusArea) {
	a.focus = f
	a.prompts.SetFocused(f == focusPrompts)
	if f == focusInput {
		a.input.Focus()
	} else {
		a.input.Blur()
	}
}

// sync copies machine state into the view components.
func (a *App) sync() {
	c := a.m.Confirmation()
	switch {
	case c == nil:
		a.modal = nil
	case a.modal == nil || a.modal.Confirmation() != c:
		a.modal = NewConfirmationModal(c)
	}

	a.prompts.SetOptions(a.m.Prompts())
	a.prompts.SetDisabled(a.m.Busy())

	w := max(20, a.width-2)
	a.input.SetWidth(w - 4)
	a.transcript.SetWidth(w)
	a.transcript.SetHeight(max(3, a.height-a.chromeHeight(w)))
	a.transcript.SetContent(renderTranscript(a.m.Transcript(), w))
	a.transcript.GotoBottom()
}

// chromeHeight is the number of rows used by everything but the
// transcript.
func (a *App) chromeHeight(width int) int {
	h := 1 + 1 + 1 + 1 // header, blank, input, hints
	if p := a.prompts.View(width); p != "" {
		h += lipgloss.Height(p) + 1
	}
	return h
}

func (a *App) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if a.quitting {
		view.AltScreen = false
		view.Content = lipgloss.NewLayer("")
		return view
	}

	canvas := uv.NewScreenBuffer(a.width, a.height)
	a.Draw(canvas, canvas.Bounds())
	view.Content = lipgloss.NewLayer(canvas.Render())
	view.BackgroundColor = theme.HexToColor(theme.Current().BgCrust)
	return view
}

// Draw renders the chat screen and any overlays.
func (a *App) Draw(scr uv.Screen, area uv.Rectangle) {
	uv.NewStyledString(a.render()).Draw(scr, area)

	if a.modal != nil {
		a.modal.Draw(scr, area, a.m.Draft(), a.spinner.View())
	}
	a.toast.Draw(scr, area)
}

func (a *App) render() string {
	s := theme.Current().S()
	w := max(20, a.width-2)

	header := s.HeaderTitle.Render("rirakoi") + "  " + s.HeaderStep.Render(a.m.Step().Title())
	if a.m.Busy() {
		header += "  " + a.spinner.View()
	}

	parts := []string{header, a.transcript.View()}
	if p := a.prompts.View(w); p != "" {
		parts = append(parts, "", p)
	}
	parts = append(parts, "", a.input.View(), a.hints())

	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (a *App) hints() string {
	if a.focus == focusInput {
		return renderHints("enter", "送信", "ctrl+e", "エディタ", "tab", "選択肢", "esc", "戻る", "ctrl+r", "最初から", "ctrl+c", "終了")
	}
	return renderHints("←→", "移動", "enter", "選択", "tab", "入力", "esc", "戻る", "ctrl+r", "最初から", "ctrl+c", "終了")
}
