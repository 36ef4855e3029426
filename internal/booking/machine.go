package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/draft"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/mark3labs/rirakoi/internal/logger"
)

var (
	// ErrUnknownOption is returned for an option that is not in the current
	// prompt set.
	ErrUnknownOption = errors.New("option not offered at this step")

	// ErrEmptyText is returned by SendText for blank input.
	ErrEmptyText = errors.New("message is empty")
)

const (
	msgChatMode       = "ご用件をどうぞ。メッセージを入力してください。"
	msgNoAvailability = "選択した日付には空きがありません。別の日付を選択してください。"
)

// Backend is the subset of the API client the wizard needs.
type Backend interface {
	SendMessage(ctx context.Context, req api.MessageRequest) (*api.ChatResponse, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]api.PaymentMethod, error)
	FetchPolicyText(ctx context.Context) (string, error)
	SubmitBooking(ctx context.Context, payload api.BookingPayload) (*api.BookingResult, error)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the transcript timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the booking wizard. It is not safe for concurrent use: every
// method must be called from the goroutine that owns the UI loop. Only
// Call.Run, LoadCall.Run and SubmitCall.Run may run elsewhere.
type Machine struct {
	backend Backend
	store   *draft.Store
	now     func() time.Time
	log     *logger.Logger

	step       Step
	prompts    []PromptOption
	promptSets map[Step][]PromptOption
	transcript []ChatMessage
	busy       bool
	generation uint64
	confirm    *Confirmation
}

// NewMachine creates a wizard at Idle showing the menu.
func NewMachine(backend Backend, store *draft.Store, opts ...Option) *Machine {
	m := &Machine{
		backend: backend,
		store:   store,
		now:     time.Now,
		log:     logger.With("booking"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Start()
	return m
}

// Start shows the idle menu. It does not touch the draft or transcript.
func (m *Machine) Start() {
	m.step = StepIdle
	m.prompts = menuOptions()
	m.promptSets = map[Step][]PromptOption{StepIdle: m.prompts}
	m.confirm = nil
}

func (m *Machine) Step() Step                  { return m.step }
func (m *Machine) Busy() bool                  { return m.busy }
func (m *Machine) Generation() uint64          { return m.generation }
func (m *Machine) Draft() draft.Draft          { return m.store.Snapshot() }
func (m *Machine) Confirmation() *Confirmation { return m.confirm }

// Prompts returns the current prompt set.
func (m *Machine) Prompts() []PromptOption { return slices.Clone(m.prompts) }

// Transcript returns the chat history, oldest first.
func (m *Machine) Transcript() []ChatMessage { return slices.Clone(m.transcript) }

// Call is a pending SendMessage issued by Select or SendText.
type Call struct {
	gen     uint64
	step    Step
	option  PromptOption
	text    bool
	req     api.MessageRequest
	backend Backend
}

func (c *Call) Step() Step                  { return c.step }
func (c *Call) Request() api.MessageRequest { return c.req }

// Run performs the network call. It touches no wizard state.
func (c *Call) Run(ctx context.Context) (*api.ChatResponse, error) {
	return c.backend.SendMessage(ctx, c.req)
}

// Select records opt as the user's choice and returns the call that resolves
// it. A nil call with a nil error means the choice was handled locally.
func (m *Machine) Select(opt PromptOption) (*Call, error) {
	if m.busy {
		return nil, ierr.ErrBusy
	}
	if !m.step.selecting() || !m.offered(opt) {
		return nil, ErrUnknownOption
	}

	if opt.Kind == KindMenu && opt.Menu == MenuChat {
		m.appendUser(opt.Label)
		m.appendSystem(msgChatMode, false)
		return nil, nil
	}

	t := transitions[m.step]
	ctxMap, err := m.requestContext(opt)
	if err != nil {
		m.log.Error("select %s at %s: %v", opt.Label, m.step, err)
		m.appendSystem(ierr.UserMessage(err), true)
		return nil, err
	}

	m.appendUser(opt.Label)
	m.busy = true
	return &Call{
		gen:     m.generation,
		step:    m.step,
		option:  opt,
		req:     api.MessageRequest{Message: opt.Label, Type: t.messageType, Context: ctxMap},
		backend: m.backend,
	}, nil
}

// SendText sends free text. The reply never changes the step.
func (m *Machine) SendText(text string) (*Call, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if m.busy {
		return nil, ierr.ErrBusy
	}

	m.appendUser(text)
	m.busy = true
	return &Call{
		gen:  m.generation,
		step: m.step,
		text: true,
		req: api.MessageRequest{
			Message: text,
			Type:    api.TypeChat,
			Context: map[string]any{"customer_id": m.store.Identity().CustomerID},
		},
		backend: m.backend,
	}, nil
}

// Resolve applies the outcome of call. A call from an older generation
// returns ErrStale and changes nothing. Any other error is recorded in the
// transcript and returned; the draft and step are left as they were.
func (m *Machine) Resolve(ctx context.Context, call *Call, resp *api.ChatResponse, callErr error) error {
	if call == nil {
		return nil
	}
	if call.gen != m.generation {
		m.log.Debug("dropping %s response from generation %d (now %d)", call.req.Type, call.gen, m.generation)
		return ierr.ErrStale
	}
	m.busy = false

	if callErr != nil {
		m.log.Warn("%s failed: %v", call.req.Type, callErr)
		m.appendSystem(ierr.UserMessage(callErr), true)
		return callErr
	}

	if resp.Response != "" {
		m.appendSystem(resp.Response, false)
	}
	if call.text {
		return nil
	}

	t := transitions[call.step]
	var next []PromptOption
	if t.options != nil {
		next = t.options(resp)
		if len(next) == 0 {
			return m.emptyOptions(call.step, t.next)
		}
	}

	if t.field >= 0 {
		if err := m.record(ctx, t.field, call.option); err != nil {
			m.log.Error("recording %s: %v", t.field, err)
			m.appendSystem(ierr.UserMessage(err), true)
			return err
		}
	}

	m.enter(t.next, next)
	return nil
}

// Choose selects opt and resolves it synchronously.
func (m *Machine) Choose(ctx context.Context, opt PromptOption) error {
	call, err := m.Select(opt)
	if err != nil || call == nil {
		return err
	}
	resp, err := call.Run(ctx)
	return m.Resolve(ctx, call, resp, err)
}

// Chat sends free text and resolves it synchronously.
func (m *Machine) Chat(ctx context.Context, text string) error {
	call, err := m.SendText(text)
	if err != nil {
		return err
	}
	resp, err := call.Run(ctx)
	return m.Resolve(ctx, call, resp, err)
}

// Back returns to the previous selection step, clearing the draft from that
// step on. Any chat call in flight is abandoned. A submission in flight or a
// completed booking cannot be backed out of. It reports whether the step
// changed.
func (m *Machine) Back(ctx context.Context) bool {
	switch {
	case m.step == StepIdle, m.step == StepSubmitting, m.step == StepCompleted:
		return false
	case m.step.inConfirmation():
		m.leaveConfirmation(ctx)
		return true
	}

	m.abandon()
	prev := m.step - 1
	if prev >= StepTherapistSelection {
		m.store.ClearFrom(ctx, transitions[prev].field)
	}
	m.step = prev
	m.prompts = m.promptSets[prev]
	m.log.Debug("back to %s", prev)
	return true
}

// Reset discards the draft, transcript, prompts and any confirmation and
// returns to Idle.
func (m *Machine) Reset(ctx context.Context) error {
	m.abandon()
	m.transcript = nil
	m.Start()
	if err := m.store.Reset(ctx); err != nil {
		m.log.Warn("clearing selection cache: %v", err)
		return fmt.Errorf("clearing selection cache: %w", err)
	}
	return nil
}

// offered reports whether opt is in the current prompt set.
func (m *Machine) offered(opt PromptOption) bool {
	if opt.Kind != kindFor(m.step) {
		return false
	}
	return slices.ContainsFunc(m.prompts, func(p PromptOption) bool {
		return p.Kind == opt.Kind && p.ID == opt.ID
	})
}

// requestContext builds the context for a selection, checking the draft
// holds every field the step depends on.
func (m *Machine) requestContext(opt PromptOption) (map[string]any, error) {
	d := m.store.Snapshot()
	t := transitions[m.step]
	if t.field > 0 {
		for _, up := range draft.Fields[:t.field] {
			if !d.Has(up) {
				return nil, &ierr.SequenceError{Field: t.field.String(), Missing: up.String()}
			}
		}
	}

	ctxMap := map[string]any{"customer_id": m.store.Identity().CustomerID}
	if m.step == StepDateSelection {
		ctxMap["therapist_id"] = string(d.Therapist.ID)
		ctxMap["date"] = opt.Date.Date
		ctxMap["service_duration"] = d.Service.Duration
	}
	return ctxMap, nil
}

func (m *Machine) record(ctx context.Context, f draft.Field, opt PromptOption) error {
	switch f {
	case draft.FieldTherapist:
		return m.store.SetTherapist(ctx, *opt.Therapist)
	case draft.FieldService:
		return m.store.SetService(ctx, *opt.Service)
	case draft.FieldDate:
		return m.store.SetDate(ctx, *opt.Date)
	case draft.FieldTime:
		return m.store.SetTime(ctx, *opt.Time)
	case draft.FieldAddress:
		return m.store.SetAddress(ctx, *opt.Address)
	case draft.FieldPaymentMethod:
		return m.store.SetPaymentMethod(ctx, *opt.Card)
	}
	return fmt.Errorf("no draft field for %s", f)
}

// emptyOptions keeps the current step when the next one would have nothing
// to choose. An empty time list means the chosen date is unavailable; the
// date is not recorded and the dates stay on screen.
func (m *Machine) emptyOptions(current, next Step) error {
	err := &ierr.EmptyOptionsError{Step: next.String()}
	m.log.Info("no options for %s, staying on %s", next, current)
	if current == StepDateSelection {
		m.appendSystem(msgNoAvailability, true)
	} else {
		m.appendSystem(ierr.UserMessage(err), true)
	}
	return err
}

func (m *Machine) enter(step Step, prompts []PromptOption) {
	m.log.Debug("%s -> %s (%d options)", m.step, step, len(prompts))
	m.step = step
	m.prompts = prompts
	if step.selecting() {
		m.promptSets[step] = prompts
	}
	if step == StepConfirmation {
		m.confirm = newConfirmation(m)
	}
}

// abandon drops any call in flight by moving to a new generation.
func (m *Machine) abandon() {
	m.generation++
	m.busy = false
}

// leaveConfirmation closes the confirmation and reopens payment selection.
func (m *Machine) leaveConfirmation(ctx context.Context) {
	m.abandon()
	m.confirm = nil
	m.store.ClearFrom(ctx, draft.FieldPaymentMethod)
	m.step = StepPaymentSelection
	m.prompts = m.promptSets[StepPaymentSelection]
}

func (m *Machine) appendUser(text string) {
	m.transcript = append(m.transcript, ChatMessage{Sender: SenderUser, Text: text, Timestamp: m.now()})
}

func (m *Machine) appendSystem(text string, isErr bool) {
	m.transcript = append(m.transcript, ChatMessage{Sender: SenderSystem, Text: text, Timestamp: m.now(), IsError: isErr})
}
