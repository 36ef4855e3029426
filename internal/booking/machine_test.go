package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/cache"
	"github.com/mark3labs/rirakoi/internal/draft"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers SendMessage from a per-type table and records every
// request.
type fakeBackend struct {
	mu        sync.Mutex
	replies   map[string]*api.ChatResponse
	errs      map[string]error
	requests  []api.MessageRequest
	methods   []api.PaymentMethod
	methodErr error
	policy    string
	policyErr error
	submit    func(api.BookingPayload) (*api.BookingResult, error)
	submitted []api.BookingPayload
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		replies: map[string]*api.ChatResponse{
			api.TypeInitial:             reply("セラピストを選択してください。", func(r *api.ChatResponse) { r.Therapists = []api.Therapist{{ID: "7", Name: "田中"}, {ID: "8", Name: "佐藤"}} }),
			api.TypeTherapistSelection:  reply("サービスを選択してください。", func(r *api.ChatResponse) { r.Services = []api.Service{{ID: "1", Name: "マッサージ", Duration: 60, Price: 8000}} }),
			api.TypeServiceSelection:    reply("日付を選択してください。", func(r *api.ChatResponse) { r.Dates = []api.DateOption{{Date: "2025-03-01"}, {Date: "2025-03-02"}} }),
			api.TypeDateSelection:       reply("時間を選択してください。", func(r *api.ChatResponse) { r.Times = []api.TimeSlot{{Time: "14:30"}, {Time: "23:45"}} }),
			api.TypeTimeSelection:       reply("住所を選択してください。", func(r *api.ChatResponse) { r.Addresses = []api.Address{{ID: "4", Address: "東京都渋谷区1-2-3"}} }),
			api.TypeAddressSelection:    reply("支払方法を選択してください。", func(r *api.ChatResponse) { r.CreditCards = []api.CreditCard{{ID: "pm_1", Display: "Visa **** 4242"}} }),
			api.TypeCreditCardSelection: reply("内容をご確認ください。", nil),
			api.TypeChat:                reply("営業時間は10時から22時です。", nil),
		},
		errs: map[string]error{},
		methods: []api.PaymentMethod{
			{ID: "pm_1", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2027},
			{ID: "pm_2", Brand: "mastercard", Last4: "4444", ExpMonth: 1, ExpYear: 2026, IsDefault: true},
		},
		policy: "前日のキャンセルは50%、当日は100%を申し受けます。",
	}
}

func reply(text string, fill func(*api.ChatResponse)) *api.ChatResponse {
	r := &api.ChatResponse{
		Response:    text,
		Therapists:  []api.Therapist{},
		Services:    []api.Service{},
		Dates:       []api.DateOption{},
		Times:       []api.TimeSlot{},
		Addresses:   []api.Address{},
		CreditCards: []api.CreditCard{},
	}
	if fill != nil {
		fill(r)
	}
	return r
}

func (f *fakeBackend) SendMessage(_ context.Context, req api.MessageRequest) (*api.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errs[req.Type]; err != nil {
		return nil, err
	}
	return f.replies[req.Type], nil
}

func (f *fakeBackend) ListPaymentMethods(context.Context, string) ([]api.PaymentMethod, error) {
	if f.methodErr != nil {
		return nil, f.methodErr
	}
	return f.methods, nil
}

func (f *fakeBackend) FetchPolicyText(context.Context) (string, error) {
	if f.policyErr != nil {
		return "", f.policyErr
	}
	return f.policy, nil
}

func (f *fakeBackend) SubmitBooking(_ context.Context, p api.BookingPayload) (*api.BookingResult, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, p)
	f.mu.Unlock()
	if f.submit != nil {
		return f.submit(p)
	}
	return &api.BookingResult{ID: "101", Status: "unconfirmed"}, nil
}

func (f *fakeBackend) lastRequest() api.MessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestMachine(t *testing.T, backend *fakeBackend) (*Machine, *cache.Memory) {
	t.Helper()
	mem := cache.NewMemory()
	store := draft.New(mem, draft.Identity{CustomerID: "15", UserID: "1"})
	clock := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	return NewMachine(backend, store, WithClock(func() time.Time { return clock })), mem
}

// pick chooses the prompt with the given label.
func pick(t *testing.T, m *Machine, label string) {
	t.Helper()
	for _, p := range m.Prompts() {
		if p.Label == label {
			require.NoError(t, m.Choose(context.Background(), p))
			return
		}
	}
	t.Fatalf("no prompt %q at %s", label, m.Step())
}

func labels(opts []PromptOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Label)
	}
	return out
}

// toConfirmation walks the happy path up to the confirmation step.
func toConfirmation(t *testing.T, m *Machine) {
	t.Helper()
	pick(t, m, "予約")
	pick(t, m, "田中")
	pick(t, m, "マッサージ")
	pick(t, m, "2025-03-01")
	pick(t, m, "14:30")
	pick(t, m, "東京都渋谷区1-2-3")
	pick(t, m, "Visa **** 4242")
	require.Equal(t, StepConfirmation, m.Step())
}

func TestNewMachine_StartsIdleWithMenu(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())
	assert.Equal(t, StepIdle, m.Step())
	assert.Equal(t, []string{"予約", "チャット"}, labels(m.Prompts()))
	assert.Empty(t, m.Transcript())
}

func TestSelectTherapist_AdvancesToServices(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")
	require.Equal(t, StepTherapistSelection, m.Step())

	pick(t, m, "田中")

	req := backend.lastRequest()
	assert.Equal(t, "田中", req.Message)
	assert.Equal(t, api.TypeTherapistSelection, req.Type)

	assert.Equal(t, StepServiceSelection, m.Step())
	prompts := m.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "マッサージ", prompts[0].Label)
	assert.Equal(t, KindService, prompts[0].Kind)
	assert.Equal(t, "田中", m.Draft().Therapist.Name)

	tr := m.Transcript()
	last := tr[len(tr)-2:]
	assert.Equal(t, ChatMessage{Sender: SenderUser, Text: "田中", Timestamp: last[0].Timestamp}, last[0])
	assert.Equal(t, SenderSystem, last[1].Sender)
	assert.Equal(t, "サービスを選択してください。", last[1].Text)
}

func TestFullFlow_StepsNeverRegress(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())

	prev := m.Step()
	for _, label := range []string{"予約", "田中", "マッサージ", "2025-03-01", "14:30", "東京都渋谷区1-2-3", "Visa **** 4242"} {
		pick(t, m, label)
		assert.Greater(t, m.Step(), prev, "selecting %s", label)
		prev = m.Step()
	}
	assert.Equal(t, StepConfirmation, m.Step())
	assert.NotNil(t, m.Confirmation())
	assert.Empty(t, m.Draft().Missing())
}

func TestDateSelection_SendsRequiredContext(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")
	pick(t, m, "田中")
	pick(t, m, "マッサージ")
	pick(t, m, "2025-03-02")

	req := backend.lastRequest()
	assert.Equal(t, api.TypeDateSelection, req.Type)
	assert.Equal(t, "7", req.Context["therapist_id"])
	assert.Equal(t, "2025-03-02", req.Context["date"])
	assert.Equal(t, 60, req.Context["service_duration"])
	assert.Equal(t, "15", req.Context["customer_id"])
}

func TestNetworkError_LeavesDraftAndStep(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")

	netErr := &ierr.NetworkError{Op: "send message", StatusCode: 502}
	backend.errs[api.TypeTherapistSelection] = netErr

	opt := m.Prompts()[0]
	err := m.Choose(context.Background(), opt)
	require.ErrorAs(t, err, &netErr)

	assert.Equal(t, StepTherapistSelection, m.Step())
	assert.Nil(t, m.Draft().Therapist)
	assert.False(t, m.Busy())

	tr := m.Transcript()
	last := tr[len(tr)-1]
	assert.True(t, last.IsError)
	assert.Equal(t, "メッセージの送信に失敗しました。もう一度お試しください。", last.Text)

	// same step can be retried
	delete(backend.errs, api.TypeTherapistSelection)
	require.NoError(t, m.Choose(context.Background(), opt))
	assert.Equal(t, StepServiceSelection, m.Step())
}

func TestEmptyOptions_StaysOnCurrentStep(t *testing.T) {
	backend := newFakeBackend()
	backend.replies[api.TypeTherapistSelection] = reply("申し訳ありません。", nil)
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")
	before := m.Prompts()

	err := m.Choose(context.Background(), before[0])
	var emptyErr *ierr.EmptyOptionsError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "ServiceSelection", emptyErr.Step)

	assert.Equal(t, StepTherapistSelection, m.Step())
	assert.Equal(t, before, m.Prompts())
	assert.Nil(t, m.Draft().Therapist)
	assert.True(t, m.Transcript()[len(m.Transcript())-1].IsError)
}

func TestEmptyTimes_RegressesToDateSelection(t *testing.T) {
	backend := newFakeBackend()
	backend.replies[api.TypeDateSelection] = reply("", nil)
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")
	pick(t, m, "田中")
	pick(t, m, "マッサージ")

	err := m.Choose(context.Background(), m.Prompts()[0])
	var emptyErr *ierr.EmptyOptionsError
	require.ErrorAs(t, err, &emptyErr)

	assert.Equal(t, StepDateSelection, m.Step())
	assert.Equal(t, []string{"2025-03-01", "2025-03-02"}, labels(m.Prompts()))
	assert.Nil(t, m.Draft().Date)
	last := m.Transcript()[len(m.Transcript())-1]
	assert.Equal(t, msgNoAvailability, last.Text)
}

func TestStaleResponse_IsDropped(t *testing.T) {
	m, mem := newTestMachine(t, newFakeBackend())
	pick(t, m, "予約")

	call, err := m.Select(m.Prompts()[0])
	require.NoError(t, err)
	resp, err := call.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Reset(context.Background()))
	err = m.Resolve(context.Background(), call, resp, nil)
	assert.ErrorIs(t, err, ierr.ErrStale)

	assert.Equal(t, StepIdle, m.Step())
	assert.True(t, m.Draft().Empty())
	assert.Empty(t, m.Transcript())
	assert.Zero(t, mem.Len())
}

func TestStaleResponse_AfterBack(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())
	pick(t, m, "予約")
	pick(t, m, "田中")

	call, err := m.Select(m.Prompts()[0])
	require.NoError(t, err)
	require.True(t, m.Back(context.Background()))

	resp, _ := call.Run(context.Background())
	assert.ErrorIs(t, m.Resolve(context.Background(), call, resp, nil), ierr.ErrStale)
	assert.Equal(t, StepTherapistSelection, m.Step())
	assert.Nil(t, m.Draft().Service)
}

func TestBusy_RefusesSecondAction(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")

	call, err := m.Select(m.Prompts()[0])
	require.NoError(t, err)
	assert.True(t, m.Busy())

	_, err = m.Select(m.Prompts()[1])
	assert.ErrorIs(t, err, ierr.ErrBusy)
	_, err = m.SendText("こんにちは")
	assert.ErrorIs(t, err, ierr.ErrBusy)

	resp, err := call.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Resolve(context.Background(), call, resp, nil))
	assert.False(t, m.Busy())
	assert.Equal(t, "田中", m.Draft().Therapist.Name)
}

func TestSelect_RejectsForeignOption(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())
	pick(t, m, "予約")

	_, err := m.Select(TherapistOption(api.Therapist{ID: "99", Name: "山田"}))
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, err = m.Select(MenuOption(MenuBook))
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.False(t, m.Busy())
}

func TestFreeText_DoesNotChangeStep(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestMachine(t, backend)
	pick(t, m, "予約")
	pick(t, m, "田中")

	require.NoError(t, m.Chat(context.Background(), "  営業時間は？ "))

	req := backend.lastRequest()
	assert.Equal(t, api.TypeChat, req.Type)
	assert.Equal(t, "営業時間は？", req.Message)
	assert.Equal(t, StepServiceSelection, m.Step())
	assert.Equal(t, []string{"マッサージ"}, labels(m.Prompts()))

	_, err := m.SendText("   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestChatMenu_IsLocal(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestMachine(t, backend)

	call, err := m.Select(MenuOption(MenuChat))
	require.NoError(t, err)
	assert.Nil(t, call)
	assert.Empty(t, backend.requests)
	assert.Equal(t, StepIdle, m.Step())
	assert.Len(t, m.Transcript(), 2)
}

func TestBack_ClearsFromReturnedStep(t *testing.T) {
	m, mem := newTestMachine(t, newFakeBackend())
	pick(t, m, "予約")
	pick(t, m, "田中")
	pick(t, m, "マッサージ")
	pick(t, m, "2025-03-01")
	require.Equal(t, StepTimeSelection, m.Step())

	require.True(t, m.Back(context.Background()))
	assert.Equal(t, StepDateSelection, m.Step())
	assert.Equal(t, []string{"2025-03-01", "2025-03-02"}, labels(m.Prompts()))
	assert.Nil(t, m.Draft().Date)
	assert.NotNil(t, m.Draft().Service)
	assert.Equal(t, 2, mem.Len())

	require.True(t, m.Back(context.Background()))
	require.True(t, m.Back(context.Background()))
	require.True(t, m.Back(context.Background()))
	assert.Equal(t, StepIdle, m.Step())
	assert.False(t, m.Back(context.Background()))
	assert.True(t, m.Draft().Empty())
}

func TestReset_IsTotal(t *testing.T) {
	m, mem := newTestMachine(t, newFakeBackend())
	toConfirmation(t, m)
	require.NotZero(t, mem.Len())

	require.NoError(t, m.Reset(context.Background()))

	assert.Equal(t, StepIdle, m.Step())
	assert.True(t, m.Draft().Empty())
	assert.Empty(t, m.Transcript())
	assert.Zero(t, mem.Len())
	assert.Nil(t, m.Confirmation())
	assert.Equal(t, []string{"予約", "チャット"}, labels(m.Prompts()))
}

func TestResolve_SequenceErrorSurfacesGeneric(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())
	pick(t, m, "予約")
	pick(t, m, "田中")

	call, err := m.Select(m.Prompts()[0])
	require.NoError(t, err)
	resp, _ := call.Run(context.Background())

	// wipe the draft underneath the machine so the service has no therapist
	m.store.ClearFrom(context.Background(), draft.FieldTherapist)

	err = m.Resolve(context.Background(), call, resp, nil)
	var seqErr *ierr.SequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.Equal(t, StepServiceSelection, m.Step())
	assert.Equal(t, "エラーが発生しました。最初からやり直してください。", m.Transcript()[len(m.Transcript())-1].Text)
}
