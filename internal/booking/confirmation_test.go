package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/draft"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedConfirmation(t *testing.T, backend *fakeBackend) (*Machine, *Confirmation) {
	t.Helper()
	m, _ := newTestMachine(t, backend)
	toConfirmation(t, m)
	c := m.Confirmation()
	require.NoError(t, c.Load(context.Background()))
	return m, c
}

func TestLoad_KeepsChosenMethod(t *testing.T) {
	backend := newFakeBackend()
	m, c := loadedConfirmation(t, backend)

	// pm_1 was picked at payment selection; pm_2 is only the default
	assert.Equal(t, PhaseViewing, c.Phase())
	assert.Len(t, c.PaymentMethods(), 2)
	assert.Equal(t, "pm_1", c.SelectedPaymentMethod())
	assert.Equal(t, api.ID("pm_1"), m.Draft().PaymentMethod.ID)
	assert.True(t, c.PolicyLoaded())
	assert.Contains(t, c.Policy(), "キャンセル")

	require.NoError(t, c.SetAgreed(true))
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, api.ID("pm_1"), backend.submitted[0].Card)
}

func TestLoad_UnlistedChoiceFallsBackToDefault(t *testing.T) {
	backend := newFakeBackend()
	backend.replies[api.TypeAddressSelection].CreditCards = []api.CreditCard{{ID: "pm_gone", Display: "Visa **** 4242"}}
	m, c := loadedConfirmation(t, backend)

	assert.Equal(t, "pm_2", c.SelectedPaymentMethod())
	assert.Equal(t, api.ID("pm_2"), m.Draft().PaymentMethod.ID)
}

func TestLoad_SelectionFailureStillInstallsPolicy(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())
	toConfirmation(t, m)
	c := m.Confirmation()

	call, err := c.LoadCall()
	require.NoError(t, err)
	res := call.Run(context.Background())

	// with the draft emptied underneath, no card can be recorded
	require.NoError(t, m.store.Reset(context.Background()))

	err = c.ApplyLoad(context.Background(), res)
	var seqErr *ierr.SequenceError
	require.ErrorAs(t, err, &seqErr)
	assert.Empty(t, c.SelectedPaymentMethod())
	assert.True(t, c.PaymentMethodsLoaded())
	assert.True(t, c.PolicyLoaded())
	assert.Contains(t, c.Policy(), "キャンセル")
	assert.False(t, c.Loading())
}

func TestDefaultMethod(t *testing.T) {
	_, ok := defaultMethod(nil)
	assert.False(t, ok)

	pm, ok := defaultMethod([]api.PaymentMethod{{ID: "a"}, {ID: "b"}})
	require.True(t, ok)
	assert.Equal(t, "a", pm.ID)

	pm, ok = defaultMethod([]api.PaymentMethod{{ID: "a"}, {ID: "b", IsDefault: true}})
	require.True(t, ok)
	assert.Equal(t, "b", pm.ID)
}

func TestLoad_SectionsFailIndependently(t *testing.T) {
	backend := newFakeBackend()
	backend.policyErr = &ierr.NetworkError{Op: "fetch policy", StatusCode: 503}
	m, _ := newTestMachine(t, backend)
	toConfirmation(t, m)
	c := m.Confirmation()

	err := c.Load(context.Background())
	var netErr *ierr.NetworkError
	require.ErrorAs(t, err, &netErr)

	assert.True(t, c.PaymentMethodsLoaded())
	assert.Equal(t, "pm_1", c.SelectedPaymentMethod())
	assert.False(t, c.PolicyLoaded())
	assert.Error(t, c.PolicyErr())

	assert.ErrorIs(t, c.SetAgreed(true), ErrPolicyNotLoaded)
	assert.False(t, c.CanSubmit())

	// retry only needs the policy to come back
	backend.policyErr = nil
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.SetAgreed(true))
	assert.True(t, c.CanSubmit())
}

func TestLoad_NoMethodsKeepsSubmitDisabled(t *testing.T) {
	backend := newFakeBackend()
	backend.methods = nil
	_, c := loadedConfirmation(t, backend)

	require.NoError(t, c.SetAgreed(true))
	assert.Empty(t, c.SelectedPaymentMethod())
	assert.False(t, c.CanSubmit())
}

func TestLoad_StaleAfterCancel(t *testing.T) {
	m, _ := newTestMachine(t, newFakeBackend())
	toConfirmation(t, m)
	c := m.Confirmation()

	call, err := c.LoadCall()
	require.NoError(t, err)
	_, err = c.LoadCall()
	assert.ErrorIs(t, err, ierr.ErrBusy)

	res := call.Run(context.Background())
	require.NoError(t, c.Cancel(context.Background()))

	assert.ErrorIs(t, c.ApplyLoad(context.Background(), res), ierr.ErrStale)
	assert.Equal(t, StepPaymentSelection, m.Step())
	assert.Nil(t, m.Draft().PaymentMethod)
	assert.Nil(t, m.Confirmation())
}

func TestConsentRequired(t *testing.T) {
	backend := newFakeBackend()
	_, c := loadedConfirmation(t, backend)

	assert.False(t, c.Agreed())
	assert.False(t, c.CanSubmit())

	_, err := c.BeginSubmit()
	assert.ErrorIs(t, err, ErrSubmitDisabled)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrSubmitDisabled)
	assert.Empty(t, backend.submitted)
}

func TestSubmit_Success(t *testing.T) {
	backend := newFakeBackend()
	m, c := loadedConfirmation(t, backend)
	require.NoError(t, c.SelectPaymentMethod(context.Background(), "pm_1"))
	require.NoError(t, c.SetAgreed(true))

	call, err := c.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, StepSubmitting, m.Step())
	assert.Equal(t, PhaseSubmitting, c.Phase())
	assert.False(t, c.CanSubmit())
	assert.ErrorIs(t, c.SetAgreed(false), ierr.ErrBusy)
	assert.False(t, m.Back(context.Background()))

	p := call.Payload()
	assert.Equal(t, api.ID("pm_1"), p.Card)
	assert.Equal(t, "14:30:00", p.StartTime)
	assert.Equal(t, "15:30:00", p.EndTime)
	assert.Equal(t, "unconfirmed", p.Status)

	res, err := call.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.ResolveSubmit(call, res, nil))

	assert.Equal(t, PhaseSucceeded, c.Phase())
	assert.Equal(t, StepCompleted, m.Step())
	assert.Equal(t, api.ID("101"), c.Result().ID)
	require.Len(t, backend.submitted, 1)

	require.NoError(t, c.Acknowledge(context.Background()))
	assert.Equal(t, StepIdle, m.Step())
	assert.True(t, m.Draft().Empty())
	assert.Empty(t, m.Transcript())
}

func TestSubmit_RejectedKeepsModalOpen(t *testing.T) {
	backend := newFakeBackend()
	attempts := 0
	backend.submit = func(api.BookingPayload) (*api.BookingResult, error) {
		attempts++
		if attempts == 1 {
			return nil, &ierr.BookingSubmissionError{Reason: "slot taken", StatusCode: 409}
		}
		return &api.BookingResult{ID: "102", Status: "unconfirmed"}, nil
	}
	m, c := loadedConfirmation(t, backend)
	require.NoError(t, c.SetAgreed(true))
	before := m.Draft()

	err := c.Submit(context.Background())
	var subErr *ierr.BookingSubmissionError
	require.ErrorAs(t, err, &subErr)

	assert.Equal(t, PhaseFailed, c.Phase())
	assert.Equal(t, StepFailed, m.Step())
	assert.Same(t, c, m.Confirmation())
	assert.Equal(t, "slot taken", ierr.UserMessage(c.SubmitErr()))
	assert.Equal(t, before, m.Draft())
	assert.True(t, c.Agreed())
	assert.True(t, c.CanSubmit())

	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, PhaseSucceeded, c.Phase())
	assert.Nil(t, c.SubmitErr())
	assert.Equal(t, 2, attempts)
}

func TestFailedThenEdit_ReturnsToViewing(t *testing.T) {
	backend := newFakeBackend()
	backend.submit = func(api.BookingPayload) (*api.BookingResult, error) {
		return nil, &ierr.BookingSubmissionError{Reason: "card declined"}
	}
	m, c := loadedConfirmation(t, backend)
	require.NoError(t, c.SetAgreed(true))
	require.Error(t, c.Submit(context.Background()))

	require.NoError(t, c.SelectPaymentMethod(context.Background(), "pm_2"))
	assert.Equal(t, PhaseViewing, c.Phase())
	assert.Equal(t, StepConfirmation, m.Step())
	assert.Equal(t, api.ID("pm_2"), m.Draft().PaymentMethod.ID)

	assert.ErrorIs(t, c.SelectPaymentMethod(context.Background(), "pm_404"), ErrUnknownOption)
}

func TestSubmit_NetworkFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.submit = func(api.BookingPayload) (*api.BookingResult, error) {
		return nil, &ierr.NetworkError{Op: "submit booking", Err: context.DeadlineExceeded}
	}
	_, c := loadedConfirmation(t, backend)
	require.NoError(t, c.SetAgreed(true))

	err := c.Submit(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, PhaseFailed, c.Phase())
	assert.True(t, ierr.Retryable(c.SubmitErr()))
}

func TestCancel(t *testing.T) {
	m, c := loadedConfirmation(t, newFakeBackend())
	require.NoError(t, c.Cancel(context.Background()))

	assert.Equal(t, StepPaymentSelection, m.Step())
	assert.Equal(t, []string{"Visa **** 4242"}, labels(m.Prompts()))
	assert.Nil(t, m.Draft().PaymentMethod)
	assert.NotNil(t, m.Draft().Address)

	// choosing the card again opens a fresh confirmation
	pick(t, m, "Visa **** 4242")
	assert.Equal(t, StepConfirmation, m.Step())
	assert.NotSame(t, c, m.Confirmation())
	assert.False(t, m.Confirmation().Agreed())
}

func TestAcknowledge_OnlyAfterSuccess(t *testing.T) {
	_, c := loadedConfirmation(t, newFakeBackend())
	assert.ErrorIs(t, c.Acknowledge(context.Background()), ErrNotCompleted)
}

func TestSummary(t *testing.T) {
	rows := Summary(draft.Draft{})
	require.Len(t, rows, 6)
	for _, r := range rows {
		assert.Equal(t, "-", r.Value, r.Label)
	}

	m, _ := loadedConfirmation(t, newFakeBackend())
	rows = Summary(m.Draft())
	assert.Equal(t, SummaryRow{Label: "セラピスト", Value: "田中"}, rows[0])
	assert.Equal(t, SummaryRow{Label: "サービス", Value: "マッサージ (60分)"}, rows[1])
	assert.Equal(t, "14:30", rows[3].Value)
	assert.Equal(t, "Mastercard **** 4444 (01/26)", rows[5].Value)
}

func TestResolveSubmit_StaleAfterReset(t *testing.T) {
	backend := newFakeBackend()
	m, c := loadedConfirmation(t, backend)
	require.NoError(t, c.SetAgreed(true))

	call, err := c.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, StepSubmitting, m.Step())
	res, err := call.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Reset(context.Background()))
	assert.ErrorIs(t, c.ResolveSubmit(call, res, nil), ierr.ErrStale)

	assert.Equal(t, StepIdle, m.Step())
	assert.Nil(t, m.Confirmation())
	assert.Nil(t, c.Result())
	assert.True(t, m.Draft().Empty())
	for _, msg := range m.Transcript() {
		assert.NotContains(t, msg.Text, "予約が完了しました")
	}
}
