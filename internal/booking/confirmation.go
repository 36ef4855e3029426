package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mark3labs/rirakoi/internal/api"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPolicyNotLoaded is returned by SetAgreed before the policy text has
	// been shown.
	ErrPolicyNotLoaded = errors.New("cancellation policy has not been loaded")

	// ErrSubmitDisabled is returned by BeginSubmit when consent or a payment
	// method is missing.
	ErrSubmitDisabled = errors.New("submission is not allowed yet")

	// ErrNotCompleted is returned by Acknowledge before the booking succeeded.
	ErrNotCompleted = errors.New("booking has not completed")
)

// Phase is the confirmation view's own state.
type Phase int

const (
	PhaseViewing Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseViewing:
		return "Viewing"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseSucceeded:
		return "Succeeded"
	case PhaseFailed:
		return "Failed"
	}
	return "Unknown"
}

// Confirmation is one attempt at confirming the draft: the payment methods
// and policy text loaded for it, the consent flag and the submission.
type Confirmation struct {
	m *Machine

	phase   Phase
	loading bool

	methods       []api.PaymentMethod
	methodsErr    error
	methodsLoaded bool
	selectedID    string

	policy       string
	policyErr    error
	policyLoaded bool

	agreed    bool
	submitErr error
	result    *api.BookingResult
}

func newConfirmation(m *Machine) *Confirmation {
	return &Confirmation{m: m}
}

func (c *Confirmation) Phase() Phase                        { return c.phase }
func (c *Confirmation) Loading() bool                       { return c.loading }
func (c *Confirmation) PaymentMethods() []api.PaymentMethod { return slices.Clone(c.methods) }
func (c *Confirmation) PaymentMethodsErr() error            { return c.methodsErr }
func (c *Confirmation) PaymentMethodsLoaded() bool          { return c.methodsLoaded }
func (c *Confirmation) SelectedPaymentMethod() string       { return c.selectedID }
func (c *Confirmation) Policy() string                      { return c.policy }
func (c *Confirmation) PolicyErr() error                    { return c.policyErr }
func (c *Confirmation) PolicyLoaded() bool                  { return c.policyLoaded }
func (c *Confirmation) Agreed() bool                        { return c.agreed }
func (c *Confirmation) SubmitErr() error                    { return c.submitErr }
func (c *Confirmation) Result() *api.BookingResult          { return c.result }

// current reports whether c is still the machine's live confirmation.
func (c *Confirmation) current(gen uint64) bool {
	return c.m.confirm == c && gen == c.m.generation
}

// LoadCall fetches payment methods and policy text for a confirmation.
type LoadCall struct {
	gen        uint64
	customerID string
	backend    Backend
}

// LoadResult carries both sections; each has its own error.
type LoadResult struct {
	gen        uint64
	Methods    []api.PaymentMethod
	MethodsErr error
	Policy     string
	PolicyErr  error
}

// LoadCall starts loading. Calling it again while a load is running returns
// ErrBusy.
func (c *Confirmation) LoadCall() (*LoadCall, error) {
	if c.loading {
		return nil, ierr.ErrBusy
	}
	c.loading = true
	return &LoadCall{
		gen:        c.m.generation,
		customerID: c.m.store.Identity().CustomerID,
		backend:    c.m.backend,
	}, nil
}

// Run fetches both sections concurrently. A failure in one never cancels
// the other.
func (l *LoadCall) Run(ctx context.Context) LoadResult {
	res := LoadResult{gen: l.gen}

	var g errgroup.Group
	g.Go(func() error {
		res.Methods, res.MethodsErr = l.backend.ListPaymentMethods(ctx, l.customerID)
		return nil
	})
	g.Go(func() error {
		res.Policy, res.PolicyErr = l.backend.FetchPolicyText(ctx)
		return nil
	})
	_ = g.Wait()

	return res
}

// ApplyLoad installs a load result. A card already in the draft stays
// selected if the backend still lists it; otherwise the default payment
// method is picked: the one flagged default, else the first, else none.
func (c *Confirmation) ApplyLoad(ctx context.Context, res LoadResult) error {
	if !c.current(res.gen) {
		return ierr.ErrStale
	}
	c.loading = false

	var selectErr error
	if res.MethodsErr != nil {
		c.m.log.Warn("loading payment methods: %v", res.MethodsErr)
		c.methodsErr = res.MethodsErr
	} else {
		c.methods = res.Methods
		c.methodsErr = nil
		c.methodsLoaded = true
		selectErr = c.selectInitial(ctx)
	}

	if res.PolicyErr != nil {
		c.m.log.Warn("loading policy: %v", res.PolicyErr)
		c.policyErr = res.PolicyErr
	} else {
		c.policy = res.Policy
		c.policyErr = nil
		c.policyLoaded = true
	}

	return errors.Join(res.MethodsErr, selectErr, res.PolicyErr)
}

// selectInitial keeps the card chosen at payment selection when it is
// listed, else falls back to defaultMethod.
func (c *Confirmation) selectInitial(ctx context.Context) error {
	if chosen := c.m.store.Snapshot().PaymentMethod; chosen != nil {
		id := string(chosen.ID)
		if slices.ContainsFunc(c.methods, func(p api.PaymentMethod) bool { return p.ID == id }) {
			c.selectedID = id
			return nil
		}
	}
	pm, ok := defaultMethod(c.methods)
	if !ok {
		return nil
	}
	return c.choose(ctx, pm)
}

// Load runs LoadCall and ApplyLoad synchronously.
func (c *Confirmation) Load(ctx context.Context) error {
	call, err := c.LoadCall()
	if err != nil {
		return err
	}
	return c.ApplyLoad(ctx, call.Run(ctx))
}

func defaultMethod(methods []api.PaymentMethod) (api.PaymentMethod, bool) {
	if len(methods) == 0 {
		return api.PaymentMethod{}, false
	}
	if i := slices.IndexFunc(methods, func(p api.PaymentMethod) bool { return p.IsDefault }); i >= 0 {
		return methods[i], true
	}
	return methods[0], true
}

// SelectPaymentMethod switches the card to charge. The choice is written to
// the draft.
func (c *Confirmation) SelectPaymentMethod(ctx context.Context, id string) error {
	if c.phase == PhaseSubmitting {
		return ierr.ErrBusy
	}
	i := slices.IndexFunc(c.methods, func(p api.PaymentMethod) bool { return p.ID == id })
	if i < 0 {
		return ErrUnknownOption
	}
	if err := c.choose(ctx, c.methods[i]); err != nil {
		return err
	}
	c.edit()
	return nil
}

func (c *Confirmation) choose(ctx context.Context, pm api.PaymentMethod) error {
	card := api.CreditCard{ID: api.ID(pm.ID), Display: pm.Label(), Brand: pm.Brand, Last4: pm.Last4}
	if err := c.m.store.SetPaymentMethod(ctx, card); err != nil {
		c.m.log.Error("selecting payment method %s: %v", pm.ID, err)
		return err
	}
	c.selectedID = pm.ID
	return nil
}

// SetAgreed sets the consent flag. Consent cannot be given before the policy
// text has loaded.
func (c *Confirmation) SetAgreed(agreed bool) error {
	if c.phase == PhaseSubmitting {
		return ierr.ErrBusy
	}
	if agreed && !c.policyLoaded {
		return ErrPolicyNotLoaded
	}
	c.agreed = agreed
	c.edit()
	return nil
}

// edit moves a failed attempt back to Viewing once the user changes
// something.
func (c *Confirmation) edit() {
	if c.phase != PhaseFailed {
		return
	}
	c.phase = PhaseViewing
	c.m.step = StepConfirmation
}

// CanSubmit reports whether the submit control is enabled.
func (c *Confirmation) CanSubmit() bool {
	if c.phase != PhaseViewing && c.phase != PhaseFailed {
		return false
	}
	return c.agreed && c.selectedID != "" && !c.loading
}

// SubmitCall is a pending booking submission.
type SubmitCall struct {
	gen     uint64
	payload api.BookingPayload
	backend Backend
}

func (s *SubmitCall) Payload() api.BookingPayload { return s.payload }

// Run submits the booking. It touches no wizard state.
func (s *SubmitCall) Run(ctx context.Context) (*api.BookingResult, error) {
	return s.backend.SubmitBooking(ctx, s.payload)
}

// BeginSubmit builds the payload from the draft and moves to Submitting.
func (c *Confirmation) BeginSubmit() (*SubmitCall, error) {
	if c.phase == PhaseSubmitting {
		return nil, ierr.ErrBusy
	}
	if !c.CanSubmit() {
		return nil, ErrSubmitDisabled
	}

	payload, err := c.m.store.ToBookingPayload()
	if err != nil {
		c.m.log.Error("building booking payload: %v", err)
		return nil, fmt.Errorf("building booking payload: %w", err)
	}

	c.phase = PhaseSubmitting
	c.submitErr = nil
	c.m.step = StepSubmitting
	return &SubmitCall{gen: c.m.generation, payload: payload, backend: c.m.backend}, nil
}

// ResolveSubmit applies the submission outcome. On failure the draft and
// consent are kept so the user can retry.
func (c *Confirmation) ResolveSubmit(call *SubmitCall, res *api.BookingResult, callErr error) error {
	if !c.current(call.gen) {
		return ierr.ErrStale
	}

	if callErr != nil {
		c.m.log.Warn("booking submission failed: %v", callErr)
		c.phase = PhaseFailed
		c.submitErr = callErr
		c.m.step = StepFailed
		return callErr
	}

	c.m.log.Info("booking %s created (%s)", res.ID, res.Status)
	c.phase = PhaseSucceeded
	c.result = res
	c.m.step = StepCompleted
	c.m.appendSystem(fmt.Sprintf("予約が完了しました。予約番号: %s", res.ID), false)
	return nil
}

// Submit runs BeginSubmit, the call and ResolveSubmit synchronously.
func (c *Confirmation) Submit(ctx context.Context) error {
	call, err := c.BeginSubmit()
	if err != nil {
		return err
	}
	res, err := call.Run(ctx)
	return c.ResolveSubmit(call, res, err)
}

// Acknowledge closes a successful booking and resets the wizard.
func (c *Confirmation) Acknowledge(ctx context.Context) error {
	if c.phase != PhaseSucceeded {
		return ErrNotCompleted
	}
	return c.m.Reset(ctx)
}

// Cancel closes the confirmation and reopens payment selection. It is
// refused while a submission is in flight.
func (c *Confirmation) Cancel(ctx context.Context) error {
	if c.phase == PhaseSubmitting {
		return ierr.ErrBusy
	}
	if c.phase == PhaseSucceeded {
		return c.Acknowledge(ctx)
	}
	c.m.leaveConfirmation(ctx)
	return nil
}
