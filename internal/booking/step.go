// Package booking drives the booking wizard: which prompts are shown, which
// backend call a selection issues, and how the draft and step advance.
package booking

import (
	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/draft"
)

// Step is the wizard's position in the booking sequence.
type Step int

const (
	StepIdle Step = iota
	StepTherapistSelection
	StepServiceSelection
	StepDateSelection
	StepTimeSelection
	StepAddressSelection
	StepPaymentSelection
	StepConfirmation
	StepSubmitting
	StepCompleted
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "Idle"
	case StepTherapistSelection:
		return "TherapistSelection"
	case StepServiceSelection:
		return "ServiceSelection"
	case StepDateSelection:
		return "DateSelection"
	case StepTimeSelection:
		return "TimeSelection"
	case StepAddressSelection:
		return "AddressSelection"
	case StepPaymentSelection:
		return "PaymentSelection"
	case StepConfirmation:
		return "Confirmation"
	case StepSubmitting:
		return "Submitting"
	case StepCompleted:
		return "Completed"
	case StepFailed:
		return "Failed"
	}
	return "Unknown"
}

// Title is the heading shown above the prompt set.
func (s Step) Title() string {
	switch s {
	case StepIdle:
		return "メニュー"
	case StepTherapistSelection:
		return "セラピストを選択"
	case StepServiceSelection:
		return "サービスを選択"
	case StepDateSelection:
		return "日付を選択"
	case StepTimeSelection:
		return "時間を選択"
	case StepAddressSelection:
		return "住所を選択"
	case StepPaymentSelection:
		return "支払方法を選択"
	case StepConfirmation, StepSubmitting, StepFailed:
		return "予約確認"
	case StepCompleted:
		return "予約完了"
	}
	return ""
}

// selecting reports whether s shows a prompt set the user picks from.
func (s Step) selecting() bool {
	return s >= StepIdle && s <= StepPaymentSelection
}

// inConfirmation reports whether the confirmation view owns s.
func (s Step) inConfirmation() bool {
	return s >= StepConfirmation
}

// transition is one row of the selection table.
type transition struct {
	messageType string
	next        Step
	// field is the draft field the selection writes; -1 for the menu.
	field draft.Field
	// options extracts the next step's prompt set from the response.
	options func(*api.ChatResponse) []PromptOption
}

var transitions = map[Step]transition{
	StepIdle: {
		messageType: api.TypeInitial,
		next:        StepTherapistSelection,
		field:       -1,
		options:     func(r *api.ChatResponse) []PromptOption { return mapOptions(r.Therapists, TherapistOption) },
	},
	StepTherapistSelection: {
		messageType: api.TypeTherapistSelection,
		next:        StepServiceSelection,
		field:       draft.FieldTherapist,
		options:     func(r *api.ChatResponse) []PromptOption { return mapOptions(r.Services, ServiceOption) },
	},
	StepServiceSelection: {
		messageType: api.TypeServiceSelection,
		next:        StepDateSelection,
		field:       draft.FieldService,
		options:     func(r *api.ChatResponse) []PromptOption { return mapOptions(r.Dates, DateOption) },
	},
	StepDateSelection: {
		messageType: api.TypeDateSelection,
		next:        StepTimeSelection,
		field:       draft.FieldDate,
		options:     func(r *api.ChatResponse) []PromptOption { return mapOptions(r.Times, TimeOption) },
	},
	StepTimeSelection: {
		messageType: api.TypeTimeSelection,
		next:        StepAddressSelection,
		field:       draft.FieldTime,
		options:     func(r *api.ChatResponse) []PromptOption { return mapOptions(r.Addresses, AddressOption) },
	},
	StepAddressSelection: {
		messageType: api.TypeAddressSelection,
		next:        StepPaymentSelection,
		field:       draft.FieldAddress,
		options:     func(r *api.ChatResponse) []PromptOption { return mapOptions(r.CreditCards, CardOption) },
	},
	StepPaymentSelection: {
		messageType: api.TypeCreditCardSelection,
		next:        StepConfirmation,
		field:       draft.FieldPaymentMethod,
	},
}
