package booking

import (
	"github.com/mark3labs/rirakoi/internal/api"
)

// Kind tags which entity a PromptOption carries.
type Kind int

const (
	KindMenu Kind = iota
	KindTherapist
	KindService
	KindDate
	KindTime
	KindAddress
	KindCard
)

func (k Kind) String() string {
	switch k {
	case KindMenu:
		return "menu"
	case KindTherapist:
		return "therapist"
	case KindService:
		return "service"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindAddress:
		return "address"
	case KindCard:
		return "card"
	}
	return "unknown"
}

// MenuAction is an entry of the static idle menu.
type MenuAction string

const (
	MenuBook MenuAction = "予約"
	MenuChat MenuAction = "チャット"
)

// PromptOption is one selectable choice. Exactly the field matching Kind is
// set; options are built by the constructors below and never modified.
type PromptOption struct {
	ID    string
	Label string
	Kind  Kind

	Menu      MenuAction
	Therapist *api.Therapist
	Service   *api.Service
	Date      *api.DateOption
	Time      *api.TimeSlot
	Address   *api.Address
	Card      *api.CreditCard
}

func MenuOption(a MenuAction) PromptOption {
	return newOption(PromptOption{ID: string(a), Kind: KindMenu, Menu: a})
}

func TherapistOption(t api.Therapist) PromptOption {
	return newOption(PromptOption{ID: string(t.ID), Kind: KindTherapist, Therapist: &t})
}

func ServiceOption(s api.Service) PromptOption {
	return newOption(PromptOption{ID: string(s.ID), Kind: KindService, Service: &s})
}

func DateOption(d api.DateOption) PromptOption {
	id := string(d.ID)
	if id == "" {
		id = d.Date
	}
	return newOption(PromptOption{ID: id, Kind: KindDate, Date: &d})
}

func TimeOption(t api.TimeSlot) PromptOption {
	id := string(t.ID)
	if id == "" {
		id = t.Time
	}
	return newOption(PromptOption{ID: id, Kind: KindTime, Time: &t})
}

func AddressOption(a api.Address) PromptOption {
	return newOption(PromptOption{ID: string(a.ID), Kind: KindAddress, Address: &a})
}

func CardOption(c api.CreditCard) PromptOption {
	return newOption(PromptOption{ID: string(c.ID), Kind: KindCard, Card: &c})
}

func newOption(o PromptOption) PromptOption {
	o.Label = label(o)
	return o
}

func label(o PromptOption) string {
	switch o.Kind {
	case KindMenu:
		return string(o.Menu)
	case KindTherapist:
		return o.Therapist.Name
	case KindService:
		return o.Service.Name
	case KindDate:
		return o.Date.Date
	case KindTime:
		return o.Time.Time
	case KindAddress:
		return o.Address.Address
	case KindCard:
		return o.Card.Label()
	}
	panic("booking: unhandled prompt kind " + o.Kind.String())
}

// kindFor is the option kind a step's prompt set holds.
func kindFor(s Step) Kind {
	switch s {
	case StepTherapistSelection:
		return KindTherapist
	case StepServiceSelection:
		return KindService
	case StepDateSelection:
		return KindDate
	case StepTimeSelection:
		return KindTime
	case StepAddressSelection:
		return KindAddress
	case StepPaymentSelection:
		return KindCard
	}
	return KindMenu
}

func mapOptions[T any](items []T, build func(T) PromptOption) []PromptOption {
	out := make([]PromptOption, 0, len(items))
	for _, it := range items {
		out = append(out, build(it))
	}
	return out
}

func menuOptions() []PromptOption {
	return []PromptOption{MenuOption(MenuBook), MenuOption(MenuChat)}
}
