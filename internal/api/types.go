package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Message types sent with SendMessage, one per wizard step.
const (
	TypeInitial             = "initial"
	TypeTherapistSelection  = "therapist_selection"
	TypeServiceSelection    = "service_selection"
	TypeDateSelection       = "date_selection"
	TypeTimeSelection       = "time_selection"
	TypeAddressSelection    = "address_selection"
	TypeCreditCardSelection = "credit_card_selection"
	TypeChat                = "chat"
)

// ID accepts both JSON numbers and strings; the backend is not consistent.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers so the backend sees what it sent.
func (id ID) MarshalJSON() ([]byte, error) {
	// Only canonical integers go out bare; "007" or "+5" would not be JSON.
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type Therapist struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"` // minutes
	Price    int    `json:"price"`
}

// DateOption is a bookable day, YYYY-MM-DD.
type DateOption struct {
	ID   ID     `json:"id,omitempty"`
	Date string `json:"date"`
}

// UnmarshalJSON accepts "2025-03-01" as well as {"date": "2025-03-01"}.
func (d *DateOption) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*d = DateOption{Date: s}
		return nil
	}
	type plain DateOption
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("date option: %w", err)
	}
	*d = DateOption(p)
	return nil
}

// TimeSlot is a start time, HH:MM in 24h.
type TimeSlot struct {
	ID   ID     `json:"id,omitempty"`
	Time string `json:"time"`
}

// UnmarshalJSON accepts "14:30" as well as {"time": "14:30"}.
func (t *TimeSlot) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*t = TimeSlot{Time: s}
		return nil
	}
	type plain TimeSlot
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("time slot: %w", err)
	}
	*t = TimeSlot(p)
	return nil
}

type Address struct {
	ID      ID     `json:"id"`
	Address string `json:"address"`
}

// CreditCard is a stored card as presented by the chat endpoint.
type CreditCard struct {
	ID      ID     `json:"id"`
	Display string `json:"display"`
	Brand   string `json:"brand,omitempty"`
	Last4   string `json:"last4,omitempty"`
}

// Label falls back to brand/last4 when the backend sends no display text.
func (c CreditCard) Label() string {
	if c.Display != "" {
		return c.Display
	}
	if c.Last4 != "" {
		return strings.TrimSpace(c.Brand + " **** " + c.Last4)
	}
	return string(c.ID)
}

// PaymentMethod is a card held by the payment processor. Only the brand,
// last four digits and expiry ever reach this client.
type PaymentMethod struct {
	ID        string
	Brand     string
	Last4     string
	ExpMonth  int
	ExpYear   int
	IsDefault bool
}

// Label renders "Visa **** 4242 (12/27)".
func (p PaymentMethod) Label() string {
	brand := p.Brand
	if r, size := utf8.DecodeRuneInString(brand); size > 0 {
		brand = string(unicode.ToUpper(r)) + brand[size:]
	}
	return fmt.Sprintf("%s **** %s (%02d/%02d)", brand, p.Last4, p.ExpMonth, p.ExpYear%100)
}

// MessageRequest is the body of POST /chat/send_message/.
type MessageRequest struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Context map[string]any `json:"context"`
}

// ChatResponse is the normalized reply. Every slice is non-nil.
type ChatResponse struct {
	Response    string
	Therapists  []Therapist
	Services    []Service
	Dates       []DateOption
	Times       []TimeSlot
	Addresses   []Address
	CreditCards []CreditCard
}

// BookingPayload is the body of POST /booking/create.
type BookingPayload struct {
	Address         ID     `json:"address"`
	BookingDate     string `json:"booking_date"`
	Card            ID     `json:"card"`
	Customer        ID     `json:"customer"`
	EndTime         string `json:"end_time"`
	Penalty         int    `json:"penalty"`
	ServiceDuration int    `json:"service_duration"`
	ServiceMenuName string `json:"service_menu_name"`
	ServicePrice    int    `json:"service_price"`
	StartTime       string `json:"start_time"`
	Status          string `json:"status"`
	Therapist       ID     `json:"therapist"`
	UnreadFlag      int    `json:"unread_flag"`
	UserID          ID     `json:"user_id"`
}

// BookingResult is the backend's acknowledgement of a created booking.
type BookingResult struct {
	ID     ID     `json:"id"`
	Status string `json:"status"`
}

type chatResponseWire struct {
	Response    string       `json:"response"`
	Therapists  []Therapist  `json:"therapists"`
	Services    []Service    `json:"services"`
	Dates       []DateOption `json:"dates"`
	Times       []TimeSlot   `json:"times"`
	Addresses   []Address    `json:"addresses"`
	CreditCards []CreditCard `json:"credit_cards"`
}

type paymentListRequest struct {
	CustomerID string `json:"customer_id"`
}

type paymentListResponse struct {
	Cards struct {
		Data []struct {
			ID       string `json:"id"`
			Brand    string `json:"brand"`
			Last4    string `json:"last4"`
			ExpMonth int    `json:"exp_month"`
			ExpYear  int    `json:"exp_year"`
		} `json:"data"`
	} `json:"cards"`
	DefaultCard string `json:"default_card"`
}

type termsEntry struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type bookingResponse struct {
	ID      ID     `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func bareString(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}
