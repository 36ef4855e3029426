package draft

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/rirakoi/internal/api"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
)

const (
	minutesPerDay = 24 * 60

	statusUnconfirmed = "unconfirmed"
)

// ToBookingPayload builds the /booking/create body. It fails only when a
// field is unset or the chosen time cannot be parsed.
func (s *Store) ToBookingPayload() (api.BookingPayload, error) {
	return BuildPayload(s.Snapshot(), s.id)
}

// BuildPayload is the pure form of ToBookingPayload.
func BuildPayload(d Draft, id Identity) (api.BookingPayload, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return api.BookingPayload{}, &ierr.IncompleteDraftError{Missing: missing}
	}

	start, err := parseClock(d.Time.Time)
	if err != nil {
		return api.BookingPayload{}, err
	}
	end, err := EndTime(d.Time.Time, d.Service.Duration)
	if err != nil {
		return api.BookingPayload{}, err
	}

	return api.BookingPayload{
		Address:         d.Address.ID,
		BookingDate:     d.Date.Date,
		Card:            d.PaymentMethod.ID,
		Customer:        api.ID(id.CustomerID),
		EndTime:         end,
		Penalty:         0,
		ServiceDuration: d.Service.Duration,
		ServiceMenuName: d.Service.Name,
		ServicePrice:    d.Service.Price,
		StartTime:       formatClock(start),
		Status:          statusUnconfirmed,
		Therapist:       d.Therapist.ID,
		UnreadFlag:      1,
		UserID:          api.ID(id.UserID),
	}, nil
}

// EndTime adds duration minutes to a 24h "HH:MM" (or "HH:MM:SS") start and
// returns "HH:MM:00", wrapping past midnight. Seconds are ignored. No
// timezone is involved.
func EndTime(start string, duration int) (string, error) {
	m, err := parseClock(start)
	if err != nil {
		return "", err
	}
	end := (m + duration) % minutesPerDay
	if end < 0 {
		end += minutesPerDay
	}
	return formatClock(end), nil
}

// parseClock returns minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}
