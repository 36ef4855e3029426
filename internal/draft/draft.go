// Package draft holds the booking-in-progress and mirrors every chosen field
// to a per-field cache.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/cache"
	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/mark3labs/rirakoi/internal/logger"
)

// Field identifies one draft field. Fields are ordered: each requires every
// field before it.
type Field int

const (
	FieldTherapist Field = iota
	FieldService
	FieldDate
	FieldTime
	FieldAddress
	FieldPaymentMethod
	fieldCount
)

// Fields lists every field in booking order.
var Fields = []Field{FieldTherapist, FieldService, FieldDate, FieldTime, FieldAddress, FieldPaymentMethod}

func (f Field) String() string {
	switch f {
	case FieldTherapist:
		return "therapist"
	case FieldService:
		return "service"
	case FieldDate:
		return "date"
	case FieldTime:
		return "time"
	case FieldAddress:
		return "address"
	case FieldPaymentMethod:
		return "payment method"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// CacheKey is the per-field cache key.
func (f Field) CacheKey() string {
	switch f {
	case FieldTherapist:
		return "selectedTherapist"
	case FieldService:
		return "selectedService"
	case FieldDate:
		return "selectedDate"
	case FieldTime:
		return "selectedTime"
	case FieldAddress:
		return "selectedAddress"
	case FieldPaymentMethod:
		return "selectedCreditCard"
	}
	return ""
}

// Draft is a booking in progress. A nil field has not been chosen.
type Draft struct {
	Therapist     *api.Therapist  `json:"therapist,omitempty"`
	Service       *api.Service    `json:"service,omitempty"`
	Date          *api.DateOption `json:"date,omitempty"`
	Time          *api.TimeSlot   `json:"time,omitempty"`
	Address       *api.Address    `json:"address,omitempty"`
	PaymentMethod *api.CreditCard `json:"payment_method,omitempty"`
}

// Has reports whether f is set.
func (d Draft) Has(f Field) bool {
	switch f {
	case FieldTherapist:
		return d.Therapist != nil
	case FieldService:
		return d.Service != nil
	case FieldDate:
		return d.Date != nil
	case FieldTime:
		return d.Time != nil
	case FieldAddress:
		return d.Address != nil
	case FieldPaymentMethod:
		return d.PaymentMethod != nil
	}
	return false
}

// Missing lists the unset fields in booking order.
func (d Draft) Missing() []string {
	var missing []string
	for _, f := range Fields {
		if !d.Has(f) {
			missing = append(missing, f.String())
		}
	}
	return missing
}

// Empty reports whether no field is set.
func (d Draft) Empty() bool {
	return len(d.Missing()) == int(fieldCount)
}

func (d *Draft) clear(f Field) {
	switch f {
	case FieldTherapist:
		d.Therapist = nil
	case FieldService:
		d.Service = nil
	case FieldDate:
		d.Date = nil
	case FieldTime:
		d.Time = nil
	case FieldAddress:
		d.Address = nil
	case FieldPaymentMethod:
		d.PaymentMethod = nil
	}
}

// Identity is the customer the draft is booked for.
type Identity struct {
	CustomerID string
	UserID     string
}

// Store owns a Draft and its cache mirror.
type Store struct {
	mu    sync.Mutex
	draft Draft
	cache cache.Store
	id    Identity
	log   *logger.Logger
}

// New creates an empty store. A nil cache keeps selections in memory only.
func New(c cache.Store, id Identity) *Store {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Store{cache: c, id: id, log: logger.With("draft")}
}

// Identity returns the customer the store books for.
func (s *Store) Identity() Identity { return s.id }

// Snapshot returns a copy of the current draft.
func (s *Store) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Store) SetTherapist(ctx context.Context, v api.Therapist) error {
	return s.set(ctx, FieldTherapist, v, func(d *Draft) { d.Therapist = &v })
}

func (s *Store) SetService(ctx context.Context, v api.Service) error {
	return s.set(ctx, FieldService, v, func(d *Draft) { d.Service = &v })
}

func (s *Store) SetDate(ctx context.Context, v api.DateOption) error {
	return s.set(ctx, FieldDate, v, func(d *Draft) { d.Date = &v })
}

func (s *Store) SetTime(ctx context.Context, v api.TimeSlot) error {
	return s.set(ctx, FieldTime, v, func(d *Draft) { d.Time = &v })
}

func (s *Store) SetAddress(ctx context.Context, v api.Address) error {
	return s.set(ctx, FieldAddress, v, func(d *Draft) { d.Address = &v })
}

func (s *Store) SetPaymentMethod(ctx context.Context, v api.CreditCard) error {
	return s.set(ctx, FieldPaymentMethod, v, func(d *Draft) { d.PaymentMethod = &v })
}

// set checks that every upstream field is present, assigns, then mirrors the
// value to the cache. A failed cache write does not undo the assignment.
func (s *Store) set(ctx context.Context, f Field, value any, assign func(*Draft)) error {
	s.mu.Lock()
	for _, up := range Fields[:f] {
		if !s.draft.Has(up) {
			s.mu.Unlock()
			return &ierr.SequenceError{Field: f.String(), Missing: up.String()}
		}
	}
	assign(&s.draft)
	s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("encoding %s for cache: %v", f.CacheKey(), err)
		return nil
	}
	if err := s.cache.Put(ctx, f.CacheKey(), data); err != nil {
		s.log.Warn("caching %s: %v", f.CacheKey(), err)
	}
	return nil
}

// ClearFrom unsets f and every field after it.
func (s *Store) ClearFrom(ctx context.Context, f Field) {
	s.mu.Lock()
	for _, cur := range Fields[f:] {
		s.draft.clear(cur)
	}
	s.mu.Unlock()

	for _, cur := range Fields[f:] {
		if err := s.cache.Delete(ctx, cur.CacheKey()); err != nil {
			s.log.Warn("clearing %s: %v", cur.CacheKey(), err)
		}
	}
}

// Reset unsets every field and removes every cache entry.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.draft = Draft{}
	s.mu.Unlock()
	return Clear(ctx, s.cache)
}

// Clear removes every per-field key from c.
func Clear(ctx context.Context, c cache.Store) error {
	var errs []error
	for _, f := range Fields {
		if err := c.Delete(ctx, f.CacheKey()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load reads whatever selections c holds. Missing keys leave fields nil.
func Load(ctx context.Context, c cache.Store) (Draft, error) {
	var d Draft
	targets := map[Field]any{
		FieldTherapist:     &d.Therapist,
		FieldService:       &d.Service,
		FieldDate:          &d.Date,
		FieldTime:          &d.Time,
		FieldAddress:       &d.Address,
		FieldPaymentMethod: &d.PaymentMethod,
	}
	for _, f := range Fields {
		data, err := c.Get(ctx, f.CacheKey())
		if errors.Is(err, cache.ErrNotFound) {
			continue
		}
		if err != nil {
			return Draft{}, fmt.Errorf("loading %s: %w", f.CacheKey(), err)
		}
		if err := json.Unmarshal(data, targets[f]); err != nil {
			return Draft{}, fmt.Errorf("decoding %s: %w", f.CacheKey(), err)
		}
	}
	return d, nil
}
