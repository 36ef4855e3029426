// Package errors defines the booking client's error taxonomy.
// Import it as ierr to avoid shadowing the standard library package.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy is returned when a user action arrives while another call is in flight.
	ErrBusy = errors.New("request already in flight")

	// ErrStale is returned when a response belongs to an older generation
	// (the wizard was reset or navigated since the call started).
	ErrStale = errors.New("stale response discarded")
)

// NetworkError covers transport failures, timeouts and non-2xx responses.
type NetworkError struct {
	Op         string // e.g. "send message", "list payment methods"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": network error"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SequenceError means a draft field was set before the fields it depends on.
type SequenceError struct {
	Field   string
	Missing string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("cannot set %s before %s", e.Field, e.Missing)
}

// IncompleteDraftError means a booking payload was requested from a draft
// that still has unset fields.
type IncompleteDraftError struct {
	Missing []string
}

func (e *IncompleteDraftError) Error() string {
	return "incomplete booking draft: missing " + strings.Join(e.Missing, ", ")
}

// BookingSubmissionError carries the backend's reason for rejecting a booking.
type BookingSubmissionError struct {
	Reason     string
	StatusCode int
}

func (e *BookingSubmissionError) Error() string {
	if e.Reason == "" {
		return "booking rejected"
	}
	return "booking rejected: " + e.Reason
}

// EmptyOptionsError means the backend returned nothing selectable for the
// step the wizard was about to enter.
type EmptyOptionsError struct {
	Step string
}

func (e *EmptyOptionsError) Error() string {
	return fmt.Sprintf("no options returned for %s", e.Step)
}

// Retryable reports whether the user can simply repeat the same action.
func Retryable(err error) bool {
	var netErr *NetworkError
	var emptyErr *EmptyOptionsError
	var subErr *BookingSubmissionError
	switch {
	case errors.As(err, &netErr), errors.As(err, &emptyErr), errors.As(err, &subErr):
		return true
	case errors.Is(err, ErrBusy):
		return true
	}
	return false
}

// Programming reports whether err signals a skipped step rather than a
// runtime condition. These are logged and shown as a generic failure.
func Programming(err error) bool {
	var seqErr *SequenceError
	var incErr *IncompleteDraftError
	return errors.As(err, &seqErr) || errors.As(err, &incErr)
}

// UserMessage maps an error to the text shown in the chat or modal.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var netErr *NetworkError
	var emptyErr *EmptyOptionsError
	var subErr *BookingSubmissionError
	switch {
	case errors.As(err, &subErr):
		if subErr.Reason != "" {
			return subErr.Reason
		}
		return "予約を確定できませんでした。もう一度お試しください。"
	case errors.As(err, &emptyErr):
		return "選択できる候補が見つかりませんでした。もう一度お試しください。"
	case errors.As(err, &netErr):
		return "メッセージの送信に失敗しました。もう一度お試しください。"
	case errors.Is(err, ErrBusy):
		return "処理中です。しばらくお待ちください。"
	case Programming(err):
		return "エラーが発生しました。最初からやり直してください。"
	}
	return "エラーが発生しました。"
}
