// Package api is the client for the chat/booking/payment backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ierr "github.com/mark3labs/rirakoi/internal/errors"
	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/rs/xid"
)

const (
	defaultTimeout = 15 * time.Second

	PathSendMessage = "/chat/send_message/"
	PathPaymentList = "/payment/list"
	PathTerms       = "/terms"
	PathBooking     = "/booking/create"

	policyTermName = "cancel_policy"
	maxErrorBody   = 4096
)

// ErrPolicyNotFound is wrapped in a NetworkError when /terms has no
// cancel_policy entry.
var ErrPolicyNotFound = errors.New("cancel policy not found in terms")

// Options configures a Client.
type Options struct {
	BaseURL    string
	CustomerID string        // merged into every chat context
	Timeout    time.Duration // per call; 0 uses the default
	HTTPClient *http.Client
}

// Client talks to the backend over HTTP+JSON.
type Client struct {
	baseURL    string
	customerID string
	timeout    time.Duration
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		customerID: opts.CustomerID,
		timeout:    timeout,
		httpClient: httpClient,
		log:        logger.With("api"),
	}
}

// SendMessage posts a chat/step message and returns the normalized reply.
func (c *Client) SendMessage(ctx context.Context, req MessageRequest) (*ChatResponse, error) {
	const op = "send message"

	ctxMap := make(map[string]any, len(req.Context)+1)
	for k, v := range req.Context {
		ctxMap[k] = v
	}
	if _, ok := ctxMap["customer_id"]; !ok && c.customerID != "" {
		ctxMap["customer_id"] = c.customerID
	}
	req.Context = ctxMap

	var wire chatResponseWire
	status, body, err := c.do(ctx, http.MethodPost, PathSendMessage, req)
	if err != nil {
		return nil, &ierr.NetworkError{Op: op, Err: err}
	}
	if !isSuccess(status) {
		return nil, &ierr.NetworkError{Op: op, StatusCode: status}
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ierr.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return normalize(wire), nil
}

// ListPaymentMethods returns the customer's stored cards, default flagged.
func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	const op = "list payment methods"

	status, body, err := c.do(ctx, http.MethodPost, PathPaymentList, paymentListRequest{CustomerID: customerID})
	if err != nil {
		return nil, &ierr.NetworkError{Op: op, Err: err}
	}
	if !isSuccess(status) {
		return nil, &ierr.NetworkError{Op: op, StatusCode: status}
	}

	var out paymentListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ierr.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	methods := make([]PaymentMethod, 0, len(out.Cards.Data))
	for _, card := range out.Cards.Data {
		methods = append(methods, PaymentMethod{
			ID:        card.ID,
			Brand:     card.Brand,
			Last4:     card.Last4,
			ExpMonth:  card.ExpMonth,
			ExpYear:   card.ExpYear,
			IsDefault: card.ID != "" && card.ID == out.DefaultCard,
		})
	}
	return methods, nil
}

// FetchPolicyText returns the cancellation policy from /terms.
func (c *Client) FetchPolicyText(ctx context.Context) (string, error) {
	const op = "fetch policy"

	status, body, err := c.do(ctx, http.MethodGet, PathTerms, nil)
	if err != nil {
		return "", &ierr.NetworkError{Op: op, Err: err}
	}
	if !isSuccess(status) {
		return "", &ierr.NetworkError{Op: op, StatusCode: status}
	}

	var terms []termsEntry
	if err := json.Unmarshal(body, &terms); err != nil {
		return "", &ierr.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	for _, t := range terms {
		if t.Name == policyTermName {
			return t.Content, nil
		}
	}
	return "", &ierr.NetworkError{Op: op, Err: ErrPolicyNotFound}
}

// SubmitBooking creates the booking. A rejection by the backend is a
// BookingSubmissionError; it is never retried here.
func (c *Client) SubmitBooking(ctx context.Context, payload BookingPayload) (*BookingResult, error) {
	const op = "submit booking"

	status, body, err := c.do(ctx, http.MethodPost, PathBooking, payload)
	if err != nil {
		return nil, &ierr.NetworkError{Op: op, Err: err}
	}

	var out bookingResponse
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case status >= 500:
		return nil, &ierr.NetworkError{Op: op, StatusCode: status}
	case status >= 400:
		return nil, &ierr.BookingSubmissionError{Reason: out.Message, StatusCode: status}
	case !isSuccess(status):
		return nil, &ierr.NetworkError{Op: op, StatusCode: status}
	case decodeErr != nil:
		return nil, &ierr.NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}

	switch strings.ToLower(out.Status) {
	case "rejected", "error", "failed":
		return nil, &ierr.BookingSubmissionError{Reason: out.Message, StatusCode: status}
	}
	return &BookingResult{ID: out.ID, Status: out.Status}, nil
}

// do performs one request under the per-call timeout and returns the status
// and body. Only transport failures are returned as errors.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	requestID := xid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("%s %s failed (request=%s): %v", method, path, requestID, err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	c.log.Debug("%s %s -> %d in %s (request=%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)
	if !isSuccess(resp.StatusCode) {
		c.log.Warn("%s %s returned %d: %s", method, path, resp.StatusCode, truncate(data, maxErrorBody))
	}
	return resp.StatusCode, data, nil
}

func normalize(w chatResponseWire) *ChatResponse {
	out := &ChatResponse{
		Response:    w.Response,
		Therapists:  w.Therapists,
		Services:    w.Services,
		Dates:       w.Dates,
		Times:       w.Times,
		Addresses:   w.Addresses,
		CreditCards: w.CreditCards,
	}
	if out.Therapists == nil {
		out.Therapists = []Therapist{}
	}
	if out.Services == nil {
		out.Services = []Service{}
	}
	if out.Dates == nil {
		out.Dates = []DateOption{}
	}
	if out.Times == nil {
		out.Times = []TimeSlot{}
	}
	if out.Addresses == nil {
		out.Addresses = []Address{}
	}
	if out.CreditCards == nil {
		out.CreditCards = []CreditCard{}
	}
	return out
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
