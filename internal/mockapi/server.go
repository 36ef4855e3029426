// Package mockapi is an in-memory stand-in for the chat/booking/payment
// backend, used for local development and tests.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mark3labs/rirakoi/internal/api"
	"github.com/mark3labs/rirakoi/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const msgSlotTaken = "slot taken"

// Booking is a booking the mock has accepted.
type Booking struct {
	ID      string
	Payload api.BookingPayload
	Created time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock fixes "today" for generated dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithLatency delays every response, to make busy states visible.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// Server serves the backend contract from canned data.
type Server struct {
	router   *chi.Mux
	registry *prometheus.Registry
	metrics  *Metrics
	now      func() time.Time
	latency  time.Duration
	log      *logger.Logger

	mu       sync.Mutex
	bookings map[string]Booking
	taken    map[string]string // therapist|date|start -> booking id
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		now:      time.Now,
		log:      logger.With("mockapi"),
		bookings: make(map[string]Booking),
		taken:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = NewMetrics(s.registry)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.StripSlashes)
	s.router.Use(s.metrics.instrument)
	if s.latency > 0 {
		s.router.Use(s.delay)
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router.Post("/chat/send_message", s.handleSendMessage)
	s.router.Post("/payment/list", s.handlePaymentList)
	s.router.Get("/terms", s.handleTerms)
	s.router.Post("/booking/create", s.handleCreateBooking)
}

func (s *Server) Router() http.Handler { return s.router }

// Bookings returns every accepted booking.
func (s *Server) Bookings() []Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	return out
}

// Take marks a slot as booked by someone else.
func (s *Server) Take(therapistID, date, start string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taken[slotKey(therapistID, date, start)] = "external"
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatReply struct {
	Response    string           `json:"response"`
	Therapists  []api.Therapist  `json:"therapists,omitempty"`
	Services    []api.Service    `json:"services,omitempty"`
	Dates       []api.DateOption `json:"dates,omitempty"`
	Times       []string         `json:"times,omitempty"`
	Addresses   []api.Address    `json:"addresses,omitempty"`
	CreditCards []api.CreditCard `json:"credit_cards,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req api.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.log.Debug("send_message type=%s message=%q", req.Type, req.Message)

	var out chatReply
	switch req.Type {
	case api.TypeInitial:
		out = chatReply{Response: "セラピストを選択してください。", Therapists: therapists}
	case api.TypeTherapistSelection:
		out = chatReply{Response: fmt.Sprintf("%sが選択されました。サービスを選択してください。", req.Message), Services: services}
	case api.TypeServiceSelection:
		out = chatReply{Response: "ご希望の日付を選択してください。", Dates: openDates(s.now())}
	case api.TypeDateSelection:
		date, _ := req.Context["date"].(string)
		therapist := fmt.Sprint(req.Context["therapist_id"])
		if date == "" {
			writeError(w, http.StatusBadRequest, "context.date is required")
			return
		}
		free := s.freeSlots(therapist, date)
		if len(free) == 0 {
			out = chatReply{Response: "申し訳ありません。この日は空きがありません。"}
			break
		}
		out = chatReply{Response: "ご希望の時間を選択してください。", Times: free}
	case api.TypeTimeSelection:
		out = chatReply{Response: "訪問先の住所を選択してください。", Addresses: addresses}
	case api.TypeAddressSelection:
		out = chatReply{Response: "お支払い方法を選択してください。", CreditCards: creditCards()}
	case api.TypeCreditCardSelection:
		out = chatReply{Response: "予約内容をご確認ください。"}
	case api.TypeChat:
		out = chatReply{Response: chatAnswer(req.Message)}
	default:
		writeError(w, http.StatusBadRequest, "unknown message type: "+req.Type)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) freeSlots(therapistID, date string) []string {
	if closed(date) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var free []string
	for _, t := range slots {
		if _, ok := s.taken[slotKey(therapistID, date, t)]; !ok {
			free = append(free, t)
		}
	}
	return free
}

func chatAnswer(msg string) string {
	switch {
	case strings.Contains(msg, "営業時間"):
		return "営業時間は10時から24時までです。日曜日は定休日です。"
	case strings.Contains(msg, "キャンセル"):
		return "キャンセルポリシーは予約確認画面でご確認いただけます。"
	}
	return "ご予約の場合はメニューから「予約」を選択してください。"
}

func (s *Server) handlePaymentList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	resp := map[string]any{
		"cards":        map[string]any{"data": cards},
		"default_card": defaultCard,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{
		{"name": "privacy_policy", "content": privacyPolicy},
		{"name": "cancel_policy", "content": cancelPolicy},
	})
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var p api.BookingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.metrics.ObserveBooking("invalid")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if missing := missingFields(p); len(missing) > 0 {
		s.metrics.ObserveBooking("invalid")
		writeError(w, http.StatusUnprocessableEntity, "missing fields: "+strings.Join(missing, ", "))
		return
	}

	key := slotKey(string(p.Therapist), p.BookingDate, hhmm(p.StartTime))

	s.mu.Lock()
	if _, ok := s.taken[key]; ok {
		s.mu.Unlock()
		s.metrics.ObserveBooking("conflict")
		writeError(w, http.StatusConflict, msgSlotTaken)
		return
	}
	id := uuid.NewString()
	s.taken[key] = id
	s.bookings[id] = Booking{ID: id, Payload: p, Created: s.now()}
	s.mu.Unlock()

	s.log.Info("booking %s: therapist=%s %s %s-%s", id, p.Therapist, p.BookingDate, p.StartTime, p.EndTime)
	s.metrics.ObserveBooking("created")
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": p.Status})
}

func missingFields(p api.BookingPayload) []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("address", string(p.Address))
	check("booking_date", p.BookingDate)
	check("card", string(p.Card))
	check("customer", string(p.Customer))
	check("start_time", p.StartTime)
	check("end_time", p.EndTime)
	check("therapist", string(p.Therapist))
	check("user_id", string(p.UserID))
	return missing
}

// hhmm trims "14:30:00" to "14:30".
func hhmm(t string) string {
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

func slotKey(therapistID, date, start string) string {
	return therapistID + "|" + date + "|" + start
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
