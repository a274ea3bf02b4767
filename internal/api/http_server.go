package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fishcharter/internal/config"
	"fishcharter/internal/domain"
	"fishcharter/internal/export"
	"fishcharter/internal/models"
	"fishcharter/internal/service"
	"fishcharter/internal/tracing"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// ReadinessCheck is a named dependency probe for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services are the booking operations the transports expose.
type Services struct {
	Availability  *service.AvailabilityChecker
	Reservations  *service.ReservationManager
	Confirmations *service.ConfirmationManager
	Direct        *service.DirectBookingService
	Pricing       *service.PriceCalculator
	Store         domain.SlotStore
	Readiness     []ReadinessCheck
}

// HTTPServer serves the JSON booking API.
type HTTPServer struct {
	cfg    *config.APIConfig
	svc    Services
	mux    *http.ServeMux
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, svc: svc, mux: mux, log: log}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/check-availability", only(http.MethodPost, srv.handleCheckAvailability))
	mux.HandleFunc("/api/create-reservation", only(http.MethodPost, srv.handleCreateReservation))
	mux.HandleFunc("/api/confirm-booking", only(http.MethodPost, srv.handleConfirmBooking))
	mux.HandleFunc("/api/process-booking", only(http.MethodPost, srv.handleProcessBooking))
	mux.HandleFunc("/api/catalog", only(http.MethodGet, srv.handleCatalog))
	mux.HandleFunc("/api/quote", only(http.MethodPost, srv.handleQuote))
	mux.HandleFunc("/api/admin/bookings", only(http.MethodGet, srv.handleAdminBookings))
	mux.HandleFunc("/api/admin/bookings.xlsx", only(http.MethodGet, srv.handleAdminExport))
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/readyz", srv.handleReady)

	var handler http.Handler = srv.auth.Wrap(mux)
	handler = corsMiddleware(cfg.HTTP.CORSOrigins, allowedHeaders(cfg), handler)
	handler = metricsMiddleware(mux, handler)
	handler = loggingMiddleware(&srv.log, handler)
	handler = tracing.Middleware(handler)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type availabilityRequest struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Service string `json:"service"`
}

type reservationRequest struct {
	BookingData models.BookingRequest `json:"bookingData"`
	Pricing     models.Pricing        `json:"pricing"`
}

type confirmRequest struct {
	ReservationID string         `json:"reservationId"`
	PaymentToken  string         `json:"paymentToken"`
	Pricing       models.Pricing `json:"pricing"`
}

type processRequest struct {
	BookingData  models.BookingRequest `json:"bookingData"`
	Pricing      models.Pricing        `json:"pricing"`
	PaymentToken string                `json:"paymentToken"`
}

type quoteRequest struct {
	Service string        `json:"service"`
	People  int           `json:"people"`
	Addons  models.Addons `json:"addons"`
}

type reservationResponse struct {
	Success       bool      `json:"success"`
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Message       string    `json:"message"`
}

type confirmationResponse struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId"`
	PaymentID string `json:"paymentId"`
	Message   string `json:"message"`
}

func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	var body availabilityRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.svc.Availability.Check(r.Context(), body.Date, body.Time, body.Service)
	if err != nil {
		s.fail(w, r, err, fixed("Failed to check availability"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var body reservationRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.svc.Reservations.Create(r.Context(), body.BookingData, body.Pricing)
	if err != nil {
		s.fail(w, r, err, fixed("Failed to create reservation"))
		return
	}
	writeJSON(w, http.StatusOK, reservationResponse{
		Success:       true,
		ReservationID: res.ID,
		ExpiresAt:     res.ExpiresAt,
		Message:       res.Message(),
	})
}

func (s *HTTPServer) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.svc.Confirmations.Confirm(r.Context(), body.ReservationID, body.PaymentToken, body.Pricing)
	if err != nil {
		s.fail(w, r, err, prefixed("Booking confirmation failed: "))
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{
		Success:   true,
		BookingID: res.BookingID,
		PaymentID: res.PaymentID,
		Message:   "Booking confirmed successfully",
	})
}

func (s *HTTPServer) handleProcessBooking(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.svc.Direct.Book(r.Context(), body.BookingData, body.Pricing, body.PaymentToken)
	if err != nil {
		s.fail(w, r, err, prefixed("Booking processing failed: "))
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{
		Success:   true,
		BookingID: res.BookingID,
		PaymentID: res.PaymentID,
		Message:   "Booking confirmed and payment processed successfully",
	})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Pricing.Catalog())
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	if !decodeBody(w, r, &body) {
		return
	}

	p, err := s.svc.Pricing.Quote(models.BookingRequest{Service: body.Service, People: body.People, Addons: body.Addons})
	if err != nil {
		s.fail(w, r, err, fixed("Failed to quote"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) listFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return filter, fmt.Errorf("invalid date format: %s", d)
		}
	}
	switch filter.Status {
	case "", models.StatusReserved, models.StatusConfirmed:
	default:
		return filter, fmt.Errorf("unknown status: %s", filter.Status)
	}
	return filter, nil
}

func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := s.listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.svc.Store.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err, fixed("Failed to list bookings"))
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	filter, err := s.listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.svc.Store.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err, fixed("Failed to export bookings"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, time.Now().UTC().Format("20060102")))
	if err := export.WriteBookings(w, bookings); err != nil {
		s.log.Error().Err(err).Msg("write bookings workbook")
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := s.svc.Readiness
	if s.svc.Store != nil {
		checks = append([]ReadinessCheck{{Name: "store", Check: s.svc.Store.Ping}}, checks...)
	}
	for _, c := range checks {
		if err := c.Check(ctx); err != nil {
			s.log.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, c.Name+" not ready")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error, fallback func(error) string) {
	code, msg := statusFor(err, fallback)
	if code >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, code, msg)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
