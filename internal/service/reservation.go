package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fishcharter/internal/clock"
	"fishcharter/internal/config"
	"fishcharter/internal/domain"
	"fishcharter/internal/events"
	"fishcharter/internal/metrics"
	"fishcharter/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reservation is a successfully placed hold.
type Reservation struct {
	ID        string        `json:"reservationId"`
	ExpiresAt time.Time     `json:"expiresAt"`
	HoldTTL   time.Duration `json:"-"`
}

// Message is the customer-facing line for a placed hold.
func (r *Reservation) Message() string {
	ttl := r.HoldTTL
	switch {
	case ttl == time.Minute:
		return "Time slot reserved for 1 minute"
	case ttl > 0 && ttl%time.Minute == 0:
		return fmt.Sprintf("Time slot reserved for %d minutes", int(ttl/time.Minute))
	case ttl > 0:
		return fmt.Sprintf("Time slot reserved for %s", ttl)
	}
	return "Time slot reserved"
}

type ReservationManager struct {
	store    domain.SlotStore
	guard    domain.GuardRepository
	eventBus domain.EventPublisher
	pricing  *PriceCalculator
	clock    clock.Clock
	cfg      config.BookingConfig
	logger   *zerolog.Logger
}

func NewReservationManager(store domain.SlotStore, guard domain.GuardRepository, eventBus domain.EventPublisher, pricing *PriceCalculator, clk clock.Clock, cfg config.BookingConfig, logger *zerolog.Logger) *ReservationManager {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = models.DefaultHoldTTL
	}
	return &ReservationManager{
		store:    store,
		guard:    guard,
		eventBus: eventBus,
		pricing:  pricing,
		clock:    clk,
		cfg:      cfg,
		logger:   nopIfNil(logger),
	}
}

// Create places a time-boxed hold on the requested slot. The availability
// re-check and the insert happen in one conditional write.
func (m *ReservationManager) Create(ctx context.Context, req models.BookingRequest, pricing models.Pricing) (*Reservation, error) {
	if req.Name == "" || req.Email == "" || req.Service == "" || req.Date == "" {
		metrics.IncReservation("invalid")
		return nil, ErrMissingBookingInfo
	}

	if err := m.throttle(ctx, req.Email); err != nil {
		metrics.IncReservation("throttled")
		return nil, err
	}

	if m.cfg.EnforcePricing && m.pricing != nil {
		verified, err := m.pricing.Verify(req, pricing)
		if err != nil {
			metrics.IncReservation("invalid")
			return nil, err
		}
		pricing = verified
	}

	now := m.clock.Now()
	expiresAt := now.Add(m.cfg.HoldTTL)
	booking := &models.Booking{
		ID:                   uuid.NewString(),
		CustomerName:         req.Name,
		Email:                req.Email,
		Phone:                req.Phone,
		ServiceType:          req.Service,
		Date:                 req.Date,
		Time:                 req.Time,
		NumberOfPeople:       req.People,
		Notes:                req.Notes,
		Addons:               req.Addons,
		BasePrice:            pricing.BasePrice,
		AddonCosts:           pricing.AddonCosts,
		TotalAmount:          pricing.Total,
		BookingFeePaid:       0,
		RemainingBalance:     pricing.Total,
		PaymentStatus:        models.PaymentPending,
		BookingStatus:        models.StatusReserved,
		ReservationExpiresAt: &expiresAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := m.store.InsertIfSlotFree(ctx, booking, now); err != nil {
		if errors.Is(err, domain.ErrSlotTaken) {
			metrics.IncReservation("slot_taken")
			return nil, ErrSlotTaken
		}
		metrics.IncReservation("error")
		m.logger.Error().Err(err).Str("date", req.Date).Str("time", req.Time).Msg("create reservation failed")
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	metrics.IncReservation("created")
	m.logger.Info().
		Str("reservation_id", booking.ID).
		Str("date", booking.Date).
		Str("time", booking.Time).
		Time("expires_at", expiresAt).
		Msg("slot reserved")
	publish(m.eventBus, m.logger, events.EventBookingReserved, booking)

	return &Reservation{ID: booking.ID, ExpiresAt: expiresAt, HoldTTL: m.cfg.HoldTTL}, nil
}

// throttle limits reservation attempts per email. A guard failure lets the
// attempt through.
func (m *ReservationManager) throttle(ctx context.Context, email string) error {
	if m.guard == nil || m.cfg.ReservationLimit <= 0 {
		return nil
	}
	window := m.cfg.ReservationWindow
	if window <= 0 {
		window = time.Hour
	}
	allowed, err := m.guard.CheckRateLimit(ctx, "reserve:"+strings.ToLower(strings.TrimSpace(email)), m.cfg.ReservationLimit, window)
	if err != nil {
		m.logger.Warn().Err(err).Msg("reservation throttle unavailable")
		return nil
	}
	if !allowed {
		return ErrTooManyReservations
	}
	return nil
}

func publish(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, booking *models.Booking) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(eventType, events.PayloadFor(booking)); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
