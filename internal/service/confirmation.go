package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fishcharter/internal/clock"
	"fishcharter/internal/config"
	"fishcharter/internal/domain"
	"fishcharter/internal/events"
	"fishcharter/internal/metrics"
	"fishcharter/internal/models"
	"fishcharter/internal/payment"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Confirmation is a paid, confirmed booking.
type Confirmation struct {
	BookingID string `json:"bookingId"`
	PaymentID string `json:"paymentId"`
}

type ConfirmationManager struct {
	store    domain.SlotStore
	gateway  domain.PaymentGateway
	guard    domain.GuardRepository
	eventBus domain.EventPublisher
	clock    clock.Clock
	cfg      config.BookingConfig
	logger   *zerolog.Logger
}

func NewConfirmationManager(store domain.SlotStore, gateway domain.PaymentGateway, guard domain.GuardRepository, eventBus domain.EventPublisher, clk clock.Clock, cfg config.BookingConfig, logger *zerolog.Logger) *ConfirmationManager {
	if cfg.ConfirmLockTTL <= 0 {
		cfg.ConfirmLockTTL = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &ConfirmationManager{
		store:    store,
		gateway:  gateway,
		guard:    guard,
		eventBus: eventBus,
		clock:    clk,
		cfg:      cfg,
		logger:   nopIfNil(logger),
	}
}

// Confirm charges the booking fee for a live hold and turns it into a
// confirmed booking. An expired hold is deleted without charging.
func (m *ConfirmationManager) Confirm(ctx context.Context, reservationID, paymentToken string, pricing models.Pricing) (*Confirmation, error) {
	if reservationID == "" || paymentToken == "" {
		metrics.IncConfirmation("invalid")
		return nil, ErrMissingConfirmFields
	}

	release, err := m.lock(ctx, reservationID)
	if err != nil {
		metrics.IncConfirmation("in_progress")
		return nil, err
	}
	defer release()

	log := m.logger.With().Str("reservation_id", reservationID).Logger()

	booking, err := m.store.GetByIDAndStatus(ctx, reservationID, models.StatusReserved)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncConfirmation("not_found")
			return nil, ErrReservationNotFound
		}
		metrics.IncConfirmation("error")
		return nil, fmt.Errorf("load reservation: %w", err)
	}

	now := m.clock.Now()
	if booking.Expired(now) {
		if err := m.store.Delete(ctx, reservationID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Msg("failed to delete expired reservation")
		}
		metrics.IncConfirmation("expired")
		publish(m.eventBus, &log, events.EventBookingExpired, booking)
		return nil, ErrReservationExpired
	}

	pricing, err = m.resolvePricing(booking, pricing)
	if err != nil {
		metrics.IncConfirmation("invalid")
		return nil, err
	}

	result, err := m.gateway.Charge(ctx, domain.ChargeRequest{
		Token:          paymentToken,
		Amount:         pricing.BookingFee,
		Currency:       m.cfg.Currency,
		IdempotencyKey: uuid.NewString(),
		Note:           fmt.Sprintf("Booking fee for %s - %s", booking.ServiceType, booking.CustomerName),
		BuyerEmail:     booking.Email,
		Metadata: map[string]string{
			"reservation_id": booking.ID,
			"service_type":   booking.ServiceType,
			"customer_name":  booking.CustomerName,
			"email":          booking.Email,
		},
	})
	if err != nil {
		metrics.IncConfirmation("payment_failed")
		log.Warn().Err(err).Str("gateway", m.gateway.Name()).Msg("payment failed")
		return nil, toPaymentError(err)
	}

	paymentID := result.PaymentID
	paid := models.PaymentBookingFeePaid
	confirmed := models.StatusConfirmed
	fee := pricing.BookingFee
	remaining := pricing.Total - pricing.BookingFee

	err = m.store.Update(ctx, reservationID, domain.BookingUpdate{
		PaymentID:        &paymentID,
		PaymentStatus:    &paid,
		BookingStatus:    &confirmed,
		BookingFeePaid:   &fee,
		RemainingBalance: &remaining,
		ClearExpiry:      true,
		UpdatedAt:        now,
		OnlyIfStatus:     models.StatusReserved,
	})
	if err != nil {
		// the charge stands; someone has to refund or re-book by hand
		metrics.IncConfirmation("error")
		metrics.IncReconciliation()
		log.Error().Err(err).
			Str("payment_id", paymentID).
			Str("amount", fee.String()).
			Msg("payment captured but booking update failed, reconciliation needed")
		return nil, &ReconciliationError{Op: "update booking", PaymentID: paymentID, Err: err}
	}

	booking.PaymentID = paymentID
	booking.PaymentStatus = paid
	booking.BookingStatus = confirmed
	booking.BookingFeePaid = fee
	booking.RemainingBalance = remaining
	booking.ReservationExpiresAt = nil
	booking.UpdatedAt = now

	metrics.IncConfirmation("confirmed")
	log.Info().Str("payment_id", paymentID).Msg("booking confirmed")
	publish(m.eventBus, &log, events.EventBookingConfirmed, booking)

	return &Confirmation{BookingID: reservationID, PaymentID: paymentID}, nil
}

// lock takes the per-reservation confirm lock. Without a guard, or when the
// guard itself fails, confirmation proceeds unlocked.
func (m *ConfirmationManager) lock(ctx context.Context, reservationID string) (func(), error) {
	if m.guard == nil {
		return func() {}, nil
	}
	key := "confirm:" + reservationID
	owner := uuid.NewString()
	ok, err := m.guard.AcquireLock(ctx, key, owner, m.cfg.ConfirmLockTTL)
	if err != nil {
		m.logger.Warn().Err(err).Str("reservation_id", reservationID).Msg("confirm lock unavailable")
		return func() {}, nil
	}
	if !ok {
		return nil, ErrConfirmInProgress
	}
	return func() {
		if err := m.guard.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			m.logger.Warn().Err(err).Str("reservation_id", reservationID).Msg("confirm lock release failed")
		}
	}, nil
}

// resolvePricing settles the fee to charge. The total always comes from the
// stored booking, so fee plus remaining balance equals its total. With pricing
// enforcement on, a fee or total that disagrees is rejected.
func (m *ConfirmationManager) resolvePricing(b *models.Booking, given models.Pricing) (models.Pricing, error) {
	if m.cfg.EnforcePricing {
		if given.BookingFee != m.cfg.BookingFee || given.Total != b.TotalAmount {
			return models.Pricing{}, fmt.Errorf("%w: fee %s total %s", ErrPriceMismatch, given.BookingFee, given.Total)
		}
	}
	if given.BookingFee <= 0 {
		given.BookingFee = m.cfg.BookingFee
	}
	if given.Total != b.TotalAmount {
		if given.Total > 0 {
			m.logger.Warn().
				Str("reservation_id", b.ID).
				Str("given_total", given.Total.String()).
				Str("stored_total", b.TotalAmount.String()).
				Msg("confirm total differs from reservation, using stored total")
		}
		given.Total = b.TotalAmount
	}
	given.BasePrice, given.AddonCosts = b.BasePrice, b.AddonCosts
	return given, nil
}

func toPaymentError(err error) *PaymentError {
	var decline *payment.DeclineError
	if errors.As(err, &decline) {
		return &PaymentError{Messages: decline.Messages, Err: err}
	}
	return &PaymentError{Messages: []string{err.Error()}, Err: err}
}
