package service

import (
	"context"
	"errors"
	"fmt"

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

// DirectBookingService charges and books in one step, without a hold.
type DirectBookingService struct {
	checker  *AvailabilityChecker
	store    domain.SlotStore
	gateway  domain.PaymentGateway
	eventBus domain.EventPublisher
	clock    clock.Clock
	cfg      config.BookingConfig
	logger   *zerolog.Logger
}

func NewDirectBookingService(store domain.SlotStore, gateway domain.PaymentGateway, eventBus domain.EventPublisher, clk clock.Clock, cfg config.BookingConfig, logger *zerolog.Logger) *DirectBookingService {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &DirectBookingService{
		checker:  NewAvailabilityChecker(store, clk, logger),
		store:    store,
		gateway:  gateway,
		eventBus: eventBus,
		clock:    clk,
		cfg:      cfg,
		logger:   nopIfNil(logger),
	}
}

func (s *DirectBookingService) Book(ctx context.Context, req models.BookingRequest, pricing models.Pricing, paymentToken string) (*Confirmation, error) {
	if req.Name == "" || req.Email == "" || req.Service == "" || req.Date == "" || req.Time == "" {
		return nil, ErrMissingBookingInfo
	}
	if paymentToken == "" {
		return nil, ErrMissingPaymentToken
	}
	if pricing.BookingFee <= 0 {
		pricing.BookingFee = s.cfg.BookingFee
	}

	avail, err := s.checker.Check(ctx, req.Date, req.Time, req.Service)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, ErrSlotTaken
	}

	result, err := s.gateway.Charge(ctx, domain.ChargeRequest{
		Token:          paymentToken,
		Amount:         pricing.BookingFee,
		Currency:       s.cfg.Currency,
		IdempotencyKey: uuid.NewString(),
		Note:           fmt.Sprintf("Booking fee for %s - %s", req.Service, req.Name),
		BuyerEmail:     req.Email,
		Metadata: map[string]string{
			"service_type":  req.Service,
			"customer_name": req.Name,
			"email":         req.Email,
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("gateway", s.gateway.Name()).Msg("direct booking payment failed")
		var decline *payment.DeclineError
		if errors.As(err, &decline) && decline.Status == "" {
			return nil, toPaymentError(err)
		}
		// a payment that exists but is not completed is a processing failure
		return nil, err
	}

	now := s.clock.Now()
	booking := &models.Booking{
		ID:               uuid.NewString(),
		CustomerName:     req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		ServiceType:      req.Service,
		Date:             req.Date,
		Time:             req.Time,
		NumberOfPeople:   req.People,
		Notes:            req.Notes,
		Addons:           req.Addons,
		BasePrice:        pricing.BasePrice,
		AddonCosts:       pricing.AddonCosts,
		TotalAmount:      pricing.Total,
		BookingFeePaid:   pricing.BookingFee,
		RemainingBalance: pricing.Total - pricing.BookingFee,
		PaymentID:        result.PaymentID,
		PaymentStatus:    models.PaymentBookingFeePaid,
		BookingStatus:    models.StatusConfirmed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.InsertIfSlotFree(ctx, booking, now); err != nil {
		metrics.IncReconciliation()
		s.logger.Error().Err(err).
			Str("payment_id", result.PaymentID).
			Str("amount", pricing.BookingFee.String()).
			Msg("payment captured but direct booking insert failed, reconciliation needed")
		if errors.Is(err, domain.ErrSlotTaken) {
			err = ErrSlotTaken
		}
		return nil, &ReconciliationError{Op: "insert booking", PaymentID: result.PaymentID, Err: err}
	}

	metrics.IncConfirmation("direct")
	s.logger.Info().Str("booking_id", booking.ID).Str("payment_id", result.PaymentID).Msg("direct booking confirmed")
	publish(s.eventBus, s.logger, events.EventBookingConfirmed, booking)

	return &Confirmation{BookingID: booking.ID, PaymentID: result.PaymentID}, nil
}
