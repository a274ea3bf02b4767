package client

import (
	"context"
	"errors"
	"sync"

	"fishcharter/internal/countdown"
	"fishcharter/internal/models"

	"github.com/rs/zerolog"
)

const (
	ExpiredNotice     = "Your reservation has expired. Please start over."
	UnavailableNotice = "Sorry, this time slot is no longer available. Please select a different time."
)

var (
	ErrSlotUnavailable = errors.New(UnavailableNotice)
	ErrNoReservation   = errors.New("no active reservation")
)

// BookingFlow is the two-step form: reserve a slot, then pay within the hold.
// The countdown mirrors the server hold; its expiry only resets the form.
type BookingFlow struct {
	api       *API
	countdown *countdown.Countdown
	notify    func(msg string)
	logger    *zerolog.Logger

	mu            sync.Mutex
	reservationID string
	pricing       models.Pricing
	showPayment   bool
}

func NewBookingFlow(api *API, cd *countdown.Countdown, notify func(msg string), logger *zerolog.Logger) *BookingFlow {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if notify == nil {
		notify = func(string) {}
	}
	f := &BookingFlow{api: api, countdown: cd, notify: notify, logger: logger}
	cd.OnExpire(f.expire)
	return f
}

// Reserve checks the slot and places a hold. On success the payment step is
// shown and the countdown starts from the server's expiry.
func (f *BookingFlow) Reserve(ctx context.Context, req models.BookingRequest, pricing models.Pricing) (*Reservation, error) {
	avail, err := f.api.CheckAvailability(ctx, req.Date, req.Time, req.Service)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, ErrSlotUnavailable
	}

	res, err := f.api.CreateReservation(ctx, req, pricing)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.reservationID = res.ReservationID
	f.pricing = pricing
	f.showPayment = true
	f.mu.Unlock()

	f.countdown.Start(res.ExpiresAt)
	f.logger.Info().Str("reservation_id", res.ReservationID).Time("expires_at", res.ExpiresAt).Msg("slot reserved")
	return res, nil
}

// Confirm pays for the held slot. A failure leaves the hold and the
// countdown in place so the customer can retry.
func (f *BookingFlow) Confirm(ctx context.Context, paymentToken string) (*Confirmation, error) {
	f.mu.Lock()
	id, pricing := f.reservationID, f.pricing
	f.mu.Unlock()
	if id == "" {
		return nil, ErrNoReservation
	}

	conf, err := f.api.ConfirmBooking(ctx, id, paymentToken, pricing)
	if err != nil {
		return nil, err
	}
	f.Reset()
	return conf, nil
}

// Reset clears the reservation and stops the countdown.
func (f *BookingFlow) Reset() {
	f.countdown.Stop()
	f.clear()
}

// Close stops the countdown; the flow must not be used afterwards.
func (f *BookingFlow) Close() {
	f.countdown.Stop()
}

func (f *BookingFlow) ReservationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reservationID
}

func (f *BookingFlow) PaymentVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.showPayment
}

// Remaining returns the countdown display value in m:ss.
func (f *BookingFlow) Remaining() string {
	return countdown.Format(f.countdown.Remaining())
}

func (f *BookingFlow) expire() {
	f.mu.Lock()
	id := f.reservationID
	f.mu.Unlock()

	f.logger.Info().Str("reservation_id", id).Msg("reservation countdown expired")
	f.notify(ExpiredNotice)
	f.clear()
}

func (f *BookingFlow) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservationID = ""
	f.pricing = models.Pricing{}
	f.showPayment = false
}
