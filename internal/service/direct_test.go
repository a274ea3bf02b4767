package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fishcharter/internal/domain"
	"fishcharter/internal/events"
	"fishcharter/internal/models"
	"fishcharter/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDirectBookingService_Book(t *testing.T) {
	ctx := context.Background()

	newDirect := func(t *testing.T, store domain.SlotStore) (*DirectBookingService, *fixture) {
		f := newFixture(t, store, testBookingConfig(), nil)
		return NewDirectBookingService(store, f.gateway, f.bus, f.clock, testBookingConfig(), nil), f
	}

	t.Run("charges and stores a confirmed booking", func(t *testing.T) {
		svc, f := newDirect(t, newTestStore(t))
		f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req domain.ChargeRequest) bool {
			return req.Amount == models.Dollars(50) && req.Note == "Booking fee for saltwater - Jordan Lee"
		})).Return(&domain.ChargeResult{PaymentID: "pay_d1", Status: "COMPLETED"}, nil).Once()

		got, err := svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "pay_d1", got.PaymentID)

		b, err := f.store.GetByIDAndStatus(ctx, got.BookingID, models.StatusConfirmed)
		require.NoError(t, err)
		assert.Nil(t, b.ReservationExpiresAt)
		assert.Equal(t, b.TotalAmount, b.BookingFeePaid+b.RemainingBalance)
		assert.Equal(t, []string{events.EventBookingConfirmed}, f.events.types)
	})

	t.Run("validation", func(t *testing.T) {
		svc, f := newDirect(t, newTestStore(t))
		req := testRequest("2026-08-01", "9am")
		req.Email = ""
		_, err := svc.Book(ctx, req, testPricing(), "tok")
		assert.ErrorIs(t, err, ErrMissingBookingInfo)

		_, err = svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "")
		assert.ErrorIs(t, err, ErrMissingPaymentToken)
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("date and time are required before charging", func(t *testing.T) {
		svc, f := newDirect(t, newTestStore(t))
		for _, req := range []models.BookingRequest{
			testRequest("", ""),
			testRequest("", ""),
			testRequest("2026-08-01", ""),
			testRequest("", "9am"),
		} {
			_, err := svc.Book(ctx, req, testPricing(), "tok")
			assert.ErrorIs(t, err, ErrMissingBookingInfo)
		}
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("unavailable slot is not charged", func(t *testing.T) {
		svc, f := newDirect(t, newTestStore(t))
		reserve(t, f, "2026-08-01", "9am")

		_, err := svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "tok")
		assert.ErrorIs(t, err, ErrSlotTaken)
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)

		f.clock.Advance(16 * time.Minute)
		f.gateway.On("Charge", mock.Anything, mock.Anything).
			Return(&domain.ChargeResult{PaymentID: "pay_d2", Status: "COMPLETED"}, nil).Once()
		_, err = svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "tok")
		assert.NoError(t, err)
	})

	t.Run("declines", func(t *testing.T) {
		svc, f := newDirect(t, newTestStore(t))
		f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req domain.ChargeRequest) bool { return req.Token == "bad" })).
			Return(nil, &payment.DeclineError{Messages: []string{"Card declined"}}).Once()
		f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req domain.ChargeRequest) bool { return req.Token == "pending" })).
			Return(nil, &payment.DeclineError{Messages: []string{"Payment not completed: PENDING"}, Status: "PENDING"}).Once()

		_, err := svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "bad")
		var perr *PaymentError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "Payment failed: Card declined", err.Error())

		_, err = svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "pending")
		require.Error(t, err)
		assert.False(t, errors.As(err, &perr))
		assert.Equal(t, "Payment not completed: PENDING", err.Error())
	})

	t.Run("insert failure after charge", func(t *testing.T) {
		boom := errors.New("disk full")
		svc, f := newDirect(t, &failingStore{SlotStore: newTestStore(t), insertErr: boom})
		f.gateway.On("Charge", mock.Anything, mock.Anything).
			Return(&domain.ChargeResult{PaymentID: "pay_d3", Status: "COMPLETED"}, nil).Once()

		_, err := svc.Book(ctx, testRequest("2026-08-01", "9am"), testPricing(), "tok")
		assert.ErrorIs(t, err, boom)
		var rerr *ReconciliationError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "pay_d3", rerr.PaymentID)
		assert.Equal(t, "insert booking: disk full", err.Error())
		assert.Empty(t, f.events.types)
	})
}
