package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fishcharter/internal/domain"
	"fishcharter/internal/events"
	"fishcharter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSync struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
	err     error
}

func (s *fakeSync) EnqueueUpsert(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, b.ID+":"+b.BookingStatus)
	return s.err
}

func (s *fakeSync) EnqueueDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	return s.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []*models.Booking
}

func (n *fakeNotifier) NotifyConfirmed(_ context.Context, b *models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, b)
	return nil
}

func TestSideEffects_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestStore(t), testBookingConfig(), nil)
	syncer := &fakeSync{}
	notifier := &fakeNotifier{}
	effects := NewSideEffects(f.store, syncer, notifier, nil)
	effects.Register(f.bus)

	id := reserve(t, f, "2026-07-20", "6am")
	f.gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&domain.ChargeResult{PaymentID: "pay_se", Status: "COMPLETED"}, nil).Once()
	_, err := f.confirm.Confirm(ctx, id, "tok", testPricing())
	require.NoError(t, err)
	effects.Wait()

	assert.Equal(t, []string{id + ":reserved", id + ":confirmed"}, syncer.upserts)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, "pay_se", notifier.notified[0].PaymentID)

	expiring := reserve(t, f, "2026-07-20", "9am")
	f.clock.Advance(20 * time.Minute)
	_, err = f.confirm.Confirm(ctx, expiring, "tok", testPricing())
	require.ErrorIs(t, err, ErrReservationExpired)
	assert.Equal(t, []string{expiring}, syncer.deletes)
}

func TestSideEffects_ErrorsReachBusHandler(t *testing.T) {
	f := newFixture(t, newTestStore(t), testBookingConfig(), nil)
	effects := NewSideEffects(f.store, &fakeSync{err: errors.New("queue down")}, nil, nil)
	effects.Register(f.bus)

	var failed []string
	f.bus.OnError(func(e *events.Event, err error) {
		failed = append(failed, e.Type)
	})

	reserve(t, f, "2026-07-20", "6am")
	assert.Equal(t, []string{events.EventBookingReserved}, failed)
}

func TestSideEffects_NilDependencies(t *testing.T) {
	f := newFixture(t, newTestStore(t), testBookingConfig(), nil)
	effects := NewSideEffects(f.store, nil, nil, nil)
	effects.Register(f.bus)

	id := reserve(t, f, "2026-07-20", "6am")
	f.gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&domain.ChargeResult{PaymentID: "pay_nil", Status: "COMPLETED"}, nil).Once()
	_, err := f.confirm.Confirm(context.Background(), id, "tok", testPricing())
	assert.NoError(t, err)
	effects.Wait()
}
