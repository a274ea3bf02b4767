package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fishcharter/internal/domain"
	"fishcharter/internal/events"

	"github.com/rs/zerolog"
)

// SideEffects reacts to booking events: mirrors rows to the sheet and tells
// the owner about confirmed bookings. Either dependency may be nil.
type SideEffects struct {
	store    domain.SlotStore
	sync     domain.SyncWorker
	notifier domain.Notifier
	timeout  time.Duration
	logger   *zerolog.Logger
	wg       sync.WaitGroup
}

func NewSideEffects(store domain.SlotStore, syncWorker domain.SyncWorker, notifier domain.Notifier, logger *zerolog.Logger) *SideEffects {
	return &SideEffects{
		store:    store,
		sync:     syncWorker,
		notifier: notifier,
		timeout:  10 * time.Second,
		logger:   nopIfNil(logger),
	}
}

// Register subscribes the handlers on bus.
func (s *SideEffects) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingReserved, s.onUpsert)
	bus.Subscribe(events.EventBookingConfirmed, s.onUpsert)
	bus.Subscribe(events.EventBookingConfirmed, s.onConfirmed)
	bus.Subscribe(events.EventBookingExpired, s.onExpired)
}

// Wait blocks until in-flight notifications finish.
func (s *SideEffects) Wait() {
	s.wg.Wait()
}

func (s *SideEffects) onUpsert(event *events.Event) error {
	if s.sync == nil {
		return nil
	}
	p, err := event.Decode()
	if err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	booking, err := s.store.GetByIDAndStatus(ctx, p.BookingID, "")
	if err != nil {
		return fmt.Errorf("load booking %s: %w", p.BookingID, err)
	}
	return s.sync.EnqueueUpsert(ctx, booking)
}

func (s *SideEffects) onExpired(event *events.Event) error {
	if s.sync == nil {
		return nil
	}
	p, err := event.Decode()
	if err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.sync.EnqueueDelete(ctx, p.BookingID)
}

// onConfirmed notifies off the request goroutine; Wait drains it.
func (s *SideEffects) onConfirmed(event *events.Event) error {
	if s.notifier == nil {
		return nil
	}
	p, err := event.Decode()
	if err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		booking, err := s.store.GetByIDAndStatus(ctx, p.BookingID, "")
		if err != nil {
			s.logger.Error().Err(err).Str("booking_id", p.BookingID).Msg("load booking for notification")
			return
		}
		if err := s.notifier.NotifyConfirmed(ctx, booking); err != nil {
			s.logger.Error().Err(err).Str("booking_id", p.BookingID).Msg("notify owner")
		}
	}()
	return nil
}
