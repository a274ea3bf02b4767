package service

import (
	"context"
	"fmt"

	"fishcharter/internal/clock"
	"fishcharter/internal/domain"
	"fishcharter/internal/metrics"
	"fishcharter/internal/models"

	"github.com/rs/zerolog"
)

const (
	ReasonBooked   = "Time slot already booked"
	ReasonReserved = "Time slot temporarily reserved"
)

// Availability is the answer for one date/time slot.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type AvailabilityChecker struct {
	store  domain.SlotStore
	clock  clock.Clock
	logger *zerolog.Logger
}

func NewAvailabilityChecker(store domain.SlotStore, clk clock.Clock, logger *zerolog.Logger) *AvailabilityChecker {
	return &AvailabilityChecker{store: store, clock: clk, logger: nopIfNil(logger)}
}

// Check reports whether the slot can be reserved. A confirmed booking wins over
// an active hold when both exist. It never reports available on a store error.
func (c *AvailabilityChecker) Check(ctx context.Context, date, slot, service string) (Availability, error) {
	if date == "" || slot == "" || service == "" {
		return Availability{}, ErrMissingFields
	}

	bookings, err := c.store.Find(ctx, domain.SlotFilter{
		Date:     date,
		Time:     slot,
		Statuses: []string{models.StatusConfirmed, models.StatusReserved},
	})
	if err != nil {
		metrics.IncAvailability("error")
		return Availability{}, fmt.Errorf("find slot bookings: %w", err)
	}

	res := decide(bookings, c.clock)
	switch res.Reason {
	case ReasonBooked:
		metrics.IncAvailability("booked")
	case ReasonReserved:
		metrics.IncAvailability("reserved")
	default:
		metrics.IncAvailability("available")
	}
	return res, nil
}

func decide(bookings []*models.Booking, clk clock.Clock) Availability {
	for _, b := range bookings {
		if b.BookingStatus == models.StatusConfirmed {
			return Availability{Available: false, Reason: ReasonBooked}
		}
	}
	now := clk.Now()
	for _, b := range bookings {
		if b.IsActiveHold(now) {
			return Availability{Available: false, Reason: ReasonReserved}
		}
	}
	return Availability{Available: true}
}

func nopIfNil(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
