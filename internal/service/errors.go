package service

import (
	"errors"
	"strings"

	"fishcharter/internal/models"
)

// Transports map these to customer-facing messages and status codes.
var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrMissingBookingInfo   = errors.New("missing required booking information")
	ErrMissingConfirmFields = errors.New("missing reservation id or payment token")
	ErrMissingPaymentToken  = errors.New("payment token is required")
	ErrSlotTaken            = errors.New("time slot no longer available")
	ErrReservationNotFound  = errors.New("reservation not found or expired")
	ErrReservationExpired   = errors.New("reservation has expired")
	ErrConfirmInProgress    = errors.New("confirmation already in progress")
	ErrTooManyReservations  = errors.New("too many reservation attempts")
	ErrPriceMismatch        = errors.New("pricing does not match the selected options")
	ErrUnknownService       = models.ErrUnknownService
)

// PaymentError is a declined charge. The booking it was attempted for is untouched.
type PaymentError struct {
	Messages []string
	Err      error
}

func (e *PaymentError) Error() string {
	return "Payment failed: " + strings.Join(e.Messages, ", ")
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// ReconciliationError is a booking write that failed after the charge was
// captured. The payment stands and needs manual matching.
type ReconciliationError struct {
	Op        string
	PaymentID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
