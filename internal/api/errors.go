package api

import (
	"errors"
	"net/http"

	"fishcharter/internal/service"

	"google.golang.org/grpc/codes"
)

type errorMapping struct {
	target  error
	status  int
	code    codes.Code
	message string
}

var errorTable = []errorMapping{
	{service.ErrMissingFields, http.StatusBadRequest, codes.InvalidArgument, "Missing required fields"},
	{service.ErrMissingBookingInfo, http.StatusBadRequest, codes.InvalidArgument, "Missing required booking information"},
	{service.ErrMissingConfirmFields, http.StatusBadRequest, codes.InvalidArgument, "Missing reservation ID or payment token"},
	{service.ErrMissingPaymentToken, http.StatusBadRequest, codes.InvalidArgument, "Payment token is required"},
	{service.ErrPriceMismatch, http.StatusBadRequest, codes.InvalidArgument, "Pricing does not match the selected options"},
	{service.ErrUnknownService, http.StatusBadRequest, codes.InvalidArgument, "Unknown service"},
	{service.ErrSlotTaken, http.StatusConflict, codes.AlreadyExists, "Time slot no longer available"},
	{service.ErrConfirmInProgress, http.StatusConflict, codes.Aborted, "Confirmation already in progress"},
	{service.ErrReservationNotFound, http.StatusNotFound, codes.NotFound, "Reservation not found or expired"},
	{service.ErrReservationExpired, http.StatusGone, codes.FailedPrecondition, "Reservation has expired"},
	{service.ErrTooManyReservations, http.StatusTooManyRequests, codes.ResourceExhausted, "Too many reservation attempts"},
}

// classify maps a service error to its transport status and client message.
// ok is false for unexpected errors, which each route reports with its own
// fallback message. A post-charge write failure is always unexpected.
func classify(err error) (m errorMapping, ok bool) {
	var rerr *service.ReconciliationError
	if errors.As(err, &rerr) {
		return errorMapping{}, false
	}

	var perr *service.PaymentError
	if errors.As(err, &perr) {
		return errorMapping{status: http.StatusBadRequest, code: codes.InvalidArgument, message: perr.Error()}, true
	}

	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// statusFor returns the HTTP status and body message for err. fallback renders
// the message of unexpected errors.
func statusFor(err error, fallback func(error) string) (int, string) {
	if m, ok := classify(err); ok {
		return m.status, m.message
	}
	return http.StatusInternalServerError, fallback(err)
}

func fixed(msg string) func(error) string {
	return func(error) string { return msg }
}

func prefixed(prefix string) func(error) string {
	return func(err error) string { return prefix + err.Error() }
}
