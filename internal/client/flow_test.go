package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fishcharter/internal/clock"
	"fishcharter/internal/countdown"
	"fishcharter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 7, 10, 14, 0, 0, 0, time.UTC)

type chanTicker struct {
	c chan time.Time
}

func (t *chanTicker) C() <-chan time.Time { return t.c }
func (t *chanTicker) Stop()               {}

// fakeAPI answers the booking routes with canned bodies.
type fakeAPI struct {
	mu           sync.Mutex
	available    bool
	expiresAt    time.Time
	confirmCode  int
	confirmError string
	confirmed    []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/check-availability", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		body := map[string]any{"available": f.available}
		if !f.available {
			body["reason"] = "Time slot already booked"
		}
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("/api/create-reservation", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"reservationId": "res-1",
			"expiresAt":     f.expiresAt,
			"message":       "Time slot reserved for 15 minutes",
		})
	})
	mux.HandleFunc("/api/confirm-booking", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ReservationID string `json:"reservationId"`
			PaymentToken  string `json:"paymentToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.confirmCode != 0 {
			writeJSON(w, f.confirmCode, map[string]string{"error": f.confirmError})
			return
		}
		f.confirmed = append(f.confirmed, req.ReservationID)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"bookingId": req.ReservationID,
			"paymentId": "pay_1",
			"message":   "Booking confirmed successfully",
		})
	})
	return mux
}

func (f *fakeAPI) setAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

func (f *fakeAPI) failConfirm(code int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCode, f.confirmError = code, msg
}

func (f *fakeAPI) confirmedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.confirmed...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type flowFixture struct {
	api     *fakeAPI
	flow    *BookingFlow
	ticker  *chanTicker
	notices chan string
	cd      *countdown.Countdown
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	fake := &fakeAPI{available: true, expiresAt: testNow.Add(2 * time.Second)}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	ticker := &chanTicker{c: make(chan time.Time)}
	cd := countdown.New(clock.NewFixed(testNow), countdown.WithTicker(func(time.Duration) countdown.Ticker { return ticker }))
	notices := make(chan string, 4)
	flow := NewBookingFlow(NewAPI(srv.URL, srv.Client()), cd, func(msg string) { notices <- msg }, nil)
	t.Cleanup(flow.Close)

	return &flowFixture{api: fake, flow: flow, ticker: ticker, notices: notices, cd: cd}
}

func request() models.BookingRequest {
	return models.BookingRequest{
		Name: "Ana Reyes", Email: "ana@example.com", Service: "saltwater",
		Date: "2026-07-20", Time: "6am", People: 2,
	}
}

func pricing() models.Pricing {
	return models.Pricing{BasePrice: models.Dollars(150), BookingFee: models.Dollars(50), Total: models.Dollars(200)}
}

func TestFlowExpiryResetsForm(t *testing.T) {
	f := newFlowFixture(t)

	res, err := f.flow.Reserve(context.Background(), request(), pricing())
	require.NoError(t, err)
	assert.Equal(t, "res-1", res.ReservationID)
	assert.Equal(t, "res-1", f.flow.ReservationID())
	assert.True(t, f.flow.PaymentVisible())
	assert.Equal(t, "0:02", f.flow.Remaining())

	f.ticker.c <- testNow
	assert.Eventually(t, func() bool { return f.flow.Remaining() == "0:01" }, time.Second, 5*time.Millisecond)
	f.ticker.c <- testNow

	select {
	case msg := <-f.notices:
		assert.Equal(t, ExpiredNotice, msg)
	case <-time.After(time.Second):
		t.Fatalf("expiry notice not posted")
	}
	assert.Eventually(t, func() bool { return f.flow.ReservationID() == "" }, time.Second, 5*time.Millisecond)
	assert.False(t, f.flow.PaymentVisible())
	assert.False(t, f.cd.Running())

	_, err = f.flow.Confirm(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoReservation)
}

func TestFlowConfirmStopsCountdown(t *testing.T) {
	f := newFlowFixture(t)
	_, err := f.flow.Reserve(context.Background(), request(), pricing())
	require.NoError(t, err)

	conf, err := f.flow.Confirm(context.Background(), "cnon:ok")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", conf.PaymentID)
	assert.Equal(t, []string{"res-1"}, f.api.confirmedIDs())

	assert.False(t, f.cd.Running())
	assert.Empty(t, f.flow.ReservationID())
	assert.False(t, f.flow.PaymentVisible())

	// the stopped countdown never posts the notice
	select {
	case f.ticker.c <- testNow:
		t.Fatalf("tick delivered after confirm")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, f.notices)
}

func TestFlowConfirmFailureKeepsHold(t *testing.T) {
	f := newFlowFixture(t)
	f.api.failConfirm(http.StatusBadRequest, "Payment failed: Card declined")

	_, err := f.flow.Reserve(context.Background(), request(), pricing())
	require.NoError(t, err)

	_, err = f.flow.Confirm(context.Background(), "bad")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Payment failed: Card declined", apiErr.Message)

	assert.Equal(t, "res-1", f.flow.ReservationID())
	assert.True(t, f.cd.Running())
}

func TestFlowUnavailableSlot(t *testing.T) {
	f := newFlowFixture(t)
	f.api.setAvailable(false)

	_, err := f.flow.Reserve(context.Background(), request(), pricing())
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.False(t, f.flow.PaymentVisible())
	assert.False(t, f.cd.Running())
}

func TestFlowReset(t *testing.T) {
	f := newFlowFixture(t)
	_, err := f.flow.Reserve(context.Background(), request(), pricing())
	require.NoError(t, err)

	f.flow.Reset()
	assert.Empty(t, f.flow.ReservationID())
	assert.False(t, f.cd.Running())
	assert.Equal(t, "0:00", f.flow.Remaining())
}
