// Package client drives the booking API the way the booking form does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fishcharter/internal/models"
)

// APIError is a non-2xx answer from the booking API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type Reservation struct {
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Message       string    `json:"message"`
}

type Confirmation struct {
	BookingID string `json:"bookingId"`
	PaymentID string `json:"paymentId"`
	Message   string `json:"message"`
}

// API is a JSON client for the booking routes.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (a *API) CheckAvailability(ctx context.Context, date, slot, service string) (*Availability, error) {
	var out Availability
	err := a.post(ctx, "/api/check-availability", map[string]string{"date": date, "time": slot, "service": service}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) CreateReservation(ctx context.Context, req models.BookingRequest, pricing models.Pricing) (*Reservation, error) {
	var out Reservation
	body := map[string]any{"bookingData": req, "pricing": pricing}
	if err := a.post(ctx, "/api/create-reservation", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ConfirmBooking(ctx context.Context, reservationID, paymentToken string, pricing models.Pricing) (*Confirmation, error) {
	var out Confirmation
	body := map[string]any{"reservationId": reservationID, "paymentToken": paymentToken, "pricing": pricing}
	if err := a.post(ctx, "/api/confirm-booking", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Quote(ctx context.Context, service string, people int, addons models.Addons) (*models.Pricing, error) {
	var out models.Pricing
	body := map[string]any{"service": service, "people": people, "addons": addons}
	if err := a.post(ctx, "/api/quote", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
