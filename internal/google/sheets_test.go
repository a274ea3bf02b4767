package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fishcharter/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new sheets service: %v", err)
	}
	return mux, newSheetsService(srv, "bookings_tid", nil)
}

func sampleBooking(id string) *models.Booking {
	created := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	return &models.Booking{
		ID:               id,
		CustomerName:     "Lena Park",
		Email:            "lena@example.com",
		Phone:            "555-0101",
		ServiceType:      "boat-fishing",
		Date:             "2026-07-20",
		Time:             "6am",
		NumberOfPeople:   2,
		TotalAmount:      models.Dollars(300),
		BookingFeePaid:   models.Dollars(50),
		RemainingBalance: models.Dollars(250),
		PaymentID:        "pay_1",
		BookingStatus:    models.StatusConfirmed,
		CreatedAt:        created,
		UpdatedAt:        created.Add(time.Minute),
	}
}

func TestBookingRowValues(t *testing.T) {
	values := bookingRowValues(sampleBooking("b-1"))
	expected := []interface{}{
		"b-1", "2026-07-20", "6am", "boat-fishing", "confirmed", "Lena Park", "lena@example.com",
		"555-0101", 2, 300.0, 50.0, 250.0, "pay_1", "2026-07-01 10:00:00", "2026-07-01 10:01:00",
	}
	if len(values) != len(expected) || len(values) != len(bookingHeaders) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("column %d: expected %v, got %v", i, expected[i], values[i])
		}
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"b-1"}, {}, {"b-2"}},
		})
	})

	if err := s.WarmUpCache(context.Background()); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("b-1"); !ok || row != 2 {
		t.Errorf("expected row 2 for b-1, got %d", row)
	}
	if row, ok := s.getCachedRow("b-2"); !ok || row != 4 {
		t.Errorf("expected row 4 for b-2, got %d", row)
	}
	if _, ok := s.getCachedRow("ID"); ok {
		t.Errorf("header must not be cached")
	}
}

func TestSheetsService_UpsertBooking(t *testing.T) {
	t.Run("AppendsWhenMissing", func(t *testing.T) {
		mux, s := setupMockServer(t)
		var appended atomic.Int32
		mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
		})
		mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
			appended.Add(1)
			_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
		})

		if err := s.UpsertBooking(context.Background(), sampleBooking("b-9")); err != nil {
			t.Fatalf("UpsertBooking failed: %v", err)
		}
		if appended.Load() != 1 {
			t.Fatalf("expected one append, got %d", appended.Load())
		}
	})

	t.Run("UpdatesCachedRow", func(t *testing.T) {
		mux, s := setupMockServer(t)
		s.setCachedRow("b-3", 5)
		var body sheets.ValueRange
		mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A5:O5", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("expected PUT, got %s", r.Method)
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
		})

		if err := s.UpsertBooking(context.Background(), sampleBooking("b-3")); err != nil {
			t.Fatalf("UpsertBooking failed: %v", err)
		}
		if len(body.Values) != 1 || body.Values[0][0] != "b-3" {
			t.Fatalf("unexpected update body: %+v", body.Values)
		}
	})

	t.Run("Nil", func(t *testing.T) {
		_, s := setupMockServer(t)
		if err := s.UpsertBooking(context.Background(), nil); err == nil {
			t.Fatalf("expected error for nil booking")
		}
	})
}

func TestSheetsService_DeleteBookingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"b-4"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:O2:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})

	ctx := context.Background()
	if err := s.DeleteBookingRow(ctx, "b-4"); err != nil {
		t.Fatalf("DeleteBookingRow failed: %v", err)
	}
	if _, ok := s.getCachedRow("b-4"); ok {
		t.Fatalf("expected cache entry removed")
	}
	if err := s.DeleteBookingRow(ctx, "missing"); err != nil {
		t.Fatalf("expected missing row to be ignored, got %v", err)
	}
}

func TestSheetsService_ReplaceBookingsSheet(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var rows int
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		rows = len(body.Values)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	bookings := []*models.Booking{sampleBooking("b-5"), sampleBooking("b-6")}
	if err := s.ReplaceBookingsSheet(context.Background(), bookings); err != nil {
		t.Fatalf("ReplaceBookingsSheet failed: %v", err)
	}
	if rows != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", rows)
	}
	if row, ok := s.getCachedRow("b-6"); !ok || row != 3 {
		t.Fatalf("expected b-6 cached at row 3, got %d", row)
	}
}
