package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fishcharter/internal/clock"
	"fishcharter/internal/config"
	"fishcharter/internal/database"
	"fishcharter/internal/domain"
	"fishcharter/internal/models"
	"fishcharter/internal/payment"
	"fishcharter/internal/repository"
	"fishcharter/internal/service"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2026, 7, 10, 14, 0, 0, 0, time.UTC)

const declineToken = "tok_decline"

type apiFixture struct {
	db     *database.DB
	clock  *clock.Manual
	svc    Services
	server *HTTPServer
	ts     *httptest.Server
}

type fixtureOption func(*fixtureOpts)

type fixtureOpts struct {
	store   domain.SlotStore
	gateway domain.PaymentGateway
	holdTTL time.Duration
}

func withStore(wrap func(domain.SlotStore) domain.SlotStore) fixtureOption {
	return func(o *fixtureOpts) { o.store = wrap(o.store) }
}

func withGateway(g domain.PaymentGateway) fixtureOption {
	return func(o *fixtureOpts) { o.gateway = g }
}

func withHoldTTL(d time.Duration) fixtureOption {
	return func(o *fixtureOpts) { o.holdTTL = d }
}

func testAPIConfig() *config.APIConfig {
	return &config.APIConfig{
		HTTP: config.APIHTTPConfig{Enabled: true, CORSOrigins: []string{"https://charters.example.com"}},
		GRPC: config.APIGRPCConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "admin-key", Extra: "admin-extra", Name: "office", Permissions: []string{permReadBookings, permReadAvailability, permWriteBookings}},
				{Key: "partner-key", Extra: "partner-extra", Name: "partner", Permissions: []string{permReadAvailability}},
			},
		},
	}
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		HoldTTL:        15 * time.Minute,
		BookingFee:     models.Dollars(50),
		Currency:       "USD",
		ConfirmLockTTL: 30 * time.Second,
	}
}

func newServices(t *testing.T, opts ...fixtureOption) (Services, *database.DB, *clock.Manual) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	o := fixtureOpts{
		store:   db,
		gateway: payment.NewSandbox(config.SandboxConfig{DeclineTokens: []string{declineToken}}, &logger),
	}
	for _, opt := range opts {
		opt(&o)
	}

	clk := clock.NewManual(testNow)
	cfg := testBookingConfig()
	if o.holdTTL > 0 {
		cfg.HoldTTL = o.holdTTL
	}
	guard := repository.NewMemoryGuard()
	pricing := service.NewPriceCalculator(models.DefaultCatalog())

	svc := Services{
		Availability:  service.NewAvailabilityChecker(o.store, clk, &logger),
		Reservations:  service.NewReservationManager(o.store, guard, nil, pricing, clk, cfg, &logger),
		Confirmations: service.NewConfirmationManager(o.store, o.gateway, guard, nil, clk, cfg, &logger),
		Direct:        service.NewDirectBookingService(o.store, o.gateway, nil, clk, cfg, &logger),
		Pricing:       pricing,
		Store:         o.store,
	}
	return svc, db, clk
}

func newAPIFixture(t *testing.T, cfg *config.APIConfig, opts ...fixtureOption) *apiFixture {
	t.Helper()
	svc, db, clk := newServices(t, opts...)
	logger := zerolog.New(io.Discard)
	server := NewHTTPServer(cfg, svc, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &apiFixture{db: db, clock: clk, svc: svc, server: server, ts: ts}
}

func (f *apiFixture) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeMap(t, resp.Body)
}

func (f *apiFixture) get(t *testing.T, path string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeMap(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func bookingData(date, slot string) map[string]any {
	return map[string]any{
		"name":    "Ana Reyes",
		"email":   "ana@example.com",
		"phone":   "+1 555 0100",
		"service": "saltwater",
		"date":    date,
		"time":    slot,
		"people":  2,
		"addons":  map[string]bool{"foodDrink": true},
	}
}

func pricingBody() map[string]any {
	return map[string]any{"basePrice": 150, "addonCosts": 50, "bookingFee": 50, "total": 250}
}

// reserveHTTP creates a hold through the API and returns its id.
func (f *apiFixture) reserveHTTP(t *testing.T, date, slot string) string {
	t.Helper()
	code, body := f.post(t, "/api/create-reservation", map[string]any{
		"bookingData": bookingData(date, slot),
		"pricing":     pricingBody(),
	})
	if code != http.StatusOK {
		t.Fatalf("reserve %s %s: status %d body %v", date, slot, code, body)
	}
	return body["reservationId"].(string)
}

// failingFindStore fails availability lookups.
type failingFindStore struct {
	domain.SlotStore
	err error
}

func (s *failingFindStore) Find(context.Context, domain.SlotFilter) ([]*models.Booking, error) {
	return nil, s.err
}

type stubGateway struct {
	err error
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Charge(context.Context, domain.ChargeRequest) (*domain.ChargeResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &domain.ChargeResult{PaymentID: "pay_stub", Status: "COMPLETED"}, nil
}
