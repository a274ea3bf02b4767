package service

import (
	"context"
	"testing"
	"time"

	"fishcharter/internal/clock"
	"fishcharter/internal/config"
	"fishcharter/internal/database"
	"fishcharter/internal/domain"
	"fishcharter/internal/events"
	"fishcharter/internal/models"

	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 7, 10, 14, 0, 0, 0, time.UTC)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeResult), args.Error(1)
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockGuard) ReleaseLock(ctx context.Context, key, owner string) error {
	return m.Called(ctx, key, owner).Error(0)
}

func (m *mockGuard) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

// failingStore wraps a real store and overrides selected calls.
type failingStore struct {
	domain.SlotStore
	insertErr error
	findErr   error
	updateErr error
}

func (s *failingStore) InsertIfSlotFree(ctx context.Context, b *models.Booking, now time.Time) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.SlotStore.InsertIfSlotFree(ctx, b, now)
}

func (s *failingStore) Find(ctx context.Context, f domain.SlotFilter) ([]*models.Booking, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.SlotStore.Find(ctx, f)
}

func (s *failingStore) Update(ctx context.Context, id string, upd domain.BookingUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.SlotStore.Update(ctx, id, upd)
}

type recordedEvents struct {
	types []string
	ids   []string
}

func recordEvents(bus *events.EventBus) *recordedEvents {
	rec := &recordedEvents{}
	for _, typ := range events.AllTypes {
		bus.Subscribe(typ, func(e *events.Event) error {
			p, err := e.Decode()
			if err != nil {
				return err
			}
			rec.types = append(rec.types, e.Type)
			rec.ids = append(rec.ids, p.BookingID)
			return nil
		})
	}
	return rec
}

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		HoldTTL:        15 * time.Minute,
		BookingFee:     models.Dollars(50),
		Currency:       "USD",
		ConfirmLockTTL: 30 * time.Second,
	}
}

func testRequest(date, slot string) models.BookingRequest {
	return models.BookingRequest{
		Name:    "Jordan Lee",
		Email:   "jordan@example.com",
		Phone:   "555-0100",
		Service: "saltwater",
		Date:    date,
		Time:    slot,
		People:  2,
		Addons:  models.Addons{FoodDrink: true},
	}
}

// testPricing matches DefaultCatalog for testRequest.
func testPricing() models.Pricing {
	return models.Pricing{
		BasePrice:  models.Dollars(150),
		AddonCosts: models.Dollars(50),
		BookingFee: models.Dollars(50),
		Total:      models.Dollars(250),
	}
}

type fixture struct {
	store   domain.SlotStore
	clock   *clock.Manual
	bus     *events.EventBus
	events  *recordedEvents
	gateway *mockGateway
	reserve *ReservationManager
	confirm *ConfirmationManager
}

func newFixture(t *testing.T, store domain.SlotStore, cfg config.BookingConfig, guard domain.GuardRepository) *fixture {
	t.Helper()
	clk := clock.NewManual(testNow)
	bus := events.NewEventBus()
	gw := &mockGateway{}
	pricing := NewPriceCalculator(models.DefaultCatalog())
	return &fixture{
		store:   store,
		clock:   clk,
		bus:     bus,
		events:  recordEvents(bus),
		gateway: gw,
		reserve: NewReservationManager(store, guard, bus, pricing, clk, cfg, nil),
		confirm: NewConfirmationManager(store, gw, guard, bus, clk, cfg, nil),
	}
}
