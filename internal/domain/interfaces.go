package domain

import (
	"context"
	"errors"
	"time"

	"fishcharter/internal/models"
)

var (
	// ErrNotFound is returned by stores when no row matches the id and filters.
	ErrNotFound = errors.New("booking not found")
	// ErrSlotTaken is returned when a write would double-book a date/time slot.
	ErrSlotTaken = errors.New("slot already taken")
)

// SlotFilter selects bookings of one date/time slot.
type SlotFilter struct {
	Date     string
	Time     string
	Statuses []string
	// ExpiresAtOrAfter keeps reserved rows whose expiry is at or after the
	// instant. Confirmed rows carry no expiry and always pass.
	ExpiresAtOrAfter *time.Time
}

// ListFilter selects bookings for reporting. Zero values disable a filter.
type ListFilter struct {
	From   string
	To     string
	Status string
}

// BookingUpdate holds the fields to change; nil fields are left untouched.
type BookingUpdate struct {
	PaymentID        *string
	PaymentStatus    *string
	BookingStatus    *string
	BookingFeePaid   *models.Money
	RemainingBalance *models.Money
	// ClearExpiry sets reservation_expires_at to NULL.
	ClearExpiry bool
	UpdatedAt   time.Time
	// OnlyIfStatus restricts the update to rows currently in this status.
	OnlyIfStatus string
}

// SlotStore is the persisted collection of bookings.
type SlotStore interface {
	Insert(ctx context.Context, booking *models.Booking) error
	// InsertIfSlotFree inserts booking unless the slot holds a confirmed row or
	// a reserved row expiring at or after now. Returns ErrSlotTaken otherwise.
	InsertIfSlotFree(ctx context.Context, booking *models.Booking, now time.Time) error
	GetByIDAndStatus(ctx context.Context, id, status string) (*models.Booking, error)
	Find(ctx context.Context, filter SlotFilter) ([]*models.Booking, error)
	Update(ctx context.Context, id string, upd BookingUpdate) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]*models.Booking, error)
	Ping(ctx context.Context) error
	Close() error
}

// ChargeRequest describes a single capture of the booking fee.
type ChargeRequest struct {
	Token          string
	Amount         models.Money
	Currency       string
	IdempotencyKey string
	Note           string
	BuyerEmail     string
	Metadata       map[string]string
}

// ChargeResult is a completed capture.
type ChargeResult struct {
	PaymentID string
	Status    string
}

// PaymentGateway captures payments. Only a completed capture returns a nil error.
type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// GuardRepository provides short-lived locks and counters shared across instances.
type GuardRepository interface {
	// AcquireLock returns false when key is already locked.
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncWorker mirrors bookings to an external sheet.
type SyncWorker interface {
	EnqueueUpsert(ctx context.Context, booking *models.Booking) error
	EnqueueDelete(ctx context.Context, bookingID string) error
}

// Notifier tells the business owner about a new confirmed booking.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, booking *models.Booking) error
}
