package events

import (
	"encoding/json"
	"sync"
	"time"

	"fishcharter/internal/models"
)

const (
	EventBookingReserved  = "booking_reserved"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingExpired   = "booking_expired"
)

// AllTypes lists every booking event type in lifecycle order.
var AllTypes = []string{EventBookingReserved, EventBookingConfirmed, EventBookingExpired}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID      string       `json:"booking_id"`
	ServiceType    string       `json:"service_type"`
	Date           string       `json:"date"`
	Time           string       `json:"time"`
	CustomerName   string       `json:"customer_name"`
	Email          string       `json:"email"`
	Status         string       `json:"status"`
	PaymentID      string       `json:"payment_id,omitempty"`
	TotalAmount    models.Money `json:"total_amount"`
	BookingFeePaid models.Money `json:"booking_fee_paid"`
}

// PayloadFor snapshots a booking for publishing.
func PayloadFor(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:      b.ID,
		ServiceType:    b.ServiceType,
		Date:           b.Date,
		Time:           b.Time,
		CustomerName:   b.CustomerName,
		Email:          b.Email,
		Status:         b.BookingStatus,
		PaymentID:      b.PaymentID,
		TotalAmount:    b.TotalAmount,
		BookingFeePaid: b.BookingFeePaid,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into a booking snapshot.
func (e *Event) Decode() (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler receives handler failures; the bus never stops on them.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets the callback for handler errors.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
