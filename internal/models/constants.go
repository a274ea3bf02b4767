package models

import "time"

const (
	StatusReserved  = "reserved"
	StatusConfirmed = "confirmed"
)

const (
	PaymentPending        = "pending"
	PaymentBookingFeePaid = "booking_fee_paid"
)

const (
	AddonFoodDrink      = "foodDrink"
	AddonVideoClips     = "videoClips"
	AddonHighlightVideo = "highlightVideo"
	AddonCameraman      = "cameraman"
)

const (
	// DateLayout is the wire and storage format of Booking.Date.
	DateLayout = "2006-01-02"

	// DefaultHoldTTL is how long a reservation blocks its slot.
	DefaultHoldTTL = 15 * time.Minute

	// DefaultMaxPeople caps the party size of a single trip.
	DefaultMaxPeople = 4
)

const (
	SyncPending   = "pending"
	SyncRetry     = "retry"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)
