package models

import "time"

// Booking is a slot claim, either a time-boxed hold or a paid booking.
type Booking struct {
	ID                   string     `json:"id"`
	CustomerName         string     `json:"customer_name"`
	Email                string     `json:"email"`
	Phone                string     `json:"phone"`
	ServiceType          string     `json:"service_type"`
	Date                 string     `json:"booking_date"`
	Time                 string     `json:"booking_time"`
	NumberOfPeople       int        `json:"number_of_people"`
	Notes                string     `json:"notes"`
	Addons               Addons     `json:"addons"`
	BasePrice            Money      `json:"base_price"`
	AddonCosts           Money      `json:"addon_costs"`
	TotalAmount          Money      `json:"total_amount"`
	BookingFeePaid       Money      `json:"booking_fee_paid"`
	RemainingBalance     Money      `json:"remaining_balance"`
	PaymentID            string     `json:"payment_id,omitempty"`
	PaymentStatus        string     `json:"payment_status"`
	BookingStatus        string     `json:"booking_status"` // reserved, confirmed
	ReservationExpiresAt *time.Time `json:"reservation_expires_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsActiveHold reports whether b is a reserved booking that still blocks its slot at now.
func (b *Booking) IsActiveHold(now time.Time) bool {
	if b.BookingStatus != StatusReserved || b.ReservationExpiresAt == nil {
		return false
	}
	return b.ReservationExpiresAt.After(now)
}

// Expired reports whether a reserved booking's hold lapsed before now.
func (b *Booking) Expired(now time.Time) bool {
	return b.ReservationExpiresAt != nil && now.After(*b.ReservationExpiresAt)
}

// Addons are the optional extras a customer can add to a trip.
type Addons struct {
	FoodDrink      bool `json:"foodDrink" yaml:"foodDrink"`
	VideoClips     bool `json:"videoClips" yaml:"videoClips"`
	HighlightVideo bool `json:"highlightVideo" yaml:"highlightVideo"`
	Cameraman      bool `json:"cameraman" yaml:"cameraman"`
}

// Selected reports whether the addon with the given key is switched on.
func (a Addons) Selected(key string) bool {
	switch key {
	case AddonFoodDrink:
		return a.FoodDrink
	case AddonVideoClips:
		return a.VideoClips
	case AddonHighlightVideo:
		return a.HighlightVideo
	case AddonCameraman:
		return a.Cameraman
	}
	return false
}

// BookingRequest is the customer-supplied part of a booking.
type BookingRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	People  int    `json:"people"`
	Notes   string `json:"notes"`
	Addons  Addons `json:"addons"`
}

// Pricing is the monetary breakdown quoted for a booking.
type Pricing struct {
	BasePrice  Money `json:"basePrice"`
	AddonCosts Money `json:"addonCosts"`
	BookingFee Money `json:"bookingFee"`
	Total      Money `json:"total"`
}
