package models

import (
	"errors"
	"fmt"
)

var ErrUnknownService = errors.New("unknown service")

// Service is one of the offered trip types.
type Service struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Price Money  `yaml:"price" json:"price"`
}

// Addon is an optional extra; PerPerson addons are multiplied by party size.
type Addon struct {
	Key       string `yaml:"key" json:"key"`
	Name      string `yaml:"name" json:"name"`
	Price     Money  `yaml:"price" json:"price"`
	PerPerson bool   `yaml:"per_person" json:"perPerson"`
}

// Catalog is the price table the booking form is built from.
type Catalog struct {
	Services   []Service `yaml:"services" json:"services"`
	Addons     []Addon   `yaml:"addons" json:"addons"`
	Times      []string  `yaml:"times" json:"times"`
	MaxPeople  int       `yaml:"max_people" json:"maxPeople"`
	BookingFee Money     `yaml:"booking_fee" json:"bookingFee"`
}

// DefaultCatalog returns the built-in services, addons and slot times.
func DefaultCatalog() Catalog {
	return Catalog{
		Services: []Service{
			{ID: "freshwater", Name: "Freshwater Fishing", Price: Dollars(150)},
			{ID: "saltwater", Name: "Saltwater Fishing", Price: Dollars(150)},
			{ID: "beach-diving", Name: "Beach Diving", Price: Dollars(150)},
			{ID: "boat-fishing", Name: "Boat Fishing", Price: Dollars(150)},
			{ID: "boat-spearfishing", Name: "Boat Spearfishing", Price: Dollars(150)},
		},
		Addons: []Addon{
			{Key: AddonFoodDrink, Name: "Food & Drink", Price: Dollars(25), PerPerson: true},
			{Key: AddonVideoClips, Name: "Video Clips", Price: Dollars(50), PerPerson: true},
			{Key: AddonHighlightVideo, Name: "Highlight Video", Price: Dollars(100)},
			{Key: AddonCameraman, Name: "Cameraman", Price: Dollars(200), PerPerson: true},
		},
		Times:      []string{"6am", "9am", "12pm", "3pm"},
		MaxPeople:  DefaultMaxPeople,
		BookingFee: Dollars(50),
	}
}

// Service looks up a service by id.
func (c Catalog) Service(id string) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// Quote computes the pricing for a service, party size and addon selection.
// Total includes the booking fee.
func (c Catalog) Quote(serviceID string, people int, addons Addons) (Pricing, error) {
	svc, ok := c.Service(serviceID)
	if !ok {
		return Pricing{}, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	if people < 1 {
		people = 1
	}

	var addonCosts Money
	for _, a := range c.Addons {
		if !addons.Selected(a.Key) {
			continue
		}
		if a.PerPerson {
			addonCosts += a.Price * Money(people)
		} else {
			addonCosts += a.Price
		}
	}

	return Pricing{
		BasePrice:  svc.Price,
		AddonCosts: addonCosts,
		BookingFee: c.BookingFee,
		Total:      svc.Price + addonCosts + c.BookingFee,
	}, nil
}

// Validate checks ids are present and unique.
func (c Catalog) Validate() error {
	if len(c.Services) == 0 {
		return errors.New("catalog has no services")
	}
	seen := make(map[string]bool)
	for _, s := range c.Services {
		if s.ID == "" {
			return fmt.Errorf("service '%s' has empty id", s.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate service id found: %s", s.ID)
		}
		seen[s.ID] = true
	}
	if c.BookingFee < 0 {
		return errors.New("booking fee must not be negative")
	}
	return nil
}
