package service

import (
	"fmt"

	"fishcharter/internal/models"
)

// PriceCalculator quotes bookings from the catalog.
type PriceCalculator struct {
	catalog models.Catalog
}

func NewPriceCalculator(catalog models.Catalog) *PriceCalculator {
	return &PriceCalculator{catalog: catalog}
}

func (p *PriceCalculator) Catalog() models.Catalog {
	return p.catalog
}

func (p *PriceCalculator) Quote(req models.BookingRequest) (models.Pricing, error) {
	return p.catalog.Quote(req.Service, req.People, req.Addons)
}

// Verify recomputes the pricing for req and rejects a client quote that differs.
func (p *PriceCalculator) Verify(req models.BookingRequest, given models.Pricing) (models.Pricing, error) {
	want, err := p.Quote(req)
	if err != nil {
		return models.Pricing{}, err
	}
	if want != given {
		return models.Pricing{}, fmt.Errorf("%w: expected total %s, got %s", ErrPriceMismatch, want.Total, given.Total)
	}
	return want, nil
}
