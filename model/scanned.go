package model

import (
	"errors"

	"github.com/retailkit/catalog/units"
)

// ErrNoEmbeddedPrice reports a scan that carries no computable price: no
// price override and no complete embedded-data/reference-price combination.
var ErrNoEmbeddedPrice = errors.New("no embedded price data")

// ScannedProduct is the transient result of a code lookup: the matched
// product plus the code-level context of the match. It is never persisted.
type ScannedProduct struct {
	Product Product

	// Code is the code the caller originally looked up, before any GTIN
	// normalisation.
	Code     string
	Template string

	// TransmissionCode is the stored transmission code of the matched
	// scannable code, or nil when the raw code is transmitted as-is.
	TransmissionCode     *string
	TransmissionTemplate *string

	// EmbeddedData and EmbeddedUnit carry a value parsed out of the code
	// itself (weight, price, quantity) for variable-measure codes.
	EmbeddedData *int64
	EmbeddedUnit *units.Unit

	// Price overrides apply when the code embeds its own price.
	PriceOverride          *int64
	ReferencePriceOverride *int64

	SpecifiedQuantity int
}

// EffectiveTransmissionCode is what must be sent to the backend for this
// scan.
func (s *ScannedProduct) EffectiveTransmissionCode() string {
	if s.TransmissionCode != nil {
		return *s.TransmissionCode
	}
	return s.Code
}

// EmbeddedPrice computes the total price of a variable-measure scan: the
// code's own price when it embeds one, otherwise the reference price scaled
// by the embedded quantity converted into the product's reference unit.
// A conversion across dimensions fails; an incomplete scan reports
// ErrNoEmbeddedPrice.
func (s *ScannedProduct) EmbeddedPrice() (int64, error) {
	if s.PriceOverride != nil {
		return *s.PriceOverride, nil
	}
	if s.EmbeddedData == nil || s.EmbeddedUnit == nil ||
		s.ReferencePriceOverride == nil || s.Product.ReferenceUnit == nil {
		return 0, ErrNoEmbeddedPrice
	}

	num, den, err := units.Conversion(*s.EmbeddedUnit, *s.Product.ReferenceUnit)
	if err != nil {
		return 0, err
	}
	// Multiply before dividing so sub-unit quantities (250 g at a per-kg
	// price) keep their precision; round half away from zero.
	scaled := *s.EmbeddedData * num * *s.ReferencePriceOverride
	half := den / 2
	if scaled < 0 {
		return (scaled - half) / den, nil
	}
	return (scaled + half) / den, nil
}
