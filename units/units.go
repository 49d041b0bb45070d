// Package units models the closed set of measurement units a catalog can
// price products in, grouped by dimension, with an explicit conversion table
// between units of the same dimension.
package units

type Unit string

const (
	Millimeter Unit = "mm"
	Centimeter Unit = "cm"
	Decimeter  Unit = "dm"
	Meter      Unit = "m"

	Milliliter Unit = "ml"
	Centiliter Unit = "cl"
	Deciliter  Unit = "dl"
	Liter      Unit = "l"

	CubicCentimeter Unit = "cm3"
	CubicMeter      Unit = "m3"

	SquareCentimeter Unit = "cm2"
	SquareMeter      Unit = "m2"

	Gram      Unit = "g"
	Hectogram Unit = "hg"
	Kilogram  Unit = "kg"
	Tonne     Unit = "t"

	Piece Unit = "piece"
	Price Unit = "price"
)

type Dimension int

const (
	None Dimension = iota
	Distance
	Capacity
	Volume
	Area
	Mass
	Count
	Amount
)

// base factors express each unit as a fraction of its dimension's base unit
// (meter, liter, m3, m2, kilogram).
type fraction struct {
	num int64
	den int64
}

var unitInfo = map[Unit]struct {
	dim  Dimension
	base fraction
}{
	Millimeter: {Distance, fraction{1, 1000}},
	Centimeter: {Distance, fraction{1, 100}},
	Decimeter:  {Distance, fraction{1, 10}},
	Meter:      {Distance, fraction{1, 1}},

	Milliliter: {Capacity, fraction{1, 1000}},
	Centiliter: {Capacity, fraction{1, 100}},
	Deciliter:  {Capacity, fraction{1, 10}},
	Liter:      {Capacity, fraction{1, 1}},

	CubicCentimeter: {Volume, fraction{1, 1000000}},
	CubicMeter:      {Volume, fraction{1, 1}},

	SquareCentimeter: {Area, fraction{1, 10000}},
	SquareMeter:      {Area, fraction{1, 1}},

	Gram:      {Mass, fraction{1, 1000}},
	Hectogram: {Mass, fraction{1, 10}},
	Kilogram:  {Mass, fraction{1, 1}},
	Tonne:     {Mass, fraction{1000, 1}},

	Piece: {Count, fraction{1, 1}},
	Price: {Amount, fraction{1, 1}},
}

// DimensionOf returns None for unknown units.
func DimensionOf(u Unit) Dimension {
	return unitInfo[u].dim
}

// Parse maps a stored column value to a Unit. The empty string and unknown
// values report false.
func Parse(s string) (Unit, bool) {
	u := Unit(s)
	if _, ok := unitInfo[u]; !ok {
		return "", false
	}
	return u, true
}

// Known reports whether u is part of the closed enumeration.
func Known(u Unit) bool {
	_, ok := unitInfo[u]
	return ok
}
