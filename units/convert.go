package units

import "fmt"

// ConversionError reports a conversion the table does not define, either
// because a unit is unknown or because the units belong to different
// dimensions. Converting across dimensions is deliberately a loud failure,
// never a silent zero.
type ConversionError struct {
	From Unit
	To   Unit
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("no conversion from %q to %q", e.From, e.To)
}

// Conversion returns the factor from→to as a num/den fraction.
func Conversion(from, to Unit) (num, den int64, err error) {
	fi, ok := unitInfo[from]
	if !ok {
		return 0, 0, &ConversionError{From: from, To: to}
	}
	ti, ok := unitInfo[to]
	if !ok {
		return 0, 0, &ConversionError{From: from, To: to}
	}
	if fi.dim != ti.dim || fi.dim == None {
		return 0, 0, &ConversionError{From: from, To: to}
	}
	// from→base is fi.base, base→to is the inverse of ti.base.
	return fi.base.num * ti.base.den, fi.base.den * ti.base.num, nil
}

// Convert scales value from one unit to another, rounding half away from
// zero.
func Convert(value int64, from, to Unit) (int64, error) {
	if from == to {
		return value, nil
	}
	num, den, err := Conversion(from, to)
	if err != nil {
		return 0, err
	}
	scaled := value * num
	half := den / 2
	if scaled < 0 {
		return (scaled - half) / den, nil
	}
	return (scaled + half) / den, nil
}
