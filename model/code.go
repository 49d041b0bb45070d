package model

import "github.com/retailkit/catalog/units"

// DefaultTemplate is the built-in code template used when a lookup does not
// restrict the template set.
const DefaultTemplate = "default"

// ScannableCode is one code a product can be identified by at the scanner.
type ScannableCode struct {
	Code     string
	Template string

	// TransmissionCode is what must be sent to the backend instead of the
	// raw scan, e.g. an EAN-8 normalised to its EAN-13 form.
	TransmissionCode *string

	// EncodingUnit and SpecifiedQuantity carry embedded-data semantics for
	// variable-measure codes.
	EncodingUnit      *units.Unit
	SpecifiedQuantity int

	TransmissionTemplate *string
}

// CodeTemplate is a (code, template) lookup pair. Lookups try pairs in the
// order the caller supplies them.
type CodeTemplate struct {
	Code     string
	Template string
}
