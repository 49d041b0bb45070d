// Package model holds the typed catalog row model. Values are assembled by
// the store's query layer or the remote lookup client and are never written
// back; all mutation happens through server-issued updates.
package model

import "github.com/retailkit/catalog/units"

type ProductType int

const (
	SingleItem ProductType = 0
	PreWeighed ProductType = 1
)

type Availability int

const (
	InStock      Availability = 0
	Listed       Availability = 1
	NotAvailable Availability = 2
)

// ParseAvailability normalises a wire string; unknown values fall back to
// InStock so a new server-side state does not hide products.
func ParseAvailability(s string) Availability {
	switch s {
	case "listed":
		return Listed
	case "notAvailable":
		return NotAvailable
	default:
		return InStock
	}
}

type Product struct {
	SKU         string
	Name        string
	Description string
	Subtitle    string
	ImageURL    string

	// Prices are integer minor units (cents). ListPrice is the category
	// price resolved for the calling shop; BasePrice is a display string
	// such as "1.99 € / 100g".
	ListPrice         int64
	DiscountedPrice   *int64
	CustomerCardPrice *int64
	BasePrice         string

	Type  ProductType
	Codes []ScannableCode

	// DepositSKU references the deposit product; Deposit is its resolved
	// price. Both are nil when the product carries no deposit or the
	// referenced product is missing or not available.
	DepositSKU *string
	Deposit    *int64

	// BundledSKU marks this product as a packaging unit of another product.
	// Bundles lists the products that bundle this one, resolved at query
	// time.
	BundledSKU *string
	Bundles    []Product

	IsDeposit       bool
	SaleRestriction SaleRestriction
	SaleStop        bool
	NotForSale      bool

	ReferenceUnit *units.Unit
	EncodingUnit  *units.Unit

	Availability Availability
	ScanMessage  *string
}

// EffectivePrice prefers the discounted price over the list price.
func (p *Product) EffectivePrice() int64 {
	if p.DiscountedPrice != nil {
		return *p.DiscountedPrice
	}
	return p.ListPrice
}

// CodeWithTemplate returns the first scannable code parsed with the given
// template.
func (p *Product) CodeWithTemplate(template string) (ScannableCode, bool) {
	for _, c := range p.Codes {
		if c.Template == template {
			return c, true
		}
	}
	return ScannableCode{}, false
}
