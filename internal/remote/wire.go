package remote

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/units"
)

// wireProduct is the backend's JSON representation of a product.
type wireProduct struct {
	SKU               string        `json:"sku"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Subtitle          string        `json:"subtitle"`
	ImageURL          string        `json:"imageUrl"`
	ListPrice         int64         `json:"listPrice"`
	DiscountedPrice   *int64        `json:"discountedPrice"`
	CustomerCardPrice *int64        `json:"customerCardPrice"`
	BasePrice         string        `json:"basePrice"`
	Weighing          int           `json:"weighing"`
	Codes             []wireCode    `json:"codes"`
	DepositSKU        *string       `json:"depositSku"`
	Deposit           *int64        `json:"deposit"`
	BundledSKU        *string       `json:"bundledSku"`
	Bundles           []wireProduct `json:"bundles"`
	IsDeposit         bool          `json:"isDeposit"`
	SaleRestriction   int64         `json:"saleRestriction"`
	SaleStop          bool          `json:"saleStop"`
	NotForSale        bool          `json:"notForSale"`
	ReferenceUnit     string        `json:"referenceUnit"`
	EncodingUnit      string        `json:"encodingUnit"`
	Availability      string        `json:"availability"`
	ScanMessage       *string       `json:"scanMessage"`
}

type wireCode struct {
	Code                 string  `json:"code"`
	Template             string  `json:"template"`
	TransmissionCode     *string `json:"transmissionCode"`
	EncodingUnit         string  `json:"encodingUnit"`
	SpecifiedQuantity    int     `json:"specifiedQuantity"`
	TransmissionTemplate *string `json:"transmissionTemplate"`
}

// wireLookup wraps a code lookup response: the product plus which code
// matched.
type wireLookup struct {
	wireProduct
	MatchedCode    *wireCode `json:"matchedCode"`
	EmbeddedData   *int64    `json:"embeddedData"`
	EmbeddedUnit   string    `json:"embeddedUnit"`
	Price          *int64    `json:"price"`
	ReferencePrice *int64    `json:"referencePrice"`
}

func decodeProduct(body []byte) (model.Product, error) {
	var w wireProduct
	if err := json.Unmarshal(body, &w); err != nil {
		return model.Product{}, errors.Wrap(err, "decode product payload")
	}
	return w.toProduct()
}

func decodeScannedProduct(body []byte, pair model.CodeTemplate) (model.ScannedProduct, error) {
	var w wireLookup
	if err := json.Unmarshal(body, &w); err != nil {
		return model.ScannedProduct{}, errors.Wrap(err, "decode lookup payload")
	}
	p, err := w.toProduct()
	if err != nil {
		return model.ScannedProduct{}, err
	}

	sp := model.ScannedProduct{
		Product:      p,
		Code:         pair.Code,
		Template:     pair.Template,
		EmbeddedData: w.EmbeddedData,
	}
	if w.MatchedCode != nil {
		sp.Template = w.MatchedCode.Template
		sp.TransmissionCode = w.MatchedCode.TransmissionCode
		sp.TransmissionTemplate = w.MatchedCode.TransmissionTemplate
		sp.SpecifiedQuantity = w.MatchedCode.SpecifiedQuantity
		if u, ok := units.Parse(w.MatchedCode.EncodingUnit); ok {
			sp.EmbeddedUnit = &u
		}
	}
	if sp.EmbeddedUnit == nil {
		if u, ok := units.Parse(w.EmbeddedUnit); ok {
			sp.EmbeddedUnit = &u
		} else {
			sp.EmbeddedUnit = p.EncodingUnit
		}
	}
	sp.PriceOverride = w.Price
	sp.ReferencePriceOverride = w.ReferencePrice
	return sp, nil
}

func (w *wireProduct) toProduct() (model.Product, error) {
	if w.SKU == "" {
		return model.Product{}, errors.New("payload without sku")
	}
	p := model.Product{
		SKU:               w.SKU,
		Name:              w.Name,
		Description:       w.Description,
		Subtitle:          w.Subtitle,
		ImageURL:          w.ImageURL,
		ListPrice:         w.ListPrice,
		DiscountedPrice:   w.DiscountedPrice,
		CustomerCardPrice: w.CustomerCardPrice,
		BasePrice:         w.BasePrice,
		Type:              model.ProductType(w.Weighing),
		DepositSKU:        w.DepositSKU,
		Deposit:           w.Deposit,
		BundledSKU:        w.BundledSKU,
		IsDeposit:         w.IsDeposit,
		SaleRestriction:   model.SaleRestriction(w.SaleRestriction),
		SaleStop:          w.SaleStop,
		NotForSale:        w.NotForSale,
		Availability:      model.ParseAvailability(w.Availability),
		ScanMessage:       w.ScanMessage,
	}
	if u, ok := units.Parse(w.ReferenceUnit); ok {
		p.ReferenceUnit = &u
	}
	if u, ok := units.Parse(w.EncodingUnit); ok {
		p.EncodingUnit = &u
	}
	for _, wc := range w.Codes {
		c := model.ScannableCode{
			Code:                 wc.Code,
			Template:             wc.Template,
			TransmissionCode:     wc.TransmissionCode,
			SpecifiedQuantity:    wc.SpecifiedQuantity,
			TransmissionTemplate: wc.TransmissionTemplate,
		}
		if u, ok := units.Parse(wc.EncodingUnit); ok {
			c.EncodingUnit = &u
		}
		p.Codes = append(p.Codes, c)
	}
	for i := range w.Bundles {
		b, err := w.Bundles[i].toProduct()
		if err != nil {
			continue
		}
		if b.Availability != model.NotAvailable {
			p.Bundles = append(p.Bundles, b)
		}
	}
	return p, nil
}
