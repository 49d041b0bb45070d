package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/units"
)

// productRow mirrors the products table with explicit NULL handling. Decode
// is strict: a row that cannot be mapped is skipped (and logged) by the
// caller instead of propagating a panic or a half-decoded product.
type productRow struct {
	SKU             string         `db:"sku"`
	Name            string         `db:"name"`
	Description     sql.NullString `db:"description"`
	Subtitle        sql.NullString `db:"subtitle"`
	ImageURL        sql.NullString `db:"imageUrl"`
	DepositSKU      sql.NullString `db:"depositSku"`
	BundledSKU      sql.NullString `db:"bundledSku"`
	IsDeposit       bool           `db:"isDeposit"`
	Weighing        int            `db:"weighing"`
	SaleRestriction int64          `db:"saleRestriction"`
	SaleStop        bool           `db:"saleStop"`
	NotForSale      bool           `db:"notForSale"`
	ReferenceUnit   sql.NullString `db:"referenceUnit"`
	EncodingUnit    sql.NullString `db:"encodingUnit"`
	ScanMessage     sql.NullString `db:"scanMessage"`
}

func (r *productRow) toProduct() (model.Product, error) {
	if r.SKU == "" {
		return model.Product{}, errors.New("row without sku")
	}
	p := model.Product{
		SKU:             r.SKU,
		Name:            r.Name,
		Description:     r.Description.String,
		Subtitle:        r.Subtitle.String,
		ImageURL:        r.ImageURL.String,
		IsDeposit:       r.IsDeposit,
		Type:            model.ProductType(r.Weighing),
		SaleRestriction: model.SaleRestriction(r.SaleRestriction),
		SaleStop:        r.SaleStop,
		NotForSale:      r.NotForSale,
	}
	p.DepositSKU = optString(r.DepositSKU)
	p.BundledSKU = optString(r.BundledSKU)

	var err error
	if p.ReferenceUnit, err = optUnit(r.ReferenceUnit); err != nil {
		return model.Product{}, errors.Wrapf(err, "sku %s", r.SKU)
	}
	if p.EncodingUnit, err = optUnit(r.EncodingUnit); err != nil {
		return model.Product{}, errors.Wrapf(err, "sku %s", r.SKU)
	}
	p.ScanMessage = optString(r.ScanMessage)
	return p, nil
}

type codeRow struct {
	SKU                  string         `db:"sku"`
	Code                 string         `db:"code"`
	Template             string         `db:"template"`
	TransmissionCode     sql.NullString `db:"transmissionCode"`
	EncodingUnit         sql.NullString `db:"encodingUnit"`
	SpecifiedQuantity    sql.NullInt64  `db:"specifiedQuantity"`
	TransmissionTemplate sql.NullString `db:"transmissionTemplate"`
}

func (r *codeRow) toCode() (model.ScannableCode, error) {
	c := model.ScannableCode{
		Code:              r.Code,
		Template:          r.Template,
		TransmissionCode:  optString(r.TransmissionCode),
		SpecifiedQuantity: int(r.SpecifiedQuantity.Int64),
	}
	var err error
	if c.EncodingUnit, err = optUnit(r.EncodingUnit); err != nil {
		return model.ScannableCode{}, errors.Wrapf(err, "code %s", r.Code)
	}
	c.TransmissionTemplate = optString(r.TransmissionTemplate)
	return c, nil
}

type priceRow struct {
	ListPrice         int64          `db:"listPrice"`
	DiscountedPrice   sql.NullInt64  `db:"discountedPrice"`
	CustomerCardPrice sql.NullInt64  `db:"customerCardPrice"`
	BasePrice         sql.NullString `db:"basePrice"`
}

func optString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func optInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func optUnit(v sql.NullString) (*units.Unit, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	u, ok := units.Parse(v.String)
	if !ok {
		return nil, errors.Errorf("unknown unit %q", v.String)
	}
	return &u, nil
}
