package store

import (
	"database/sql"
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/pkg/errx"
)

// shopPricingCategory maps a shop to its pricing category; unknown shops use
// the default category 0.
func (s *Store) shopPricingCategory(g *generation, shopID string) int64 {
	if shopID == "" {
		return 0
	}
	var cat int64
	err := g.db.Get(&cat, `SELECT pricingCategory FROM shops WHERE id = ?`, shopID)
	if err != nil {
		if !stderrors.Is(err, sql.ErrNoRows) {
			s.log.Warnw("shop category query failed", "shop", shopID, "err", err)
		}
		return 0
	}
	return cat
}

// attachPrice resolves the price row with the highest matching category for
// the shop, falling back to the default category 0. A product without a
// price row keeps the zero price; a query failure propagates.
func (s *Store) attachPrice(g *generation, p *model.Product, shopID string) error {
	cat := s.shopPricingCategory(g, shopID)

	var pr priceRow
	err := g.db.Get(&pr, `
  SELECT listPrice, discountedPrice, customerCardPrice, basePrice
  FROM prices
  WHERE sku = ? AND pricingCategory IN (?, 0)
  ORDER BY pricingCategory DESC
  LIMIT 1`, p.SKU, cat)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return errors.Wrap(err, "query price")
	}
	p.ListPrice = pr.ListPrice
	p.DiscountedPrice = optInt64(pr.DiscountedPrice)
	p.CustomerCardPrice = optInt64(pr.CustomerCardPrice)
	p.BasePrice = pr.BasePrice.String
	return nil
}

// attachDeposit follows depositSku exactly one level. A missing or
// not-available deposit product resolves to "no deposit"; only a real query
// failure propagates.
func (s *Store) attachDeposit(g *generation, p *model.Product, shopID string) error {
	if p.DepositSKU == nil {
		return nil
	}
	dep, err := s.baseProduct(g, *p.DepositSKU, shopID)
	if err != nil {
		if stderrors.Is(err, errx.ErrProductNotFound) {
			return nil
		}
		return errors.Wrap(err, "resolve deposit")
	}
	amount := dep.EffectivePrice()
	p.Deposit = &amount
	return nil
}
