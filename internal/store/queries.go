package store

import (
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/pkg/errx"
)

const (
	// prefixSearchLimit caps prefix lookups at a fixed row count.
	prefixSearchLimit = 100

	// nameSearchCap is the design cap on full-text results; the effective
	// limit scales with query length below it.
	nameSearchCap = 500
)

const productColumns = `
  p.sku, p.name, p.description, p.subtitle, p.imageUrl,
  p.depositSku, p.bundledSku, p.isDeposit, p.weighing,
  p.saleRestriction, p.saleStop, p.notForSale,
  p.referenceUnit, p.encodingUnit, p.scanMessage`

// availabilityGate filters on the row's effective availability: the
// per-shop entry when one exists, the catalog default otherwise.
// Parameters: shopID, defaultAvailability, NotAvailable.
const availabilityGate = `COALESCE(
  (SELECT a.availability FROM availabilities a WHERE a.sku = p.sku AND a.shopID = ?), ?
) != ?`

// ProductBySKU loads one product with codes, resolved price, deposit and
// bundle list. Not-available rows report ErrProductNotFound.
func (s *Store) ProductBySKU(sku, shopID string) (model.Product, error) {
	g, err := s.current()
	if err != nil {
		return model.Product{}, err
	}
	return s.productBySKU(g, sku, shopID, true)
}

func (s *Store) productBySKU(g *generation, sku, shopID string, withBundles bool) (model.Product, error) {
	p, err := s.baseProduct(g, sku, shopID)
	if err != nil {
		return model.Product{}, err
	}
	if err := s.attachDeposit(g, &p, shopID); err != nil {
		return model.Product{}, err
	}
	if withBundles {
		if p.Bundles, err = s.bundlesOf(g, sku, shopID); err != nil {
			return model.Product{}, err
		}
	}
	return p, nil
}

// baseProduct loads a product with codes and price but without deposit or
// bundle resolution; deposit lookup uses it to stop after one level.
func (s *Store) baseProduct(g *generation, sku, shopID string) (model.Product, error) {
	var row productRow
	err := g.db.Get(&row, `SELECT `+productColumns+` FROM products p WHERE p.sku = ? AND `+availabilityGate,
		sku, shopID, int(g.meta.DefaultAvailability), int(model.NotAvailable))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return model.Product{}, errx.ErrProductNotFound
		}
		return model.Product{}, errors.Wrap(err, "query product by sku")
	}
	p, err := row.toProduct()
	if err != nil {
		s.log.Warnw("skipping undecodable product row", "sku", sku, "err", err)
		return model.Product{}, errx.ErrProductNotFound
	}
	p.Availability = s.effectiveAvailability(g, sku, shopID)
	if err := s.attachCodes(g, &p); err != nil {
		return model.Product{}, err
	}
	if err := s.attachPrice(g, &p, shopID); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// ProductsBySKUs resolves a list of SKUs; missing or unavailable SKUs are
// simply absent from the result.
func (s *Store) ProductsBySKUs(skus []string, shopID string) ([]model.Product, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	if len(skus) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products p WHERE p.sku IN (?) AND `+availabilityGate,
		skus, shopID, int(g.meta.DefaultAvailability), int(model.NotAvailable))
	if err != nil {
		return nil, errors.Wrap(err, "build sku list query")
	}
	var rows []productRow
	if err := g.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "query products by skus")
	}

	out := make([]model.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toProduct()
		if err != nil {
			s.log.Warnw("skipping undecodable product row", "sku", rows[i].SKU, "err", err)
			continue
		}
		p.Availability = s.effectiveAvailability(g, p.SKU, shopID)
		if err := s.attachCodes(g, &p); err != nil {
			return nil, err
		}
		if err := s.attachPrice(g, &p, shopID); err != nil {
			return nil, err
		}
		if err := s.attachDeposit(g, &p, shopID); err != nil {
			return nil, err
		}
		if p.Bundles, err = s.bundlesOf(g, p.SKU, shopID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ProductByCodes tries each (code, template) pair in the supplied order. On
// a full miss it strips one level of GTIN leading-zero padding from every
// strippable code and retries, until a match or nothing is left to strip.
func (s *Store) ProductByCodes(pairs []model.CodeTemplate, shopID string) (model.ScannedProduct, error) {
	g, err := s.current()
	if err != nil {
		return model.ScannedProduct{}, err
	}
	lookups := make([]codeLookup, len(pairs))
	for i, pr := range pairs {
		lookups[i] = codeLookup{pair: pr, original: pr.Code}
	}
	return s.productByCodes(g, lookups, shopID)
}

type codeLookup struct {
	pair     model.CodeTemplate
	original string
}

func (s *Store) productByCodes(g *generation, lookups []codeLookup, shopID string) (model.ScannedProduct, error) {
	for _, l := range lookups {
		sp, ok, err := s.lookupCode(g, l, shopID)
		if err != nil {
			return model.ScannedProduct{}, err
		}
		if ok {
			return sp, nil
		}
	}

	stripped := make([]codeLookup, 0, len(lookups))
	for _, l := range lookups {
		if short, ok := stripGTINZeros(l.pair.Code); ok {
			stripped = append(stripped, codeLookup{
				pair:     model.CodeTemplate{Code: short, Template: l.pair.Template},
				original: l.original,
			})
		}
	}
	if len(stripped) == 0 {
		return model.ScannedProduct{}, errx.ErrProductNotFound
	}
	return s.productByCodes(g, stripped, shopID)
}

func (s *Store) lookupCode(g *generation, l codeLookup, shopID string) (model.ScannedProduct, bool, error) {
	var row codeRow
	err := g.db.Get(&row, `
  SELECT c.sku, c.code, c.template, c.transmissionCode, c.encodingUnit,
         c.specifiedQuantity, c.transmissionTemplate
  FROM scannableCodes c
  JOIN products p ON p.sku = c.sku
  WHERE c.code = ? AND c.template = ? AND `+availabilityGate+`
  LIMIT 1`,
		l.pair.Code, l.pair.Template, shopID, int(g.meta.DefaultAvailability), int(model.NotAvailable))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return model.ScannedProduct{}, false, nil
		}
		return model.ScannedProduct{}, false, errors.Wrap(err, "query code")
	}

	code, err := row.toCode()
	if err != nil {
		s.log.Warnw("skipping undecodable code row", "code", l.pair.Code, "err", err)
		return model.ScannedProduct{}, false, nil
	}
	p, err := s.productBySKU(g, row.SKU, shopID, true)
	if err != nil {
		if stderrors.Is(err, errx.ErrProductNotFound) {
			return model.ScannedProduct{}, false, nil
		}
		return model.ScannedProduct{}, false, err
	}

	sp := model.ScannedProduct{
		Product:              p,
		Code:                 l.original,
		Template:             code.Template,
		TransmissionCode:     code.TransmissionCode,
		TransmissionTemplate: code.TransmissionTemplate,
		SpecifiedQuantity:    code.SpecifiedQuantity,
	}
	if code.EncodingUnit != nil {
		sp.EmbeddedUnit = code.EncodingUnit
	} else {
		sp.EmbeddedUnit = p.EncodingUnit
	}
	return sp, true, nil
}

// ProductsByName matches the full-text index as a prefix query. The result
// limit scales with the query length so short, ambiguous queries stay
// bounded. Price and bundle assembly are skipped.
func (s *Store) ProductsByName(name string, filterDeposits bool) ([]model.Product, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	if !SearchIndexPresent(g.db) {
		s.log.Debugw("name search without search index")
		return nil, nil
	}
	if name == "" {
		return nil, nil
	}

	limit := len(name) * 100
	if limit > nameSearchCap {
		limit = nameSearchCap
	}

	query := `
  SELECT ` + productColumns + `
  FROM ` + searchTableName + ` f
  JOIN products p ON p.sku = f.sku
  WHERE f.` + searchTableName + ` MATCH ? AND ` + availabilityGate
	if filterDeposits {
		query += ` AND p.isDeposit = 0`
	}
	query += ` LIMIT ?`

	var rows []productRow
	err = g.db.Select(&rows, query,
		ftsPrefixQuery(name), "", int(g.meta.DefaultAvailability), int(model.NotAvailable), limit)
	if err != nil {
		return nil, errors.Wrap(err, "query products by name")
	}
	return s.decodeRows(g, rows, "")
}

// ProductsByScannableCodePrefix glob-matches either a scannable code or the
// SKU against the prefix, restricted to a template set. Pre-weighed products
// are excluded; price and bundle assembly are skipped.
func (s *Store) ProductsByScannableCodePrefix(prefix string, filterDeposits bool, templates []string, shopID string) ([]model.Product, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return nil, nil
	}
	if len(templates) == 0 {
		templates = []string{model.DefaultTemplate}
	}

	query := `
  SELECT DISTINCT ` + productColumns + `
  FROM scannableCodes c
  JOIN products p ON p.sku = c.sku
  WHERE (c.code GLOB ? OR p.sku GLOB ?) AND c.template IN (?)
    AND p.weighing != ? AND ` + availabilityGate
	if filterDeposits {
		query += ` AND p.isDeposit = 0`
	}
	query += ` LIMIT ?`

	query, args, err := sqlx.In(query,
		prefix+"*", prefix+"*", templates, int(model.PreWeighed),
		shopID, int(g.meta.DefaultAvailability), int(model.NotAvailable), prefixSearchLimit)
	if err != nil {
		return nil, errors.Wrap(err, "build prefix query")
	}
	var rows []productRow
	if err := g.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "query products by prefix")
	}
	return s.decodeRows(g, rows, shopID)
}

// BundlesOf lists the available products whose bundledSku references the
// given SKU, each with per-shop price and deposit resolved.
func (s *Store) BundlesOf(sku, shopID string) ([]model.Product, error) {
	g, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.bundlesOf(g, sku, shopID)
}

func (s *Store) bundlesOf(g *generation, sku, shopID string) ([]model.Product, error) {
	var rows []productRow
	err := g.db.Select(&rows, `SELECT `+productColumns+` FROM products p WHERE p.bundledSku = ? AND `+availabilityGate,
		sku, shopID, int(g.meta.DefaultAvailability), int(model.NotAvailable))
	if err != nil {
		return nil, errors.Wrap(err, "query bundles")
	}
	out := make([]model.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toProduct()
		if err != nil {
			s.log.Warnw("skipping undecodable bundle row", "sku", rows[i].SKU, "err", err)
			continue
		}
		if err := s.attachCodes(g, &p); err != nil {
			return nil, err
		}
		if err := s.attachPrice(g, &p, shopID); err != nil {
			return nil, err
		}
		if err := s.attachDeposit(g, &p, shopID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) decodeRows(g *generation, rows []productRow, shopID string) ([]model.Product, error) {
	out := make([]model.Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toProduct()
		if err != nil {
			s.log.Warnw("skipping undecodable product row", "sku", rows[i].SKU, "err", err)
			continue
		}
		p.Availability = s.effectiveAvailability(g, p.SKU, shopID)
		if err := s.attachCodes(g, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// attachCodes loads the product's scannable codes. A follow-up query failure
// (for example the generation was closed mid-lookup) propagates so callers
// never hand out a partially assembled product; only row decode failures are
// skipped.
func (s *Store) attachCodes(g *generation, p *model.Product) error {
	var rows []codeRow
	err := g.db.Select(&rows, `
  SELECT sku, code, template, transmissionCode, encodingUnit, specifiedQuantity, transmissionTemplate
  FROM scannableCodes WHERE sku = ? ORDER BY code`, p.SKU)
	if err != nil {
		return errors.Wrap(err, "query codes")
	}
	for i := range rows {
		c, err := rows[i].toCode()
		if err != nil {
			s.log.Warnw("skipping undecodable code row", "sku", p.SKU, "err", err)
			continue
		}
		p.Codes = append(p.Codes, c)
	}
	return nil
}

func (s *Store) effectiveAvailability(g *generation, sku, shopID string) model.Availability {
	var av int
	err := g.db.Get(&av, `SELECT availability FROM availabilities WHERE sku = ? AND shopID = ?`, sku, shopID)
	if err != nil {
		return g.meta.DefaultAvailability
	}
	return model.Availability(av)
}
