package catalog

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/retailkit/catalog/internal/remote"
	"github.com/retailkit/catalog/internal/store"
	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/pkg/errx"
)

// ProductProvider combines local store queries with remote fallback under
// the freshness policy: a fresh store answers locally, otherwise the backend
// is authoritative. The Fetch* variants always bypass the local store.
type ProductProvider struct {
	cfg    Config
	store  *store.Store
	remote *remote.Client
	log    *zap.SugaredLogger
}

// fresh reports whether the local store may answer lookups.
func (p *ProductProvider) fresh() bool {
	meta, err := p.store.Metadata()
	if err != nil {
		return false
	}
	if p.cfg.MaxAge <= 0 {
		return true
	}
	return time.Since(meta.LastUpdate) <= p.cfg.MaxAge
}

// ProductBySKU resolves one product for a shop.
func (p *ProductProvider) ProductBySKU(ctx context.Context, sku, shopID string) (model.Product, error) {
	if !p.fresh() {
		return p.FetchProductBySKU(ctx, sku, shopID)
	}
	prod, err := p.store.ProductBySKU(sku, shopID)
	if err != nil {
		return model.Product{}, p.degrade(err, sku)
	}
	return prod, nil
}

// FetchProductBySKU always asks the backend.
func (p *ProductProvider) FetchProductBySKU(ctx context.Context, sku, shopID string) (model.Product, error) {
	return p.remote.ProductBySKU(ctx, sku, shopID)
}

// ProductsBySKUs resolves a SKU list; missing SKUs are absent from the
// result, not errors.
func (p *ProductProvider) ProductsBySKUs(ctx context.Context, skus []string, shopID string) ([]model.Product, error) {
	if !p.fresh() {
		return p.FetchProductsBySKUs(ctx, skus, shopID)
	}
	out, err := p.store.ProductsBySKUs(skus, shopID)
	if err != nil {
		p.log.Warnw("sku list query failed", "err", err)
		return nil, nil
	}
	return out, nil
}

// FetchProductsBySKUs looks every SKU up at the backend, dropping misses.
func (p *ProductProvider) FetchProductsBySKUs(ctx context.Context, skus []string, shopID string) ([]model.Product, error) {
	out := make([]model.Product, 0, len(skus))
	for _, sku := range skus {
		prod, err := p.remote.ProductBySKU(ctx, sku, shopID)
		if err != nil {
			if stderrors.Is(err, errx.ErrProductNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, prod)
	}
	return out, nil
}

// ProductsByName is a full-text prefix search over the local store; there is
// no remote equivalent, so a missing or stale store yields an empty result.
func (p *ProductProvider) ProductsByName(name string, filterDeposits bool) ([]model.Product, error) {
	out, err := p.store.ProductsByName(name, filterDeposits)
	if err != nil {
		if !stderrors.Is(err, errx.ErrStoreAbsent) {
			p.log.Warnw("name search failed", "name", name, "err", err)
		}
		return nil, nil
	}
	return out, nil
}

// ProductsByScannableCodePrefix matches codes or SKUs against a scanned
// prefix, restricted to the given templates (default template when empty).
func (p *ProductProvider) ProductsByScannableCodePrefix(prefix string, filterDeposits bool, templates []string, shopID string) ([]model.Product, error) {
	out, err := p.store.ProductsByScannableCodePrefix(prefix, filterDeposits, templates, shopID)
	if err != nil {
		if !stderrors.Is(err, errx.ErrStoreAbsent) {
			p.log.Warnw("prefix search failed", "prefix", prefix, "err", err)
		}
		return nil, nil
	}
	return out, nil
}

// ScannedProductByCodes tries each (code, template) pair in order against
// the local store, or concurrently against the backend when the store is
// stale or absent.
func (p *ProductProvider) ScannedProductByCodes(ctx context.Context, pairs []model.CodeTemplate, shopID string) (model.ScannedProduct, error) {
	if !p.fresh() {
		return p.FetchScannedProductByCodes(ctx, pairs, shopID)
	}
	sp, err := p.store.ProductByCodes(pairs, shopID)
	if err != nil {
		if len(pairs) > 0 {
			return model.ScannedProduct{}, p.degrade(err, pairs[0].Code)
		}
		return model.ScannedProduct{}, errx.ErrProductNotFound
	}
	return sp, nil
}

// FetchScannedProductByCodes always asks the backend, one concurrent lookup
// per pair, first success wins.
func (p *ProductProvider) FetchScannedProductByCodes(ctx context.Context, pairs []model.CodeTemplate, shopID string) (model.ScannedProduct, error) {
	return p.remote.ProductByCodes(ctx, pairs, shopID)
}

// degrade converts local query failures into a miss: a lookup must never
// fail because of a store-side error, only report not-found.
func (p *ProductProvider) degrade(err error, input string) error {
	if stderrors.Is(err, errx.ErrProductNotFound) {
		return errx.Lookup(errx.ErrProductNotFound, input, nil)
	}
	p.log.Warnw("local lookup degraded to not-found", "input", input, "err", err)
	return errx.Lookup(errx.ErrProductNotFound, input, err)
}
