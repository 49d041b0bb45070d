package store

import (
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailkit/catalog/model"
	"github.com/retailkit/catalog/pkg/errx"
)

func TestProductBySKUAssemblesEverything(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		mustExec(t, db, `INSERT INTO products(sku, name, description, depositSku) VALUES
		  ('water-1', 'Sparkling Water', 'A bottle of water', 'deposit-bottle')`)
		insertProduct(t, db, "deposit-bottle", "Bottle Deposit")
		mustExec(t, db, `UPDATE products SET isDeposit = 1 WHERE sku = 'deposit-bottle'`)
		mustExec(t, db, `INSERT INTO products(sku, name, bundledSku) VALUES
		  ('water-crate', 'Water Crate 12x', 'water-1')`)
		insertPrice(t, db, "water-1", 0, 79)
		insertPrice(t, db, "deposit-bottle", 0, 25)
		insertPrice(t, db, "water-crate", 0, 899)
		insertCode(t, db, "water-1", "4000000000001", "default", "")
	})

	p, err := s.ProductBySKU("water-1", "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "Sparkling Water", p.Name)
	assert.Equal(t, "A bottle of water", p.Description)
	assert.Equal(t, int64(79), p.ListPrice)
	require.Len(t, p.Codes, 1)
	assert.Equal(t, "4000000000001", p.Codes[0].Code)

	require.NotNil(t, p.Deposit, "deposit must resolve through depositSku")
	assert.Equal(t, int64(25), *p.Deposit)

	require.Len(t, p.Bundles, 1)
	assert.Equal(t, "water-crate", p.Bundles[0].SKU)
	assert.Equal(t, int64(899), p.Bundles[0].ListPrice)
}

func TestProductBySKUNotFound(t *testing.T) {
	s := openTestStore(t, 1, nil)
	_, err := s.ProductBySKU("nope", "")
	assert.ErrorIs(t, err, errx.ErrProductNotFound)
}

func TestAvailabilityExclusion(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "gone-1", "Delisted Product")
		insertPrice(t, db, "gone-1", 0, 100)
		insertCode(t, db, "gone-1", "4012345678901", "default", "")
		insertAvailability(t, db, "gone-1", "shop-1", int(model.NotAvailable))
	})

	// Not available in shop-1 …
	_, err := s.ProductBySKU("gone-1", "shop-1")
	assert.ErrorIs(t, err, errx.ErrProductNotFound)
	_, err = s.ProductByCodes([]model.CodeTemplate{{Code: "4012345678901", Template: "default"}}, "shop-1")
	assert.ErrorIs(t, err, errx.ErrProductNotFound)
	out, err := s.ProductsByScannableCodePrefix("40123", false, nil, "shop-1")
	require.NoError(t, err)
	assert.Empty(t, out)

	// … but still sold elsewhere, where the default availability applies.
	p, err := s.ProductBySKU("gone-1", "shop-2")
	require.NoError(t, err)
	assert.Equal(t, "Delisted Product", p.Name)
}

func TestDefaultAvailabilityNotAvailable(t *testing.T) {
	s := New(t.TempDir())
	buildStoreFile(t, s.CurrentPath(), 1, func(db *sqlx.DB) {
		mustExec(t, db, `UPDATE metadata SET value = '2' WHERE key = 'defaultAvailability'`)
		insertProduct(t, db, "rare-1", "Shop Exclusive")
		insertAvailability(t, db, "rare-1", "shop-1", int(model.InStock))
	})
	require.NoError(t, s.Open())
	t.Cleanup(s.Close)

	// Listed only where an explicit availability row exists.
	_, err := s.ProductBySKU("rare-1", "shop-2")
	assert.ErrorIs(t, err, errx.ErrProductNotFound)
	_, err = s.ProductBySKU("rare-1", "shop-1")
	assert.NoError(t, err)
}

func TestProductsBySKUs(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "a-1", "Product A")
		insertProduct(t, db, "b-1", "Product B")
	})
	out, err := s.ProductsBySKUs([]string{"a-1", "b-1", "missing"}, "")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestProductByCodesOrderedPairs(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "first-1", "First Match")
		insertProduct(t, db, "second-1", "Second Match")
		insertCode(t, db, "first-1", "12345", "default", "")
		insertCode(t, db, "second-1", "12345", "shelfcode", "")
	})

	sp, err := s.ProductByCodes([]model.CodeTemplate{
		{Code: "12345", Template: "shelfcode"},
		{Code: "12345", Template: "default"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "second-1", sp.Product.SKU, "pairs must be tried in caller order")
	assert.Equal(t, "shelfcode", sp.Template)
}

func TestProductByCodesTransmissionCode(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "ean8-1", "Small Pack")
		insertCode(t, db, "ean8-1", "40123450", "default", "0000040123450")
	})

	sp, err := s.ProductByCodes([]model.CodeTemplate{{Code: "40123450", Template: "default"}}, "")
	require.NoError(t, err)
	require.NotNil(t, sp.TransmissionCode)
	assert.Equal(t, "0000040123450", *sp.TransmissionCode)
	assert.Equal(t, "0000040123450", sp.EffectiveTransmissionCode())
}

func TestGTINLeadingZeroNormalization(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "gtin-13", "Thirteen Digits")
		insertCode(t, db, "gtin-13", "4012345678901", "default", "")
		insertProduct(t, db, "gtin-8", "Eight Digits")
		insertCode(t, db, "gtin-8", "40123450", "default", "")
	})

	cases := []struct {
		lookup string
		sku    string
	}{
		{"4012345678901", "gtin-13"},  // direct
		{"04012345678901", "gtin-13"}, // 14 → 13
		{"40123450", "gtin-8"},        // direct
		{"000040123450", "gtin-8"},    // 12 → 8
		{"0000040123450", "gtin-8"},   // 13 → 12 → 8
		{"00000040123450", "gtin-8"},  // 14 → 13 → 12 → 8
	}
	for _, c := range cases {
		sp, err := s.ProductByCodes([]model.CodeTemplate{{Code: c.lookup, Template: "default"}}, "")
		require.NoError(t, err, "lookup %s", c.lookup)
		assert.Equal(t, c.sku, sp.Product.SKU, "lookup %s", c.lookup)
		assert.Equal(t, c.lookup, sp.Code, "scanned code keeps the original lookup code")
	}

	_, err := s.ProductByCodes([]model.CodeTemplate{{Code: "99999999999999", Template: "default"}}, "")
	assert.ErrorIs(t, err, errx.ErrProductNotFound, "no zeros to strip, no match")
}

func TestPriceCategoryFallback(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "coffee-1", "Coffee")
		insertPrice(t, db, "coffee-1", 0, 499)
		insertPrice(t, db, "coffee-1", 7, 449)
		insertProduct(t, db, "tea-1", "Tea")
		insertPrice(t, db, "tea-1", 0, 299)
		insertShop(t, db, "shop-discount", 7)
	})

	// Shop with matching category row.
	p, err := s.ProductBySKU("coffee-1", "shop-discount")
	require.NoError(t, err)
	assert.Equal(t, int64(449), p.ListPrice)

	// Same shop, SKU without a category-7 row: category 0 applies.
	p, err = s.ProductBySKU("tea-1", "shop-discount")
	require.NoError(t, err)
	assert.Equal(t, int64(299), p.ListPrice)

	// Unknown shop: category 0.
	p, err = s.ProductBySKU("coffee-1", "somewhere-else")
	require.NoError(t, err)
	assert.Equal(t, int64(499), p.ListPrice)
}

func TestDepositOfMissingProductResolvesToNone(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		mustExec(t, db, `INSERT INTO products(sku, name, depositSku) VALUES
		  ('juice-1', 'Juice', 'no-such-deposit'),
		  ('soda-1', 'Soda', 'dead-deposit')`)
		insertProduct(t, db, "dead-deposit", "Retired Deposit")
		insertAvailability(t, db, "dead-deposit", "shop-1", int(model.NotAvailable))
	})

	p, err := s.ProductBySKU("juice-1", "shop-1")
	require.NoError(t, err)
	assert.Nil(t, p.Deposit, "missing deposit product means no deposit")

	p, err = s.ProductBySKU("soda-1", "shop-1")
	require.NoError(t, err)
	assert.Nil(t, p.Deposit, "not-available deposit product means no deposit")
}

func TestBundlesExcludeNotAvailable(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "bottle-1", "Bottle")
		mustExec(t, db, `INSERT INTO products(sku, name, bundledSku) VALUES
		  ('crate-1', 'Crate', 'bottle-1'),
		  ('pack-1', 'Six Pack', 'bottle-1')`)
		insertAvailability(t, db, "pack-1", "shop-1", int(model.NotAvailable))
	})

	p, err := s.ProductBySKU("bottle-1", "shop-1")
	require.NoError(t, err)
	require.Len(t, p.Bundles, 1)
	assert.Equal(t, "crate-1", p.Bundles[0].SKU)
}

func TestPrefixSearch(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "apple-1", "Apples")
		insertCode(t, db, "apple-1", "4711001", "default", "")
		insertProduct(t, db, "banana-1", "Bananas")
		insertCode(t, db, "banana-1", "4711002", "ean8", "")
		mustExec(t, db, `INSERT INTO products(sku, name, weighing) VALUES('cheese-1', 'Cheese', 1)`)
		insertCode(t, db, "cheese-1", "4711003", "default", "")
	})

	// Default template set only sees apple; banana's code uses another
	// template, cheese is pre-weighed.
	out, err := s.ProductsByScannableCodePrefix("4711", false, nil, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "apple-1", out[0].SKU)

	// Widening the template set brings banana in.
	out, err = s.ProductsByScannableCodePrefix("4711", false, []string{"default", "ean8"}, "")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	// SKU prefixes match too.
	out, err = s.ProductsByScannableCodePrefix("apple", false, nil, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "apple-1", out[0].SKU)
}

func TestRowDecodeFailureIsSkipped(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		mustExec(t, db, `INSERT INTO products(sku, name, referenceUnit) VALUES('weird-1', 'Weird Unit', 'parsec')`)
		insertProduct(t, db, "fine-1", "Fine Product")
	})

	_, err := s.ProductBySKU("weird-1", "")
	assert.ErrorIs(t, err, errx.ErrProductNotFound, "undecodable row degrades to a miss")

	out, err := s.ProductsBySKUs([]string{"weird-1", "fine-1"}, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "fine-1", out[0].SKU)
}

func TestClosedGenerationFailsLookupWholesale(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		insertProduct(t, db, "water-1", "Sparkling Water")
		insertPrice(t, db, "water-1", 0, 79)
		insertCode(t, db, "water-1", "4000000000001", "default", "")
		insertProduct(t, db, "deposit-1", "Bottle Deposit")
		insertPrice(t, db, "deposit-1", 0, 25)
	})

	g := s.gen.Load()
	p, err := s.productBySKU(g, "water-1", "", true)
	require.NoError(t, err)
	require.Len(t, p.Codes, 1)

	// A swap closes the old generation underneath readers still holding it.
	// Every follow-up query on that handle must fail the lookup as a whole;
	// a product without its codes or price must never escape.
	require.NoError(t, g.db.Close())

	depositSKU := "deposit-1"
	p = model.Product{SKU: "water-1", DepositSKU: &depositSKU}
	assert.Error(t, s.attachCodes(g, &p))
	assert.Error(t, s.attachPrice(g, &p, ""))
	assert.Error(t, s.attachDeposit(g, &p, ""))
	assert.Empty(t, p.Codes)

	_, err = s.productBySKU(g, "water-1", "", true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errx.ErrProductNotFound)

	_, err = s.bundlesOf(g, "water-1", "")
	assert.Error(t, err)
}

func TestPrefixSearchResultCap(t *testing.T) {
	s := openTestStore(t, 1, func(db *sqlx.DB) {
		for i := 0; i < 120; i++ {
			sku := fmt.Sprintf("bulk-%03d", i)
			insertProduct(t, db, sku, fmt.Sprintf("Bulk Item %03d", i))
			insertCode(t, db, sku, fmt.Sprintf("4799%09d", i), "default", "")
		}
	})

	out, err := s.ProductsByScannableCodePrefix("4799", false, nil, "")
	require.NoError(t, err)
	assert.Len(t, out, prefixSearchLimit)
}
