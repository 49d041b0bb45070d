package store

import "github.com/jmoiron/sqlx"

// SupportedSchemaMajor is the single major schema version this library can
// read. A store with any other major version is unusable and forces a full
// resync.
const SupportedSchemaMajor = 1

// Metadata table keys. The server owns revision and the schema version keys;
// app_lastUpdate is written locally after a successful update.
const (
	MetaRevision            = "revision"
	MetaSchemaVersionMajor  = "schemaVersionMajor"
	MetaSchemaVersionMinor  = "schemaVersionMinor"
	MetaDefaultAvailability = "defaultAvailability"
	MetaLastUpdate          = "app_lastUpdate"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata(
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS products(
  sku             TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  description     TEXT,
  subtitle        TEXT,
  imageUrl        TEXT,
  depositSku      TEXT,
  bundledSku      TEXT,
  isDeposit       INTEGER NOT NULL DEFAULT 0,
  weighing        INTEGER NOT NULL DEFAULT 0,
  saleRestriction INTEGER NOT NULL DEFAULT 0,
  saleStop        INTEGER NOT NULL DEFAULT 0,
  notForSale      INTEGER NOT NULL DEFAULT 0,
  referenceUnit   TEXT,
  encodingUnit    TEXT,
  scanMessage     TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_bundledSku ON products(bundledSku);

CREATE TABLE IF NOT EXISTS scannableCodes(
  sku                  TEXT NOT NULL,
  code                 TEXT NOT NULL,
  template             TEXT NOT NULL,
  transmissionCode     TEXT,
  encodingUnit         TEXT,
  specifiedQuantity    INTEGER,
  transmissionTemplate TEXT,
  PRIMARY KEY(code, template, sku)
);
CREATE INDEX IF NOT EXISTS idx_codes_sku ON scannableCodes(sku);

CREATE TABLE IF NOT EXISTS prices(
  sku               TEXT NOT NULL,
  pricingCategory   INTEGER NOT NULL DEFAULT 0,
  listPrice         INTEGER NOT NULL,
  discountedPrice   INTEGER,
  customerCardPrice INTEGER,
  basePrice         TEXT,
  PRIMARY KEY(sku, pricingCategory)
);

CREATE TABLE IF NOT EXISTS availabilities(
  sku          TEXT NOT NULL,
  shopID       TEXT NOT NULL,
  availability INTEGER NOT NULL,
  PRIMARY KEY(sku, shopID)
);

CREATE TABLE IF NOT EXISTS shops(
  id              TEXT PRIMARY KEY,
  pricingCategory INTEGER NOT NULL DEFAULT 0
);
`

// CreateSchema applies the catalog DDL. Production store files arrive fully
// formed from the server; this exists for tests and seed tooling.
func CreateSchema(db *sqlx.DB) error {
	_, err := db.Exec(schemaDDL)
	return err
}
