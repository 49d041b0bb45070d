package catalog

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config wires one retailer/project catalog. URLs may be left empty when the
// corresponding network behaviour (sync, remote lookups) is not used.
type Config struct {
	// Dir is the app-private directory holding the catalog database.
	Dir string `envconfig:"CATALOG_DIR" default:"."`

	// UpdateURL is the revision-based update endpoint.
	UpdateURL string `envconfig:"CATALOG_UPDATE_URL"`

	// ProductBySKUURL is the remote lookup endpoint with a {sku}
	// placeholder; ProductByCodeURL takes code/template/shopID parameters.
	ProductBySKUURL  string `envconfig:"CATALOG_SKU_URL"`
	ProductByCodeURL string `envconfig:"CATALOG_CODE_URL"`

	// UseFTS maintains the full-text search index for name lookups.
	UseFTS bool `envconfig:"CATALOG_USE_FTS" default:"true"`

	// MaxAge is the freshness policy: local data older than this routes
	// lookups to the backend. Zero disables the staleness check.
	MaxAge time.Duration `envconfig:"CATALOG_MAX_AGE" default:"1h"`

	// LookupTimeout bounds a single remote lookup.
	LookupTimeout time.Duration `envconfig:"CATALOG_LOOKUP_TIMEOUT" default:"5s"`

	// UpdateCron schedules periodic update cycles when non-empty, e.g.
	// "@every 15m".
	UpdateCron string `envconfig:"CATALOG_UPDATE_CRON"`
}

// ConfigFromEnv loads Config from CATALOG_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
