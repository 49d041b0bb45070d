// Package catalog maintains a per-retailer product catalog that works fully
// offline, stays synchronized with a remote authority through revision-based
// updates, and answers scanner lookups from an embedded store with a remote
// fallback when local data is stale, missing or bypassed.
package catalog

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/retailkit/catalog/internal/remote"
	"github.com/retailkit/catalog/internal/store"
	"github.com/retailkit/catalog/internal/updater"
	"github.com/retailkit/catalog/pkg/errx"
)

type Catalog struct {
	cfg      Config
	store    *store.Store
	engine   *updater.Engine
	sched    *updater.Scheduler
	provider *ProductProvider
	log      *zap.SugaredLogger
}

// New opens the catalog in cfg.Dir. An absent store is not an error: lookups
// fall back to the backend until the first update or seed install. An
// unsupported schema version leaves the store unopened so the next update
// cycle performs a full resync.
func New(cfg Config) (*Catalog, error) {
	log := zap.S().Named("catalog")

	st := store.New(cfg.Dir)
	if err := st.Open(); err != nil {
		switch {
		case stderrors.Is(err, errx.ErrStoreAbsent):
			log.Infow("no local catalog yet", "dir", cfg.Dir)
		case stderrors.Is(err, errx.ErrSchemaUnsupported):
			log.Warnw("local catalog has unsupported schema, full resync required", "err", err)
		default:
			log.Warnw("local catalog unusable", "err", err)
		}
	}

	engine := updater.New(st, updater.Config{URL: cfg.UpdateURL, UseFTS: cfg.UseFTS})

	client := remote.NewClient(remote.Config{
		SKUURL:  cfg.ProductBySKUURL,
		CodeURL: cfg.ProductByCodeURL,
		Timeout: cfg.LookupTimeout,
	})

	c := &Catalog{
		cfg:    cfg,
		store:  st,
		engine: engine,
		log:    log,
	}
	c.provider = &ProductProvider{cfg: cfg, store: st, remote: client, log: log.Named("provider")}

	if cfg.UpdateCron != "" {
		sched, err := updater.NewScheduler(engine, cfg.UpdateCron)
		if err != nil {
			return nil, err
		}
		c.sched = sched
	}
	return c, nil
}

// Products is the lookup facade.
func (c *Catalog) Products() *ProductProvider { return c.provider }

// Update runs one update cycle; updated reports whether a new store
// generation was swapped in.
func (c *Catalog) Update(ctx context.Context) (updated bool, err error) {
	res, err := c.engine.Update(ctx)
	return res == updater.ResultUpdated, err
}

// ForceFullUpdate requests a complete snapshot regardless of the local
// revision.
func (c *Catalog) ForceFullUpdate(ctx context.Context) (bool, error) {
	res, err := c.engine.ForceFullUpdate(ctx)
	return res == updater.ResultUpdated, err
}

// ResumeUpdate continues an aborted download from its partial state.
func (c *Catalog) ResumeUpdate(ctx context.Context) (bool, error) {
	res, err := c.engine.Resume(ctx)
	return res == updater.ResultUpdated, err
}

// InstallSeed unpacks a bundled snapshot archive on first run when its
// declared revision exceeds the current one.
func (c *Catalog) InstallSeed(zipPath string, seedRevision int64) error {
	return c.engine.InstallSeed(zipPath, seedRevision)
}

// Revision of the current store; ErrStoreAbsent when none exists.
func (c *Catalog) Revision() (int64, error) {
	meta, err := c.store.Metadata()
	if err != nil {
		return 0, err
	}
	return meta.Revision, nil
}

// StartScheduler begins periodic updates when Config.UpdateCron is set.
func (c *Catalog) StartScheduler() {
	if c.sched != nil {
		c.sched.Start()
	}
}

func (c *Catalog) Close() {
	if c.sched != nil {
		c.sched.Stop()
	}
	c.store.Close()
}
