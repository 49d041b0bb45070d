// Package updater orchestrates the catalog update protocol: requesting a
// diff or full snapshot, staging it, validating it and swapping it in. Only
// one cycle may run at a time; all staging work happens on the caller's
// goroutine (callers run it on a background worker).
package updater

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/retailkit/catalog/internal/store"
	"github.com/retailkit/catalog/pkg/errx"
)

type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStaging
	StateValidating
	StateSwapPending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStaging:
		return "staging"
	case StateValidating:
		return "validating"
	case StateSwapPending:
		return "swapPending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Result int

const (
	// ResultUnchanged: the cycle ended without touching the current store
	// (no update available, or the attempt failed cleanly).
	ResultUnchanged Result = iota
	ResultUpdated
)

type Config struct {
	// URL is the catalog update endpoint.
	URL string
	// UseFTS enables full-text index maintenance for this catalog.
	UseFTS bool
}

type Engine struct {
	store *store.Store
	cfg   Config
	log   *zap.SugaredLogger

	mu     sync.Mutex
	state  State
	resume *resumeState

	now func() time.Time
}

func New(st *store.Store, cfg Config) *Engine {
	return &Engine{
		store: st,
		cfg:   cfg,
		log:   zap.S().Named("updater"),
		now:   time.Now,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Update runs one full update cycle. A second trigger while a cycle is
// active returns ErrUpdateInProgress.
func (e *Engine) Update(ctx context.Context) (Result, error) {
	if err := e.begin(); err != nil {
		return ResultUnchanged, err
	}
	defer e.finish()
	return e.cycle(ctx, false, nil)
}

// ForceFullUpdate skips diff negotiation and requests a complete snapshot.
func (e *Engine) ForceFullUpdate(ctx context.Context) (Result, error) {
	if err := e.begin(); err != nil {
		return ResultUnchanged, err
	}
	defer e.finish()
	return e.cycle(ctx, true, nil)
}

// Resume continues an aborted download from its preserved partial state.
func (e *Engine) Resume(ctx context.Context) (Result, error) {
	if err := e.begin(); err != nil {
		return ResultUnchanged, err
	}
	defer e.finish()

	e.mu.Lock()
	rs := e.resume
	e.resume = nil
	e.mu.Unlock()
	if rs == nil {
		return ResultUnchanged, errx.ErrNoResumableState
	}
	return e.cycle(ctx, rs.forceFull, rs)
}

// Resumable reports whether partial-download state is available.
func (e *Engine) Resumable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resume != nil
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return errx.ErrUpdateInProgress
	}
	e.state = StateRequesting
	return nil
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.state = StateIdle
	e.mu.Unlock()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// cursor returns the revision/schema pair to announce to the server.
func (e *Engine) cursor() (revision int64, schemaVersion string, firstInstall bool) {
	if meta, err := e.store.Metadata(); err == nil {
		return meta.Revision, meta.SchemaVersion(), false
	}
	return 0, fmt.Sprintf("%d.0", store.SupportedSchemaMajor), true
}

func (e *Engine) cycle(ctx context.Context, forceFull bool, rs *resumeState) (Result, error) {
	rev, schema, firstInstall := e.cursor()
	if firstInstall {
		// Without a usable current store a diff has nothing to apply to.
		forceFull = true
	}

	e.setState(StateRequesting)
	pl, err := e.fetch(ctx, rev, schema, forceFull, rs)
	if err != nil {
		e.setState(StateFailed)
		return ResultUnchanged, err
	}

	switch pl.kind {
	case payloadNone:
		e.ensureSearchIndexInPlace()
		e.log.Debugw("catalog already current", "revision", rev)
		return ResultUnchanged, nil

	case payloadDiff:
		e.setState(StateStaging)
		staged, err := e.stageDiff(pl.path)
		if err == nil {
			e.setState(StateValidating)
			err = e.validate(staged, firstInstall)
		}
		if err != nil {
			if staged != "" {
				_ = os.Remove(staged)
			}
			if corrupt := e.handleCorruption(err); corrupt != nil {
				return ResultUnchanged, corrupt
			}
			// A rejected diff always escalates to a full snapshot.
			e.log.Warnw("diff rejected, retrying as full snapshot", "err", err)
			return e.cycle(ctx, true, nil)
		}
		return e.swap(staged, rev)

	case payloadSnapshot:
		e.setState(StateStaging)
		staged, err := e.stageSnapshot(pl.path)
		if err == nil {
			e.setState(StateValidating)
			err = e.validate(staged, firstInstall)
		}
		if err != nil {
			if staged != "" {
				_ = os.Remove(staged)
			}
			if corrupt := e.handleCorruption(err); corrupt != nil {
				return ResultUnchanged, corrupt
			}
			e.setState(StateFailed)
			// Terminal for this attempt; the current store is untouched.
			return ResultUnchanged, err
		}
		return e.swap(staged, rev)

	default:
		e.setState(StateFailed)
		return ResultUnchanged, errors.Wrap(errx.ErrServer, "unknown payload kind")
	}
}

// handleCorruption maps a storage-engine corruption signal during staging to
// the one destructive recovery: the current store is deleted outright so the
// next cycle starts from a clean full download.
func (e *Engine) handleCorruption(err error) error {
	if !store.IsCorrupt(err) && !stderrors.Is(err, errx.ErrStoreCorrupt) {
		return nil
	}
	e.log.Errorw("store corruption during staging, discarding current store", "err", err)
	_ = e.store.RemoveCurrent()
	e.setState(StateFailed)
	if stderrors.Is(err, errx.ErrStoreCorrupt) {
		return err
	}
	return errors.Wrap(errx.ErrStoreCorrupt, err.Error())
}

// stageDiff copies the current store aside, applies the statement batch in
// one transaction and compacts the staged file.
func (e *Engine) stageDiff(payloadPath string) (string, error) {
	defer os.Remove(payloadPath)

	staged := e.store.StagingPath()
	if err := e.store.CopyCurrentTo(staged); err != nil {
		return "", err
	}

	db, err := store.OpenFile(staged, true)
	if err != nil {
		return staged, err
	}
	defer db.Close()

	stmts, err := os.ReadFile(payloadPath)
	if err != nil {
		return staged, errors.Wrap(err, "read diff payload")
	}

	if err := e.applyStatements(db, string(stmts)); err != nil {
		return staged, err
	}

	if _, err := db.Exec(`VACUUM`); err != nil {
		e.log.Warnw("vacuum after diff failed", "err", err)
	}
	return staged, e.finalizeStaged(db)
}

func (e *Engine) applyStatements(db *sqlx.DB, batch string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin diff transaction")
	}
	if _, err := tx.Exec(batch); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "apply diff statements")
	}
	return errors.Wrap(tx.Commit(), "commit diff")
}

// stageSnapshot moves the downloaded replacement file into the staging path
// and stamps it.
func (e *Engine) stageSnapshot(payloadPath string) (string, error) {
	staged := e.store.StagingPath()
	if err := os.Rename(payloadPath, staged); err != nil {
		return "", errors.Wrap(err, "move snapshot into staging")
	}

	db, err := store.OpenFile(staged, true)
	if err != nil {
		return staged, err
	}
	defer db.Close()
	return staged, e.finalizeStaged(db)
}

// finalizeStaged stamps the local update time and rebuilds the search index
// on the staged store before it is validated and swapped in.
func (e *Engine) finalizeStaged(db *sqlx.DB) error {
	if err := store.WriteLastUpdate(db, e.now()); err != nil {
		return err
	}
	if e.cfg.UseFTS {
		if err := store.RebuildSearchIndex(db); err != nil {
			return err
		}
	}
	return nil
}

// validate runs the integrity check (skipped on first install) and requires
// complete metadata with the supported major schema version.
func (e *Engine) validate(stagedPath string, firstInstall bool) error {
	db, err := store.OpenFile(stagedPath, false)
	if err != nil {
		if store.IsCorrupt(err) {
			return errors.Wrap(errx.ErrStoreCorrupt, err.Error())
		}
		return err
	}
	defer db.Close()

	if !firstInstall {
		if err := store.IntegrityCheck(db); err != nil {
			if store.IsCorrupt(err) {
				return errors.Wrap(errx.ErrStoreCorrupt, err.Error())
			}
			return err
		}
	}

	meta, err := store.ReadMetadata(db)
	if err != nil {
		return err
	}
	if meta.SchemaVersionMajor != store.SupportedSchemaMajor {
		return errors.Wrapf(errx.ErrSchemaUnsupported, "staged major %d", meta.SchemaVersionMajor)
	}
	return nil
}

func (e *Engine) swap(stagedPath string, oldRevision int64) (Result, error) {
	e.setState(StateSwapPending)
	if err := e.store.Swap(stagedPath); err != nil {
		_ = os.Remove(stagedPath)
		return ResultUnchanged, err
	}
	meta, err := e.store.Metadata()
	if err != nil {
		return ResultUnchanged, err
	}
	if meta.Revision < oldRevision {
		e.log.Warnw("revision moved backwards", "old", oldRevision, "new", meta.Revision)
	}
	e.log.Infow("catalog updated", "revision", meta.Revision)
	return ResultUpdated, nil
}

// ensureSearchIndexInPlace builds the full-text table directly on the
// current store when an update brought no new data but the index is missing
// (e.g. FTS was enabled after the last sync). No swap happens.
func (e *Engine) ensureSearchIndexInPlace() {
	if !e.cfg.UseFTS || !e.store.Opened() || e.store.SearchIndexPresent() {
		return
	}
	db, err := store.OpenFile(e.store.CurrentPath(), true)
	if err != nil {
		e.log.Warnw("cannot open store for index build", "err", err)
		return
	}
	defer db.Close()
	if err := store.RebuildSearchIndex(db); err != nil {
		e.log.Warnw("in-place index build failed", "err", err)
		return
	}
	e.log.Infow("search index built in place")
}
