// Package store owns the on-disk catalog database: schema, metadata,
// generation handling (current / staging / previous) and the read-only query
// layer. Write access is confined to staging copies driven by the updater.
package store

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	sqlite3 "modernc.org/sqlite"

	"github.com/retailkit/catalog/pkg/errx"
)

const (
	currentName  = "catalog.sqlite3"
	previousName = "catalog.sqlite3.previous"
)

// sqlite primary result codes signalling structural corruption.
const (
	sqliteCorrupt = 11 // SQLITE_CORRUPT
	sqliteNotADB  = 26 // SQLITE_NOTADB
)

// generation is one immutable snapshot of the store: an open read-only
// handle plus the metadata read at open time. Readers load the pointer once
// and run every query of a lookup against the same generation; a lookup cut
// off by a swap fails as a whole rather than mixing generations.
type generation struct {
	db   *sqlx.DB
	meta Metadata
}

type Store struct {
	dir string
	gen atomic.Pointer[generation]

	// swapMu serialises generation swaps; it is never taken on the query
	// path.
	swapMu sync.Mutex

	log *zap.SugaredLogger
}

func New(dir string) *Store {
	s := &Store{dir: dir, log: zap.S().Named("store")}
	s.sweepStale()
	return s
}

// sweepStale deletes staging and partial-download files an interrupted
// process left behind. Runs once at construction, before any update cycle
// can own such a file.
func (s *Store) sweepStale() {
	for _, pattern := range []string{"staging-*.sqlite3", "partial-*.bin"} {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err == nil {
				s.log.Infow("removed stale file", "path", m)
			}
		}
	}
}

func (s *Store) CurrentPath() string  { return filepath.Join(s.dir, currentName) }
func (s *Store) PreviousPath() string { return filepath.Join(s.dir, previousName) }

// StagingPath returns a fresh unique path for a staging copy or a downloaded
// snapshot. Staging files live next to the current store so the final rename
// stays on one filesystem.
func (s *Store) StagingPath() string {
	return filepath.Join(s.dir, "staging-"+uuid.NewString()+".sqlite3")
}

// PartialPath returns a fresh unique path for an interrupted download.
func (s *Store) PartialPath() string {
	return filepath.Join(s.dir, "partial-"+uuid.NewString()+".bin")
}

// Open attaches to the current store file read-only. ErrStoreAbsent when no
// file exists; ErrSchemaUnsupported when the major schema version does not
// match (callers must force a full resync).
func (s *Store) Open() error {
	if _, err := os.Stat(s.CurrentPath()); err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrap(err, "stat current store")
		}
		// A crash between the two swap renames leaves the pre-swap store
		// parked at the previous path. Promote it back instead of forcing a
		// full re-download.
		if _, perr := os.Stat(s.PreviousPath()); perr != nil {
			return errx.ErrStoreAbsent
		}
		if rerr := os.Rename(s.PreviousPath(), s.CurrentPath()); rerr != nil {
			return errors.Wrap(rerr, "recover previous store")
		}
		s.log.Warnw("recovered interrupted swap from previous store", "path", s.CurrentPath())
	}

	db, err := OpenFile(s.CurrentPath(), false)
	if err != nil {
		return err
	}
	meta, err := ReadMetadata(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	if meta.SchemaVersionMajor != SupportedSchemaMajor {
		_ = db.Close()
		return errors.Wrapf(errx.ErrSchemaUnsupported, "major %d", meta.SchemaVersionMajor)
	}

	old := s.gen.Swap(&generation{db: db, meta: meta})
	if old != nil {
		_ = old.db.Close()
	}
	s.log.Infow("store opened", "revision", meta.Revision, "schema", meta.SchemaVersion())
	return nil
}

// Opened reports whether a current generation is attached.
func (s *Store) Opened() bool { return s.gen.Load() != nil }

func (s *Store) current() (*generation, error) {
	g := s.gen.Load()
	if g == nil {
		return nil, errx.ErrStoreAbsent
	}
	return g, nil
}

// Metadata of the current generation.
func (s *Store) Metadata() (Metadata, error) {
	g, err := s.current()
	if err != nil {
		return Metadata{}, err
	}
	return g.meta, nil
}

func (s *Store) Close() {
	old := s.gen.Swap(nil)
	if old != nil {
		_ = old.db.Close()
	}
}

// OpenFile opens a store file. Read-only handles are used for query traffic,
// writable ones only for staging copies.
func OpenFile(path string, writable bool) (*sqlx.DB, error) {
	dsn := path
	if !writable {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping store")
	}
	return db, nil
}

// IntegrityCheck runs sqlite's structural check and fails unless it reports
// "ok".
func IntegrityCheck(db *sqlx.DB) error {
	var result string
	if err := db.Get(&result, `PRAGMA integrity_check(1)`); err != nil {
		return errors.Wrap(err, "integrity check")
	}
	if result != "ok" {
		return errors.Errorf("integrity check: %s", result)
	}
	return nil
}

// IsCorrupt reports whether err carries the storage engine's distinct
// "database is corrupt" condition.
func IsCorrupt(err error) bool {
	var se *sqlite3.Error
	if !stderrors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqliteCorrupt || code == sqliteNotADB
}

// CopyCurrentTo copies the current store file to path (diff staging).
func (s *Store) CopyCurrentTo(path string) error {
	src, err := os.Open(s.CurrentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return errx.ErrStoreAbsent
		}
		return errors.Wrap(err, "open current store")
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create staging file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return errors.Wrap(err, "copy store")
	}
	return errors.Wrap(dst.Close(), "flush staging file")
}

// RemoveCurrent deletes the current store outright. Used only when the
// storage engine reported corruption: the file is presumed unreadable and
// the next cycle must start from a clean full download.
func (s *Store) RemoveCurrent() error {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.Close()
	if err := os.Remove(s.CurrentPath()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove current store")
	}
	s.log.Warnw("current store removed", "path", s.CurrentPath())
	return nil
}

// Swap atomically publishes stagedPath as the new current store:
// current → previous, staged → current, best-effort delete previous. On
// failure it restores the previous file so a usable current store never
// disappears mid-swap.
func (s *Store) Swap(stagedPath string) error {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	// Closing the old handle fails any query still running against the old
	// generation; those failures propagate out of the query layer and
	// degrade to not-found at the facade, never to a half-assembled row.
	s.Close()

	hadCurrent := true
	if _, err := os.Stat(s.CurrentPath()); os.IsNotExist(err) {
		hadCurrent = false
	}

	if hadCurrent {
		if err := os.Rename(s.CurrentPath(), s.PreviousPath()); err != nil {
			_ = s.Open()
			return errors.Wrap(errx.ErrStoreSwitch, err.Error())
		}
	}
	if err := os.Rename(stagedPath, s.CurrentPath()); err != nil {
		if hadCurrent {
			if rerr := os.Rename(s.PreviousPath(), s.CurrentPath()); rerr != nil {
				s.log.Errorw("restore of previous store failed", "err", rerr)
			}
		}
		_ = s.Open()
		return errors.Wrap(errx.ErrStoreSwitch, err.Error())
	}
	if err := os.Remove(s.PreviousPath()); err != nil && !os.IsNotExist(err) {
		s.log.Warnw("could not delete previous store", "err", err)
	}

	if err := s.Open(); err != nil {
		return errors.Wrap(err, "reopen after swap")
	}
	return nil
}

// SearchIndexPresent reports whether the current store carries the full-text
// table.
func (s *Store) SearchIndexPresent() bool {
	g, err := s.current()
	if err != nil {
		return false
	}
	return SearchIndexPresent(g.db)
}
