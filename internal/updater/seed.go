package updater

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// InstallSeed unpacks a bundled snapshot archive into the store directory.
// It is a no-op when the current store's revision is already at or beyond
// the seed's declared revision, so shipping an old seed with the app never
// downgrades a synced catalog.
func (e *Engine) InstallSeed(zipPath string, seedRevision int64) error {
	if meta, err := e.store.Metadata(); err == nil && meta.Revision >= seedRevision {
		e.log.Debugw("seed skipped", "current", meta.Revision, "seed", seedRevision)
		return nil
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.finish()

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrap(err, "open seed archive")
	}
	defer r.Close()

	var dbEntry *zip.File
	for _, f := range r.File {
		if strings.HasSuffix(path.Base(f.Name), ".sqlite3") {
			dbEntry = f
			break
		}
	}
	if dbEntry == nil {
		return errors.New("seed archive contains no database file")
	}

	staged := e.store.StagingPath()
	if err := extractTo(dbEntry, staged); err != nil {
		return err
	}

	e.setState(StateValidating)
	if err := e.validate(staged, true); err != nil {
		_ = os.Remove(staged)
		return errors.Wrap(err, "seed validation")
	}

	e.setState(StateSwapPending)
	if err := e.store.Swap(staged); err != nil {
		_ = os.Remove(staged)
		return err
	}

	meta, err := e.store.Metadata()
	if err != nil {
		return err
	}
	e.log.Infow("seed installed", "revision", meta.Revision)
	return nil
}

func extractTo(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return errors.Wrap(err, "open seed entry")
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "create seed target")
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return errors.Wrap(err, "unpack seed")
	}
	return errors.Wrap(out.Close(), "flush seed target")
}
