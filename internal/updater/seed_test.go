package updater

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeedArchive(t *testing.T, db []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("seed/catalog.sqlite3")
	require.NoError(t, err)
	_, err = w.Write(db)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestInstallSeedOnEmptyStore(t *testing.T) {
	seed := writeSeedArchive(t, buildStoreBytes(t, 7, func(db *sqlx.DB) {
		insertProduct(t, db, "seed-1", "Seeded Product")
	}))

	eng, st := newEngine(t, t.TempDir(), "http://127.0.0.1:0", false)
	require.NoError(t, eng.InstallSeed(seed, 7))

	meta, err := st.Metadata()
	require.NoError(t, err)
	assert.Equal(t, int64(7), meta.Revision)

	p, err := st.ProductBySKU("seed-1", "")
	require.NoError(t, err)
	assert.Equal(t, "Seeded Product", p.Name)
}

func TestInstallSeedSkippedWhenCurrentIsNewer(t *testing.T) {
	seed := writeSeedArchive(t, buildStoreBytes(t, 3, nil))

	dir := t.TempDir()
	buildStoreFile(t, filepath.Join(dir, "catalog.sqlite3"), 8, func(db *sqlx.DB) {
		insertProduct(t, db, "newer-1", "Synced Product")
	})
	eng, st := newEngine(t, dir, "http://127.0.0.1:0", false)

	require.NoError(t, eng.InstallSeed(seed, 3))

	meta, err := st.Metadata()
	require.NoError(t, err)
	assert.Equal(t, int64(8), meta.Revision, "old seed must not downgrade a synced catalog")
	_, err = st.ProductBySKU("newer-1", "")
	assert.NoError(t, err)
}

func TestInstallSeedWithoutDatabaseEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("no database here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	eng, _ := newEngine(t, t.TempDir(), "http://127.0.0.1:0", false)
	assert.Error(t, eng.InstallSeed(path, 1))
}
