package store

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const searchTableName = "searchByName"

// SearchIndexPresent reports whether the full-text table exists in db.
func SearchIndexPresent(db *sqlx.DB) bool {
	var name string
	err := db.Get(&name, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, searchTableName)
	return err == nil
}

// RebuildSearchIndex drops and recreates the full-text table over
// (sku, name). Requires a writable handle.
func RebuildSearchIndex(db *sqlx.DB) error {
	stmts := []string{
		`DROP TABLE IF EXISTS ` + searchTableName,
		`CREATE VIRTUAL TABLE ` + searchTableName + ` USING fts5(sku UNINDEXED, name)`,
		`INSERT INTO ` + searchTableName + `(sku, name) SELECT sku, name FROM products`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "rebuild search index")
		}
	}
	return nil
}

// ftsPrefixQuery turns free text into a quoted FTS5 prefix phrase, so user
// input cannot inject query syntax.
func ftsPrefixQuery(q string) string {
	escaped := strings.ReplaceAll(q, `"`, `""`)
	return `"` + escaped + `"*`
}
