package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/retailkit/catalog/model"
)

// Metadata is the sync cursor and version information of one store
// generation. It is read once when a store is opened and rewritten only as
// part of a successful update or seed install.
type Metadata struct {
	Revision            int64
	SchemaVersionMajor  int
	SchemaVersionMinor  int
	DefaultAvailability model.Availability
	LastUpdate          time.Time
}

// SchemaVersion renders "<major>.<minor>" for the update request.
func (m Metadata) SchemaVersion() string {
	return cast.ToString(m.SchemaVersionMajor) + "." + cast.ToString(m.SchemaVersionMinor)
}

// ReadMetadata loads and validates the metadata table. Revision and both
// schema version keys are required; defaultAvailability and app_lastUpdate
// are optional.
func ReadMetadata(db *sqlx.DB) (Metadata, error) {
	type kvRow struct {
		Key   string         `db:"key"`
		Value sql.NullString `db:"value"`
	}
	var rows []kvRow
	if err := db.Select(&rows, `SELECT key, value FROM metadata`); err != nil {
		return Metadata{}, errors.Wrap(err, "read metadata table")
	}
	kv := make(map[string]string, len(rows))
	for _, r := range rows {
		kv[r.Key] = r.Value.String
	}

	var m Metadata
	var err error

	rev, ok := kv[MetaRevision]
	if !ok {
		return Metadata{}, errors.New("metadata: revision missing")
	}
	if m.Revision, err = cast.ToInt64E(rev); err != nil {
		return Metadata{}, errors.Wrap(err, "metadata: revision")
	}

	major, ok := kv[MetaSchemaVersionMajor]
	if !ok {
		return Metadata{}, errors.New("metadata: schemaVersionMajor missing")
	}
	if m.SchemaVersionMajor, err = cast.ToIntE(major); err != nil {
		return Metadata{}, errors.Wrap(err, "metadata: schemaVersionMajor")
	}

	minor, ok := kv[MetaSchemaVersionMinor]
	if !ok {
		return Metadata{}, errors.New("metadata: schemaVersionMinor missing")
	}
	if m.SchemaVersionMinor, err = cast.ToIntE(minor); err != nil {
		return Metadata{}, errors.Wrap(err, "metadata: schemaVersionMinor")
	}

	if v, ok := kv[MetaDefaultAvailability]; ok && v != "" {
		av, err := cast.ToIntE(v)
		if err != nil {
			return Metadata{}, errors.Wrap(err, "metadata: defaultAvailability")
		}
		m.DefaultAvailability = model.Availability(av)
	} else {
		m.DefaultAvailability = model.InStock
	}

	if v, ok := kv[MetaLastUpdate]; ok && v != "" {
		if m.LastUpdate, err = time.Parse(time.RFC3339, v); err != nil {
			// A malformed timestamp only makes the store look stale.
			m.LastUpdate = time.Time{}
		}
	}

	return m, nil
}

// WriteLastUpdate stamps the local update time on a writable (staged) store.
func WriteLastUpdate(db *sqlx.DB, ts time.Time) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO metadata(key, value) VALUES(?, ?)`,
		MetaLastUpdate, ts.UTC().Format(time.RFC3339),
	)
	return errors.Wrap(err, "write last update")
}
