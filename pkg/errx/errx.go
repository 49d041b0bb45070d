// Package errx defines the error taxonomy shared by the catalog store, the
// sync engine and the remote lookup client. Callers are expected to match
// with errors.Is against the sentinels below.
package errx

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound covers both "no matching row" and "row exists but
	// is not available"; the two are indistinguishable to callers.
	ErrProductNotFound = errors.New("product not found")

	// ErrNetwork is a transport-level failure talking to the backend.
	ErrNetwork = errors.New("network error")

	// ErrServer is a non-2xx response, an unexpected content type or an
	// unparsable payload.
	ErrServer = errors.New("server error")

	// ErrStoreAbsent means no catalog database exists on disk yet.
	ErrStoreAbsent = errors.New("catalog store absent")

	// ErrStoreCorrupt is raised when the storage engine reports structural
	// corruption (SQLITE_CORRUPT / SQLITE_NOTADB).
	ErrStoreCorrupt = errors.New("catalog store corrupt")

	// ErrSchemaUnsupported means the store's major schema version does not
	// match the version this library supports.
	ErrSchemaUnsupported = errors.New("unsupported schema version")

	// ErrUpdateInProgress is returned when an update is triggered while
	// another cycle is already running.
	ErrUpdateInProgress = errors.New("update already in progress")

	// ErrStoreSwitch means the atomic store swap could not complete.
	ErrStoreSwitch = errors.New("store switch failed")

	// ErrNoResumableState is returned by Resume when there is no partial
	// download to pick up.
	ErrNoResumableState = errors.New("no resumable download state")
)

// LookupError annotates one of the sentinel kinds with the lookup input that
// produced it.
type LookupError struct {
	Kind  error
	Input string
	Err   error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Input)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Input, e.Err)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *LookupError) Unwrap() error { return e.Err }

// Is matches the sentinel kind as well as the wrapped cause.
func (e *LookupError) Is(target error) bool {
	return errors.Is(e.Kind, target) || errors.Is(e.Err, target)
}

// Lookup wraps err under the given sentinel kind.
func Lookup(kind error, input string, err error) *LookupError {
	return &LookupError{Kind: kind, Input: input, Err: err}
}
