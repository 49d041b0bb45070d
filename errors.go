package catalog

import "github.com/retailkit/catalog/pkg/errx"

// Re-exported error taxonomy; match with errors.Is.
var (
	ErrProductNotFound   = errx.ErrProductNotFound
	ErrNetwork           = errx.ErrNetwork
	ErrServer            = errx.ErrServer
	ErrStoreAbsent       = errx.ErrStoreAbsent
	ErrStoreCorrupt      = errx.ErrStoreCorrupt
	ErrSchemaUnsupported = errx.ErrSchemaUnsupported
	ErrUpdateInProgress  = errx.ErrUpdateInProgress
	ErrStoreSwitch       = errx.ErrStoreSwitch
	ErrNoResumableState  = errx.ErrNoResumableState
)
