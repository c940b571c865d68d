// internal/storage/storage.go
package storage

import "github.com/WCArena/pudscan/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveScan persists an accepted map. Implementations must not retain r.
	SaveScan(r *core.ScanRecord) error
	// SaveRejection persists a file that failed to decode.
	SaveRejection(r *core.Rejection) error
}

// Finder is an optional interface for backends that can look a scan up by
// file hash. The second return is false when no scan matches.
type Finder interface {
	FindScan(hash string) (*core.ScanRecord, bool, error)
}

// Exportable is an optional interface for backends that write a catalog
// file when closed.
type Exportable interface {
	GetExportedFilePath() string
}
