// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/pkg/core"
)

// Backend keeps scans in memory and exports them as a JSON catalog on Close.
type Backend struct {
	cfg config.MemoryConfig
	now func() time.Time

	scans      []core.ScanRecord
	byHash     map[string]int // index into scans of the latest scan per hash
	rejections []core.Rejection

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		now:    time.Now,
		byHash: make(map[string]int),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the catalog. Nothing is written when no file was seen.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.scans) == 0 && len(b.rejections) == 0 {
		return nil
	}
	return b.exportJSON()
}

// SaveScan stores a copy of r. The tile grid is dropped.
func (b *Backend) SaveScan(r *core.ScanRecord) error {
	rec := *r
	rec.Document.Tiles = nil

	b.mu.Lock()
	defer b.mu.Unlock()

	b.scans = append(b.scans, rec)
	if rec.FileHash != "" {
		b.byHash[rec.FileHash] = len(b.scans) - 1
	}
	return nil
}

// SaveRejection stores a copy of r.
func (b *Backend) SaveRejection(r *core.Rejection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejections = append(b.rejections, *r)
	return nil
}

// FindScan returns the latest scan with the given file hash.
func (b *Backend) FindScan(hash string) (*core.ScanRecord, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i, ok := b.byHash[hash]
	if !ok {
		return nil, false, nil
	}
	rec := b.scans[i]
	return &rec, true, nil
}

// Scans returns a copy of every stored scan in arrival order.
func (b *Backend) Scans() []core.ScanRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.ScanRecord, len(b.scans))
	copy(out, b.scans)
	return out
}

// Rejections returns a copy of every stored rejection in arrival order.
func (b *Backend) Rejections() []core.Rejection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Rejection, len(b.rejections))
	copy(out, b.rejections)
	return out
}

// GetExportedFilePath returns the path of the last catalog written by Close.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
