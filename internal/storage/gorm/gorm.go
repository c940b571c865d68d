// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WCArena/pudscan/internal/database"
	"github.com/WCArena/pudscan/internal/model"
	"github.com/WCArena/pudscan/internal/model/convert"
	"github.com/WCArena/pudscan/internal/queue"
	"github.com/WCArena/pudscan/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// writeBatchSize bounds the rows inserted per transaction.
const writeBatchSize = 500

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB *gorm.DB
	// Open is called by Init when DB is nil.
	Open          func() (*gorm.DB, error)
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Scans      *queue.Batch[model.MapScan]
	Rejections *queue.Batch[model.Rejection]
}

func newQueues() *queues {
	return &queues{
		Scans:      queue.NewBatch[model.MapScan](writeBatchSize),
		Rejections: queue.NewBatch[model.Rejection](writeBatchSize),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	stopChan chan struct{}
	done     chan struct{}
	writeMu  sync.Mutex
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the connection in use, nil before Init.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init opens the connection if needed, migrates the schema and starts the
// DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		if b.deps.Open == nil {
			return errors.New("no database connection configured")
		}
		db, err := b.deps.Open()
		if err != nil {
			return err
		}
		b.deps.DB = db
	}

	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Dialector.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return b.Flush()
}

// SaveScan converts and queues an accepted map.
func (b *Backend) SaveScan(r *core.ScanRecord) error {
	row, err := convert.CoreToMapScan(*r)
	if err != nil {
		return err
	}
	b.queues.Scans.Push(row)
	return nil
}

// SaveRejection converts and queues a rejected file.
func (b *Backend) SaveRejection(r *core.Rejection) error {
	b.queues.Rejections.Push(convert.CoreToRejection(*r))
	return nil
}

// Flush writes every queued row now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.queues.Scans, "map scans", b.deps.Logger),
		writeQueue(b.deps.DB, b.queues.Rejections, "rejections", b.deps.Logger),
	)
}

// FindScan flushes pending rows and returns the latest scan with the given
// file hash.
func (b *Backend) FindScan(hash string) (*core.ScanRecord, bool, error) {
	if b.deps.DB == nil {
		return nil, false, errors.New("backend not initialized")
	}
	if err := b.Flush(); err != nil {
		return nil, false, err
	}

	var row model.MapScan
	err := b.deps.DB.
		Preload("Goldmines").
		Preload("StartLocations").
		Where("file_hash = ?", hash).
		Order("id desc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query map scan: %w", err)
	}

	rec, err := convert.MapScanToCore(row)
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB writer flush failed", "error", err)
			}
		}
	}
}

// writeQueue writes queued rows one batch per transaction until the queue
// is empty. A failed batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Batch[T], name string, log *slog.Logger) error {
	written := 0
	for batch := q.Take(); batch != nil; batch = q.Take() {
		tx := db.Begin()
		if err := tx.Create(&batch).Error; err != nil {
			log.Error("Error creating rows", "table", name, "count", len(batch), "error", err)
			tx.Rollback()
			q.Requeue(batch)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			q.Requeue(batch)
			return fmt.Errorf("failed to commit %s: %w", name, err)
		}
		written += len(batch)
	}

	if written > 0 {
		log.Debug("Wrote rows", "table", name, "count", written)
	}
	return nil
}
