package storage

import (
	"errors"

	"github.com/WCArena/pudscan/pkg/core"
)

// Multi fans every call out to a primary backend and any number of sinks.
// Lookups and exports go to the primary only.
type Multi struct {
	primary Backend
	sinks   []Backend
}

// NewMulti combines primary with sinks.
func NewMulti(primary Backend, sinks ...Backend) *Multi {
	return &Multi{primary: primary, sinks: sinks}
}

func (m *Multi) all() []Backend {
	return append([]Backend{m.primary}, m.sinks...)
}

// Init initializes every backend, closing the ones already started when
// one fails.
func (m *Multi) Init() error {
	started := make([]Backend, 0, len(m.sinks)+1)
	for _, b := range m.all() {
		if err := b.Init(); err != nil {
			for _, s := range started {
				_ = s.Close()
			}
			return err
		}
		started = append(started, b)
	}
	return nil
}

// Close closes every backend and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, b := range m.all() {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}

// SaveScan saves to every backend and joins their errors.
func (m *Multi) SaveScan(r *core.ScanRecord) error {
	var errs []error
	for _, b := range m.all() {
		errs = append(errs, b.SaveScan(r))
	}
	return errors.Join(errs...)
}

// SaveRejection saves to every backend and joins their errors.
func (m *Multi) SaveRejection(r *core.Rejection) error {
	var errs []error
	for _, b := range m.all() {
		errs = append(errs, b.SaveRejection(r))
	}
	return errors.Join(errs...)
}

// FindScan delegates to the primary when it implements Finder.
func (m *Multi) FindScan(hash string) (*core.ScanRecord, bool, error) {
	if f, ok := m.primary.(Finder); ok {
		return f.FindScan(hash)
	}
	return nil, false, nil
}

// GetExportedFilePath delegates to the primary when it implements Exportable.
func (m *Multi) GetExportedFilePath() string {
	if e, ok := m.primary.(Exportable); ok {
		return e.GetExportedFilePath()
	}
	return ""
}
