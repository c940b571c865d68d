package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/WCArena/pudscan/internal/scanner"
)

// StatusFileName is written into Dependencies.StatusDir.
const StatusFileName = "status.json"

// StatsSource is the part of scanner.Scanner the monitor reads.
type StatsSource interface {
	Stats() scanner.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Scanner   StatsSource
	Logger    *slog.Logger
	StatusDir string
	Interval  time.Duration
}

// Status is a point-in-time view of the running service.
type Status struct {
	Time     time.Time     `json:"time"`
	Started  time.Time     `json:"started"`
	Uptime   string        `json:"uptime"`
	Scanner  scanner.Stats `json:"scanner"`
	HitRatio float64       `json:"cacheHitRatio"`
	Summary  string        `json:"summary"`
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	started time.Time

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status
func (s *Service) GetStatus() Status {
	now := time.Now()
	stats := s.deps.Scanner.Stats()

	var ratio float64
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		ratio = float64(stats.CacheHits) / float64(lookups)
	}

	return Status{
		Time:     now,
		Started:  s.started,
		Uptime:   now.Sub(s.started).Round(time.Second).String(),
		Scanner:  stats,
		HitRatio: ratio,
		Summary: fmt.Sprintf("%s maps scanned, %s rejected, started %s",
			humanize.Comma(int64(stats.Scanned)),
			humanize.Comma(int64(stats.Rejected)),
			humanize.Time(s.started)),
	}
}

// StatusPath returns the status file location, or "" when disabled.
func (s *Service) StatusPath() string {
	if s.deps.StatusDir == "" {
		return ""
	}
	return filepath.Join(s.deps.StatusDir, StatusFileName)
}

// WriteStatus writes the current status to the status file.
func (s *Service) WriteStatus() error {
	path := s.StatusPath()
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := os.MkdirAll(s.deps.StatusDir, 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	// rename so readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.StatusPath())

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				st := s.GetStatus()
				logger.Debug("Status", "scanned", st.Scanner.Scanned, "rejected", st.Scanner.Rejected, "cacheHitRatio", st.HitRatio)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the final status write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	close(stop)
	<-done
}
