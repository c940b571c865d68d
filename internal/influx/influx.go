package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/pkg/core"
)

// Measurement names written by the manager.
const (
	MeasurementScan      = "map_scan"
	MeasurementRejection = "map_rejection"
)

// retentionSeconds is the retention of a bucket created on first connect.
const retentionSeconds = 60 * 60 * 24 * 365

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes. When the server cannot be
// reached, points go to a gzip line-protocol backup file instead.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
	errDone    chan struct{}
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Err(err).Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.BackupPath == "" {
		return errors.New("influx unreachable and no backup path set")
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// createWriter creates the write API and drains its error channel.
func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	m.errDone = make(chan struct{})

	errorsCh := m.Writer.Errors()
	go func() {
		defer close(m.errDone)
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.Writer != nil {
		m.Writer.Flush()
		m.Writer = nil
	}
	if m.Client != nil {
		m.Client.Close()
		m.Client = nil
	}
	if m.errDone != nil {
		<-m.errDone
		m.errDone = nil
	}
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	m.IsValid = false
	return errors.Join(errs...)
}

// ScanPoint builds the point recorded for an accepted map.
func ScanPoint(r *core.ScanRecord) *influxdb2_write.Point {
	a := &r.Analysis
	return influxdb2_write.NewPoint(
		MeasurementScan,
		map[string]string{
			"tileset":   r.Document.Tileset.String(),
			"map_type":  string(a.MapType),
			"balance":   string(a.Balance),
			"rush":      string(a.RushDistance),
			"expansion": string(a.ExpansionDifficulty),
		},
		map[string]interface{}{
			"file_hash":     r.FileHash,
			"file_size":     r.FileSize,
			"width":         int64(r.Document.Width),
			"height":        int64(r.Document.Height),
			"players":       int64(r.Document.PlayerSlotCount),
			"goldmines":     int64(a.Goldmines.Count),
			"total_gold":    int64(a.Goldmines.TotalGold),
			"water_pct":     a.WaterPercentage,
			"trees_pct":     a.TreesPercentage,
			"naval_score":   a.NavalScore,
			"balance_score": a.BalanceScore,
			"rush_ratio":    a.RushRatio,
			"cached":        r.Cached,
		},
		r.ScannedAt,
	)
}

// RejectionPoint builds the point recorded for a rejected file.
func RejectionPoint(r *core.Rejection) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementRejection,
		map[string]string{"kind": r.Kind},
		map[string]interface{}{
			"file_hash": r.FileHash,
			"file_size": r.FileSize,
		},
		r.ScannedAt,
	)
}

// Init connects with a background context so the manager can be used as a
// storage sink.
func (m *Manager) Init() error {
	return m.Connect(context.Background())
}

// SaveScan records an accepted map.
func (m *Manager) SaveScan(r *core.ScanRecord) error {
	return m.WritePoint(ScanPoint(r))
}

// SaveRejection records a rejected file.
func (m *Manager) SaveRejection(r *core.Rejection) error {
	return m.WritePoint(RejectionPoint(r))
}
