package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"

	"github.com/WCArena/pudscan/internal/analyzer"
	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/parser"
	"github.com/WCArena/pudscan/internal/storage/memory"
	"github.com/WCArena/pudscan/internal/testutil"
	"github.com/WCArena/pudscan/pkg/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingBackend struct{}

func (failingBackend) Init() error                         { return nil }
func (failingBackend) Close() error                        { return nil }
func (failingBackend) SaveScan(*core.ScanRecord) error     { return errors.New("disk full") }
func (failingBackend) SaveRejection(*core.Rejection) error { return errors.New("disk full") }

func testConfig() config.ScanConfig {
	return config.ScanConfig{Workers: 2, MaxFileSize: 1 << 20, CacheSize: 8}
}

func newTestScanner(t *testing.T, cfg config.ScanConfig) (*Scanner, *memory.Backend, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	store := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	s, err := New(Dependencies{
		Storage: store,
		Meter:   mp.Meter("test"),
		Config:  cfg,
	})
	require.NoError(t, err)
	return s, store, reader
}

// counterValues sums a counter's data points keyed by one attribute.
func counterValues(t *testing.T, reader *sdkmetric.ManualReader, name, attr string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(attr))
				out[v.Emit()] += dp.Value
			}
		}
	}
	return out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestAccept_ValidMap(t *testing.T) {
	s, store, reader := newTestScanner(t, testConfig())
	data := testutil.SimpleMap("Garden of War")

	res := s.Accept(context.Background(), data, "garden.pud")
	require.NoError(t, res.Err)
	require.True(t, res.Accepted())
	assert.Nil(t, res.Rejection)

	rec := res.Record
	assert.NotEmpty(t, rec.ScanID)
	assert.Equal(t, "garden.pud", rec.FileName)
	assert.Len(t, rec.FileHash, 64)
	assert.Equal(t, int64(len(data)), rec.FileSize)
	assert.False(t, rec.Cached)
	assert.Equal(t, "Garden of War", rec.Document.Name)

	doc, err := parser.NewParser(nil).Parse(data, "garden.pud")
	require.NoError(t, err)
	if diff := cmp.Diff(analyzer.Analyze(&doc), rec.Analysis); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, store.Scans(), 1)
	assert.Equal(t, rec.ScanID, store.Scans()[0].ScanID)
	assert.Equal(t, map[string]int64{"forest": 1}, counterValues(t, reader, "pudscan.maps.scanned", "tileset"))
}

func TestAccept_Rejected(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind string
	}{
		{"not a pud", []byte("definitely not a map file"), "invalid_signature"},
		{"no tiles", testutil.NewPUD().Dim(32, 32).Bytes(), "missing_required_chunk"},
		{"short tiles", testutil.NewPUD().Dim(32, 32).Tiles(make([]uint16, 10)).Bytes(), "corrupt_tile_data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store, reader := newTestScanner(t, testConfig())

			res := s.Accept(context.Background(), tt.data, "bad.pud")
			assert.NoError(t, res.Err)
			assert.False(t, res.Accepted())
			require.NotNil(t, res.Rejection)
			assert.Equal(t, tt.kind, res.Rejection.Kind)
			assert.NotEmpty(t, res.Rejection.Message)
			assert.NotEmpty(t, res.Rejection.FileHash)

			require.Len(t, store.Rejections(), 1)
			assert.Equal(t, map[string]int64{tt.kind: 1}, counterValues(t, reader, "pudscan.maps.rejected", "kind"))
		})
	}
}

func TestAccept_CacheHit(t *testing.T) {
	s, store, _ := newTestScanner(t, testConfig())
	data := testutil.SimpleMap("Twice")

	first := s.Accept(context.Background(), data, "a.pud")
	second := s.Accept(context.Background(), data, "b.pud")
	require.True(t, first.Accepted())
	require.True(t, second.Accepted())

	assert.False(t, first.Record.Cached)
	assert.True(t, second.Record.Cached)
	assert.NotEqual(t, first.Record.ScanID, second.Record.ScanID)
	assert.Equal(t, first.Record.FileHash, second.Record.FileHash)
	assert.Equal(t, "b.pud", second.Record.FileName)
	assert.Equal(t, first.Record.Analysis, second.Record.Analysis)

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Scanned)
	assert.Equal(t, uint64(1), stats.CacheHits)
	assert.Equal(t, uint64(1), stats.CacheMisses)
	assert.Equal(t, 1, stats.CacheEntries)
	assert.Len(t, store.Scans(), 2)
}

func TestAccept_CacheHitRenamesFromFilename(t *testing.T) {
	s, _, _ := newTestScanner(t, testConfig())
	data := testutil.NewPUD().Dim(4, 4).Fill(4, 4, 0).Bytes()

	first := s.Accept(context.Background(), data, "maps/Crossroads.pud")
	second := s.Accept(context.Background(), data, "Islands.pud")
	third := s.Accept(context.Background(), data, "")
	require.True(t, first.Accepted())
	require.True(t, second.Accepted())
	require.True(t, third.Accepted())

	assert.False(t, first.Record.Cached)
	assert.True(t, second.Record.Cached)
	assert.Equal(t, "Crossroads", first.Record.Document.Name)
	assert.Equal(t, "Islands", second.Record.Document.Name)
	assert.Equal(t, core.NameFromFilename, second.Record.Document.NameSource)
	assert.Equal(t, "Unknown Map", third.Record.Document.Name)
	assert.Equal(t, core.NameDefault, third.Record.Document.NameSource)
}

func TestAccept_CacheHitKeepsContentName(t *testing.T) {
	s, _, _ := newTestScanner(t, testConfig())
	data := testutil.NewPUD().Name("Garden of War").Dim(4, 4).Fill(4, 4, 0).Bytes()

	s.Accept(context.Background(), data, "a.pud")
	second := s.Accept(context.Background(), data, "b.pud")
	require.True(t, second.Accepted())
	assert.True(t, second.Record.Cached)
	assert.Equal(t, "Garden of War", second.Record.Document.Name)
}

func TestAccept_CacheHitRecordsAreIndependent(t *testing.T) {
	s, _, _ := newTestScanner(t, testConfig())
	data := testutil.NewPUD().
		Dim(8, 8).
		Fill(8, 8, 0).
		Units(testutil.Goldmine(3, 4, 26), testutil.HumanStart(1, 1, 0)).
		Bytes()

	first := s.Accept(context.Background(), data, "a.pud")
	require.True(t, first.Accepted())
	require.NotEmpty(t, first.Record.Analysis.StrategyTags)
	require.NotEmpty(t, first.Record.Document.Goldmines)
	wantTags := slices.Clone(first.Record.Analysis.StrategyTags)

	first.Record.Analysis.StrategyTags[0] = "tampered"
	first.Record.Analysis.TerrainDistribution[core.TerrainGrass] = -1
	first.Record.Document.Goldmines[0].GoldAmount = 1

	second := s.Accept(context.Background(), data, "a.pud")
	require.True(t, second.Accepted())
	assert.True(t, second.Record.Cached)
	assert.Equal(t, wantTags, second.Record.Analysis.StrategyTags)
	assert.Equal(t, 64, second.Record.Analysis.TerrainDistribution[core.TerrainGrass])
	assert.Equal(t, uint32(26*2500), second.Record.Document.Goldmines[0].GoldAmount)

	second.Record.Analysis.StrategyTags[0] = "tampered again"
	third := s.Accept(context.Background(), data, "a.pud")
	assert.Equal(t, wantTags, third.Record.Analysis.StrategyTags)
}

func TestAccept_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 16
	s, store, reader := newTestScanner(t, cfg)

	res := s.Accept(context.Background(), testutil.SimpleMap("Big"), "big.pud")
	assert.ErrorIs(t, res.Err, ErrFileTooLarge)
	require.NotNil(t, res.Rejection)
	assert.Equal(t, KindFileTooLarge, res.Rejection.Kind)
	assert.Empty(t, res.Rejection.FileHash)
	assert.Len(t, store.Rejections(), 1)
	assert.Equal(t, map[string]int64{KindFileTooLarge: 1}, counterValues(t, reader, "pudscan.maps.rejected", "kind"))
}

func TestAccept_StorageFailure(t *testing.T) {
	s, err := New(Dependencies{Storage: failingBackend{}, Config: testConfig()})
	require.NoError(t, err)

	res := s.Accept(context.Background(), testutil.SimpleMap("Lost"), "lost.pud")
	require.True(t, res.Accepted())
	assert.ErrorContains(t, res.Err, "failed to save scan")

	res = s.Accept(context.Background(), []byte("junk"), "junk.pud")
	require.NotNil(t, res.Rejection)
	assert.ErrorContains(t, res.Err, "failed to save rejection")
}

func TestAccept_CancelledContext(t *testing.T) {
	s, store, _ := newTestScanner(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Accept(ctx, testutil.SimpleMap("x"), "x.pud")
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Nil(t, res.Record)
	assert.Empty(t, store.Scans())
	assert.Equal(t, uint64(1), s.Stats().Failed)
}

func TestScanFile(t *testing.T) {
	s, _, _ := newTestScanner(t, testConfig())
	dir := t.TempDir()
	path := writeFile(t, dir, "Garden.PUD", testutil.SimpleMap(""))

	res := s.ScanFile(context.Background(), path)
	require.NoError(t, res.Err)
	require.True(t, res.Accepted())
	assert.Equal(t, path, res.Path)
	assert.Equal(t, "Garden.PUD", res.Record.FileName)
	// NAME chunk is empty, so the name falls back to the file name
	assert.Equal(t, "Garden", res.Record.Document.Name)
}

func TestScanFile_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 16
	s, _, _ := newTestScanner(t, cfg)
	dir := t.TempDir()

	res := s.ScanFile(context.Background(), filepath.Join(dir, "missing.pud"))
	assert.ErrorContains(t, res.Err, "failed to stat file")
	assert.Nil(t, res.Record)
	assert.Nil(t, res.Rejection)

	big := writeFile(t, dir, "big.pud", testutil.SimpleMap("Big"))
	res = s.ScanFile(context.Background(), big)
	assert.ErrorIs(t, res.Err, ErrFileTooLarge)
	require.NotNil(t, res.Rejection)
	assert.Equal(t, "big.pud", res.Rejection.FileName)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Rejected)
}

func TestScanPaths(t *testing.T) {
	s, store, _ := newTestScanner(t, testConfig())
	dir := t.TempDir()
	writeFile(t, dir, "b.pud", testutil.SimpleMap("Bravo"))
	writeFile(t, dir, "nested/c.PUD", testutil.SimpleMap("Charlie"))
	writeFile(t, dir, "nested/broken.pud", []byte("nope"))
	writeFile(t, dir, "readme.txt", []byte("ignored"))
	single := writeFile(t, t.TempDir(), "a.map", testutil.SimpleMap("Alpha"))

	results, err := s.ScanPaths(context.Background(), []string{dir, single, dir})
	require.NoError(t, err)
	require.Len(t, results, 4)

	var accepted, rejected []string
	for _, r := range results {
		require.NoError(t, r.Err)
		if r.Accepted() {
			accepted = append(accepted, r.Record.Document.Name)
		} else {
			rejected = append(rejected, filepath.Base(r.Path))
		}
	}
	assert.ElementsMatch(t, []string{"Alpha", "Bravo", "Charlie"}, accepted)
	assert.Equal(t, []string{"broken.pud"}, rejected)
	assert.Len(t, store.Scans(), 3)
	assert.Len(t, store.Rejections(), 1)

	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i-1].Path, results[i].Path)
	}
}

func TestScanPaths_MissingPath(t *testing.T) {
	s, _, _ := newTestScanner(t, testConfig())
	_, err := s.ScanPaths(context.Background(), []string{filepath.Join(t.TempDir(), "gone")})
	assert.ErrorContains(t, err, "failed to stat")
}

func TestScanPaths_Cancelled(t *testing.T) {
	s, store, _ := newTestScanner(t, testConfig())
	dir := t.TempDir()
	writeFile(t, dir, "a.pud", testutil.SimpleMap("A"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.ScanPaths(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Empty(t, store.Scans())
}

func TestIsMapFile(t *testing.T) {
	assert.True(t, IsMapFile("maps/garden.pud"))
	assert.True(t, IsMapFile("GARDEN.PUD"))
	assert.False(t, IsMapFile("garden.pud.tmp"))
	assert.False(t, IsMapFile("garden"))
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.deps.Config.Workers)
	assert.NotNil(t, s.deps.Parser)
	assert.NotNil(t, s.deps.Cache)
	assert.NotNil(t, s.deps.Logger)

	// nil storage only skips persistence
	res := s.Accept(context.Background(), testutil.SimpleMap("x"), "x.pud")
	assert.NoError(t, res.Err)
	assert.True(t, res.Accepted())
}
