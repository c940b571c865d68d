// Package scanner runs uploaded map files through decode, analysis and
// persistence.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/WCArena/pudscan/internal/analyzer"
	"github.com/WCArena/pudscan/internal/cache"
	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/logging"
	"github.com/WCArena/pudscan/internal/parser"
	"github.com/WCArena/pudscan/internal/storage"
	"github.com/WCArena/pudscan/pkg/core"
)

const instrumentationName = "github.com/WCArena/pudscan/internal/scanner"

// Extension is the file extension picked up from directories.
const Extension = ".pud"

// KindFileTooLarge is the rejection kind for files over scan.maxFileSize.
const KindFileTooLarge = "file_too_large"

// ErrFileTooLarge is wrapped into Result.Err when a file exceeds the limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Result is the outcome of scanning one file. Exactly one of Record and
// Rejection is set unless Err reports that the file could not be read.
// A persistence failure sets Err alongside Record or Rejection.
type Result struct {
	Path      string
	Record    *core.ScanRecord
	Rejection *core.Rejection
	Err       error
}

// Accepted reports whether the file decoded.
func (r Result) Accepted() bool {
	return r.Record != nil
}

// Stats are running totals since the scanner was created.
type Stats struct {
	Scanned      uint64 `json:"scanned"`
	Rejected     uint64 `json:"rejected"`
	Failed       uint64 `json:"failed"`
	CacheHits    uint64 `json:"cacheHits"`
	CacheMisses  uint64 `json:"cacheMisses"`
	CacheEntries int    `json:"cacheEntries"`
}

// Dependencies holds the collaborators of a Scanner. Parser, Cache and Logger
// get defaults when nil, Meter falls back to the global OTel meter, and a nil
// Storage skips persistence.
type Dependencies struct {
	Parser  *parser.Parser
	Cache   *cache.AnalysisCache
	Storage storage.Backend
	Meter   metric.Meter
	Logger  *slog.Logger
	Config  config.ScanConfig
}

// Scanner is safe for concurrent use.
type Scanner struct {
	deps Dependencies

	scannedCounter  metric.Int64Counter
	rejectedCounter metric.Int64Counter

	scanned  atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64

	now   func() time.Time
	newID func() string
}

// New creates a Scanner.
func New(deps Dependencies) (*Scanner, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger, parser.WithDebug(deps.Config.DebugTrace))
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewAnalysisCache(deps.Config.CacheSize)
	}
	if deps.Meter == nil {
		deps.Meter = otel.Meter(instrumentationName)
	}
	if deps.Config.Workers < 1 {
		deps.Config.Workers = 1
	}

	s := &Scanner{
		deps:  deps,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}

	var err error
	s.scannedCounter, err = deps.Meter.Int64Counter(
		"pudscan.maps.scanned",
		metric.WithDescription("Maps decoded and analyzed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scanned counter: %w", err)
	}

	s.rejectedCounter, err = deps.Meter.Int64Counter(
		"pudscan.maps.rejected",
		metric.WithDescription("Files rejected by the decoder or the size gate"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	return s, nil
}

// Accept runs one in-memory file through the pipeline. filename is used as
// the map name fallback and in stored records.
func (s *Scanner) Accept(ctx context.Context, data []byte, filename string) Result {
	res := Result{Path: filename}
	if err := ctx.Err(); err != nil {
		res.Err = err
		s.failed.Add(1)
		return res
	}

	size := int64(len(data))
	if limit := s.deps.Config.MaxFileSize; limit > 0 && size > limit {
		return s.tooLarge(ctx, filename, filename, size, limit)
	}

	hash := cache.Key(data)
	ctx = logging.WithAttrs(ctx, slog.String("file", filename), slog.String("hash", hash))
	logger := s.deps.Logger

	entry, cached := s.deps.Cache.Get(hash)
	if !cached {
		doc, err := s.deps.Parser.Parse(data, filename)
		if err != nil {
			kind := parser.ErrorKind(err)
			logger.InfoContext(ctx, "Map rejected", "kind", kind, "error", err)
			res.Rejection = s.reject(filename, hash, size, kind, err.Error())
			s.persistRejection(ctx, &res)
			return res
		}
		entry = cache.Entry{Document: doc, Analysis: analyzer.Analyze(&doc)}
		s.deps.Cache.Add(hash, entry)
	} else if !entry.Document.NameSource.FromContent() {
		// The cached name came from whichever upload parsed first.
		entry.Document.Name, entry.Document.NameSource = parser.FallbackName(filename)
	}

	res.Record = &core.ScanRecord{
		ScanID:    s.newID(),
		FileName:  filename,
		FileHash:  hash,
		FileSize:  size,
		ScannedAt: s.now(),
		Cached:    cached,
		Document:  entry.Document,
		Analysis:  entry.Analysis,
	}
	s.scanned.Add(1)
	s.scannedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tileset", entry.Document.Tileset.String()),
		attribute.String("map_type", string(entry.Analysis.MapType)),
		attribute.Bool("cached", cached),
	))
	logger.DebugContext(ctx, "Map scanned",
		"name", entry.Document.Name,
		"mapType", entry.Analysis.MapType,
		"balance", entry.Analysis.Balance,
		"cached", cached)

	if s.deps.Storage != nil {
		if err := s.deps.Storage.SaveScan(res.Record); err != nil {
			logger.ErrorContext(ctx, "Failed to save scan", "error", err)
			res.Err = fmt.Errorf("failed to save scan: %w", err)
		}
	}
	return res
}

func (s *Scanner) reject(filename, hash string, size int64, kind, msg string) *core.Rejection {
	s.rejected.Add(1)
	return &core.Rejection{
		ScanID:    s.newID(),
		FileName:  filename,
		FileHash:  hash,
		FileSize:  size,
		ScannedAt: s.now(),
		Kind:      kind,
		Message:   msg,
	}
}

func (s *Scanner) tooLarge(ctx context.Context, path, filename string, size, limit int64) Result {
	res := Result{Path: path}
	res.Rejection = s.reject(filename, "", size, KindFileTooLarge,
		fmt.Sprintf("file is %d bytes, limit is %d", size, limit))
	res.Err = fmt.Errorf("%w: %s", ErrFileTooLarge, path)
	s.persistRejection(ctx, &res)
	return res
}

func (s *Scanner) persistRejection(ctx context.Context, res *Result) {
	s.rejectedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", res.Rejection.Kind)))
	if s.deps.Storage == nil {
		return
	}
	if err := s.deps.Storage.SaveRejection(res.Rejection); err != nil {
		s.deps.Logger.ErrorContext(ctx, "Failed to save rejection", "file", res.Rejection.FileName, "error", err)
		res.Err = errors.Join(res.Err, fmt.Errorf("failed to save rejection: %w", err))
	}
}

// ScanFile reads and scans the file at path. Oversized files are rejected
// from their size without being read.
func (s *Scanner) ScanFile(ctx context.Context, path string) Result {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		s.failed.Add(1)
		return Result{Path: path, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	if limit := s.deps.Config.MaxFileSize; limit > 0 && info.Size() > limit {
		return s.tooLarge(ctx, path, name, info.Size(), limit)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.failed.Add(1)
		return Result{Path: path, Err: fmt.Errorf("failed to read file: %w", err)}
	}

	res := s.Accept(ctx, data, name)
	res.Path = path
	return res
}

// ScanPaths scans files and the .pud files found under directories, running
// up to scan.workers files at a time. Results follow the sorted input order.
// Per-file problems are reported in each Result; the returned error is only
// set when a directory cannot be walked or ctx is cancelled.
func (s *Scanner) ScanPaths(ctx context.Context, paths []string) ([]Result, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.Config.Workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Path: f, Err: err}
				return err
			}
			results[i] = s.ScanFile(gctx, f)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	s.deps.Logger.Info("Scan finished",
		"files", len(files),
		"scanned", countAccepted(results),
		"workers", s.deps.Config.Workers)
	return results, nil
}

func countAccepted(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Accepted() {
			n++
		}
	}
	return n
}

// ExpandPaths replaces directories with the .pud files below them and
// returns the sorted, de-duplicated file list. Plain files are kept whatever
// their extension.
func ExpandPaths(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsMapFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// IsMapFile reports whether path has the .pud extension, ignoring case.
func IsMapFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}

// Stats returns running totals.
func (s *Scanner) Stats() Stats {
	hits, misses := s.deps.Cache.Stats()
	return Stats{
		Scanned:      s.scanned.Load(),
		Rejected:     s.rejected.Load(),
		Failed:       s.failed.Load(),
		CacheHits:    hits,
		CacheMisses:  misses,
		CacheEntries: s.deps.Cache.Len(),
	}
}
