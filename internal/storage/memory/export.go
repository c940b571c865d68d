package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	v1 "github.com/WCArena/pudscan/internal/storage/memory/export/v1"
)

// exportJSON writes the catalog to OutputDir. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	generated := b.now()
	catalog := v1.Build(&v1.CatalogData{
		GeneratedAt: generated,
		Scans:       b.scans,
		Rejections:  b.rejections,
	})

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, exportName(generated.UTC().Format("20060102_150405"), b.cfg.CompressOutput))
	if err := writeCatalog(path, catalog, b.cfg.CompressOutput); err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

func exportName(stamp string, gz bool) string {
	name := "pudscan_" + stamp + ".json"
	if gz {
		name += ".gz"
	}
	return name
}

func writeCatalog(path string, catalog v1.Catalog, gz bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	var zw *gzip.Writer
	if gz {
		zw = gzip.NewWriter(f)
		w = zw
	}
	if err := json.NewEncoder(w).Encode(catalog); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}
