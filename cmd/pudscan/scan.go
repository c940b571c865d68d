package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/scanner"
	"github.com/WCArena/pudscan/internal/storage"
)

var (
	scanFormat string
	scanStore  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <file|dir>...",
	Short: "Decode and analyze map files",
	Long: `Scan decodes every .pud file named on the command line or found under the
given directories and prints one report per file. Rejected files are part of
the report; the command fails only when a file could not be read or saved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", formatText, "Output format (text, json, yaml)")
	scanCmd.Flags().BoolVar(&scanStore, "store", false, "Persist results to the configured storage backend")
}

func runScan(cmd *cobra.Command, args []string) error {
	switch scanFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", scanFormat)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	scanCfg, err := config.GetScanConfig()
	if err != nil {
		return err
	}

	var backend storage.Backend
	if scanStore {
		multi, err := initStorage()
		if err != nil {
			return err
		}
		defer closeStorage(multi)
		backend = multi
	}

	s, err := scanner.New(scanner.Dependencies{
		Storage: backend,
		Logger:  Logger,
		Config:  scanCfg,
	})
	if err != nil {
		return err
	}

	paths, err := scanner.ExpandPaths(args)
	if err != nil {
		return err
	}
	Logger.Debug("Scanning files", "count", len(paths), "workers", scanCfg.Workers)

	start := time.Now()
	results, err := s.ScanPaths(ctx, paths)
	if err != nil {
		return err
	}
	rep := newScanReport(results, time.Since(start))
	if err := writeReport(cmd.OutOrStdout(), rep, scanFormat); err != nil {
		return err
	}

	if rep.Summary.Errors > 0 {
		return fmt.Errorf("%d of %d files could not be read or saved", rep.Summary.Errors, rep.Summary.Files)
	}
	return nil
}

func closeStorage(b storage.Backend) {
	if err := b.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
	if e, ok := b.(storage.Exportable); ok {
		if path := e.GetExportedFilePath(); path != "" {
			Logger.Info("Exported scans", "path", path)
		}
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
