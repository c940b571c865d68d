package main

import (
	"github.com/spf13/cobra"

	"github.com/WCArena/pudscan/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan map files as they land in the upload directory",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	scanCfg, err := config.GetScanConfig()
	if err != nil {
		return err
	}
	backend, err := initStorage()
	if err != nil {
		return err
	}
	defer closeStorage(backend)

	s, err := newScanner(scanCfg, backend)
	if err != nil {
		return err
	}
	monitorService := startMonitor(s)
	defer monitorService.Stop()

	w, err := newWatcher(s)
	if err != nil {
		return err
	}
	if err := w.Run(ctx); err != nil {
		return err
	}
	Logger.Info("Watcher stopped", "summary", monitorService.GetStatus().Summary)
	return nil
}
