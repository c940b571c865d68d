package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/WCArena/pudscan/internal/api"
	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/monitor"
	"github.com/WCArena/pudscan/internal/scanner"
	"github.com/WCArena/pudscan/internal/storage"
	"github.com/WCArena/pudscan/internal/watch"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the map upload API",
	Long: `Serve accepts map uploads over HTTP, scans them and persists the results.
With --watch the upload directory watcher runs in the same process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also watch watch.dir for new map files")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	apiCfg, err := config.GetAPIConfig()
	if err != nil {
		return err
	}
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

	server := api.NewServer(api.Dependencies{
		Scanner:     s,
		Finder:      finderFor(viper.GetString("storage.type"), backend),
		Status:      monitorService,
		Logger:      Logger,
		Config:      apiCfg,
		MaxFileSize: scanCfg.MaxFileSize,
	})

	var w *watch.Watcher
	if serveWatch {
		if w, err = newWatcher(s); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	Logger.Info("pudscan serving", "version", Version, "addr", apiCfg.ListenAddr, "watch", serveWatch)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve stopped: %w", err)
	}
	Logger.Info("pudscan stopped", "summary", monitorService.GetStatus().Summary)
	return nil
}

func newScanner(cfg config.ScanConfig, backend storage.Backend) (*scanner.Scanner, error) {
	return scanner.New(scanner.Dependencies{
		Storage: backend,
		Meter:   meter("github.com/WCArena/pudscan/internal/scanner"),
		Logger:  Logger,
		Config:  cfg,
	})
}

func newWatcher(s *scanner.Scanner) (*watch.Watcher, error) {
	watchCfg, err := config.GetWatchConfig()
	if err != nil {
		return nil, err
	}
	return watch.New(watchCfg, s, Logger, meter("github.com/WCArena/pudscan/internal/dispatcher"))
}

func startMonitor(s *scanner.Scanner) *monitor.Service {
	m := monitor.NewService(monitor.Dependencies{
		Scanner:   s,
		Logger:    Logger,
		StatusDir: viper.GetString("logsDir"),
		Interval:  config.GetDuration("watch.statusInterval"),
	})
	if err := m.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}
	return m
}

// meter returns nil without a provider so callers fall back to the global
// meter.
func meter(name string) metric.Meter {
	if OTelProvider == nil {
		return nil
	}
	return OTelProvider.Meter(name)
}
