package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/logging"
	intOtel "github.com/WCArena/pudscan/internal/otel"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "pudscan"
)

// file paths
var (
	// ConfigDir holds pudscan.cfg.json and an optional .env file.
	ConfigDir string

	LogFilePath string
	LogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	graylogSink io.Writer
)

var rootCmd = &cobra.Command{
	Use:   "pudscan",
	Short: "Warcraft II map decoder and strategic analyzer",
	Long: `pudscan decodes Warcraft II PUD map files, derives a strategic analysis
for each map and persists the results to the configured storage backend.`,
	Version:           fmt.Sprintf("%s (built %s)", Version, BuildDate),
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownRuntime()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigDir, "config", "c", ".", "Directory containing "+config.FileName)
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-file", false, "Also write logs to a session file in logsDir")
	rootCmd.PersistentFlags().Bool("debug-trace", false, "Log chunk-level decode traces")

	rootCmd.AddCommand(scanCmd, serveCmd, watchCmd, uploadCmd, dbCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupRuntime(cmd *cobra.Command, args []string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(ConfigDir); err != nil {
		return err
	}
	bindFlag(cmd, "logLevel", "log-level")
	bindFlag(cmd, "logToFile", "log-file")
	bindFlag(cmd, "debugTrace", "debug-trace")

	if viper.GetBool("logToFile") {
		if err := openLogFile(); err != nil {
			Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		}
	}

	otelCfg, err := config.GetOTelConfig()
	if err != nil {
		return err
	}
	var otelLogProvider *sdklog.LoggerProvider
	if otelCfg.Enabled {
		if LogFile == nil {
			return fmt.Errorf("otel.enabled requires --log-file")
		}
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize otel: %w", err)
		}
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	var sinks []io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"), AppName)
		if err != nil {
			Logger.Warn("Failed to connect to Graylog", "error", err)
		} else {
			graylogSink = w
			sinks = append(sinks, w)
		}
	}

	var file io.Writer
	if LogFile != nil {
		file = LogFile
	}
	session := SessionStartTime.Format("20060102_150405")
	SlogManager.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String("session", session)}
	})
	SlogManager.Setup(file, viper.GetString("logLevel"), otelLogProvider, sinks...)
	Logger = SlogManager.Logger()
	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFilePath)
	}
	return nil
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		viper.Set(key, f.Value.String())
	}
}

func openLogFile() error {
	f, path, err := logging.OpenSessionLog(viper.GetString("logsDir"), AppName, SessionStartTime)
	LogFilePath = path
	if err != nil {
		return err
	}
	LogFile = f
	return nil
}

func shutdownRuntime() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down otel provider", "error", err)
		}
	}
	if SlogManager != nil {
		_ = SlogManager.Flush(ctx)
	}
	if c, ok := graylogSink.(io.Closer); ok {
		c.Close()
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// logsPath places a file under the configured logs directory.
func logsPath(name string) string {
	return filepath.Join(viper.GetString("logsDir"), name)
}
