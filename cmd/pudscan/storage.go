package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/influx"
	"github.com/WCArena/pudscan/internal/logging"
	"github.com/WCArena/pudscan/internal/storage"
	"github.com/WCArena/pudscan/internal/storage/memory"
	pgstorage "github.com/WCArena/pudscan/internal/storage/postgres"
	sqlitestorage "github.com/WCArena/pudscan/internal/storage/sqlite"
	wsstorage "github.com/WCArena/pudscan/internal/storage/websocket"
)

const influxBackupFile = "influx_backup.lp"

// initStorage builds the configured backend, adds the InfluxDB sink when
// enabled and initializes everything.
func initStorage() (*storage.Multi, error) {
	storageCfg, err := config.GetStorageConfig()
	if err != nil {
		return nil, err
	}
	primary, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}

	var sinks []storage.Backend
	influxCfg, err := config.GetInfluxConfig()
	if err != nil {
		return nil, err
	}
	if influxCfg.Enabled {
		var out io.Writer
		if LogFile != nil {
			out = LogFile
		}
		if err := os.MkdirAll(viper.GetString("logsDir"), 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs dir: %w", err)
		}
		zlog := logging.NewZerolog(out, viper.GetString("logLevel"), "influx")
		sinks = append(sinks, influx.NewManager(influxCfg, zlog, logsPath(influxBackupFile)))
		Logger.Info("InfluxDB sink enabled", "host", influxCfg.Host, "bucket", influxCfg.Bucket)
	}

	backend := storage.NewMulti(primary, sinks...)
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized", "host", storageCfg.DB.Host)
		return pgstorage.New(storageCfg.DB, Logger), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "websocket":
		wsURL := httpToWS(viper.GetString("api.serverUrl"))
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: viper.GetString("api.apiKey"),
		}, Logger), nil

	default:
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil
	}
}

// finderFor returns s unless the primary backend cannot look scans up.
func finderFor(storageType string, s storage.Finder) storage.Finder {
	if storageType == "websocket" {
		return nil
	}
	return s
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
