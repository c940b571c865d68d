package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
}

// load resets viper after the test and loads a temp dir whose config file
// holds body. An empty body means no config file.
func load(t *testing.T, body string) {
	t.Helper()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	if body != "" {
		writeConfig(t, dir, body)
	}
	require.NoError(t, Load(dir))
}

func TestLoad_FileValues(t *testing.T) {
	load(t, `{
		"logLevel": "debug",
		"scan": { "workers": 8 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, 8, GetInt("scan.workers"))
	assert.Equal(t, "10.0.0.1", GetString("db.host"))
	assert.Equal(t, "5433", GetString("db.port"))
	assert.Equal(t, 256, GetInt("scan.cacheSize"), "unset keys keep defaults")
}

func TestLoad_Defaults(t *testing.T) {
	load(t, "")

	want := map[string]any{
		"logLevel":                      "info",
		"logsDir":                       "./pudlogs",
		"logToFile":                     false,
		"debugTrace":                    false,
		"scan.workers":                  4,
		"scan.maxFileSize":              1 << 20,
		"scan.cacheSize":                256,
		"api.listenAddr":                ":8080",
		"api.serverUrl":                 "ws://localhost:5000/ws",
		"db.host":                       "localhost",
		"db.port":                       "5432",
		"db.database":                   "pudscan",
		"influx.enabled":                false,
		"influx.bucket":                 "pudscan",
		"graylog.enabled":               false,
		"graylog.address":               "localhost:12201",
		"storage.type":                  "memory",
		"storage.memory.outputDir":      "./scans",
		"storage.memory.compressOutput": true,
		"storage.sqlite.dumpInterval":   "3m",
		"otel.enabled":                  false,
		"otel.serviceName":              "pudscan",
		"otel.batchTimeout":             "5s",
		"otel.insecure":                 true,
	}
	for key, v := range want {
		switch v := v.(type) {
		case string:
			assert.Equal(t, v, GetString(key), key)
		case int:
			assert.Equal(t, v, GetInt(key), key)
		case bool:
			assert.Equal(t, v, GetBool(key), key)
		}
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	writeConfig(t, dir, `{"logLevel": `)

	assert.ErrorContains(t, Load(dir), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PUDSCAN_SCAN_WORKERS", "12")
	load(t, `{"scan": {"workers": 2}}`)

	cfg, err := GetScanConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Workers)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Cleanup(func() { os.Unsetenv("PUDSCAN_LOGLEVEL") })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PUDSCAN_LOGLEVEL=warn\n"), 0644))
	require.NoError(t, Load(dir))

	assert.Equal(t, "warn", GetString("logLevel"))
}

func TestGetDuration(t *testing.T) {
	load(t, "")
	assert.Equal(t, 3*time.Minute, GetDuration("storage.sqlite.dumpInterval"))

	viper.Set("storage.sqlite.dumpInterval", "soon")
	assert.Zero(t, GetDuration("storage.sqlite.dumpInterval"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	load(t, "")

	cfg, err := GetStorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./scans", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "./pudscan.db", cfg.SQLite.DumpPath)
}

func TestGetStorageConfig_Override(t *testing.T) {
	load(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/maps.db" }
		}
	}`)

	cfg, err := GetStorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, "/tmp/out", cfg.Memory.OutputDir)
	assert.Equal(t, false, cfg.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/maps.db", cfg.SQLite.DumpPath)
}

func TestGetStorageConfig_Invalid(t *testing.T) {
	load(t, "")

	viper.Set("storage.type", "mongodb")
	_, err := GetStorageConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage config")

	viper.Set("storage.type", "postgres")
	viper.Set("db.port", "not-a-port")
	_, err = GetStorageConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid db config")
}

func TestGetScanConfig_Invalid(t *testing.T) {
	load(t, "")

	viper.Set("scan.workers", 0)
	_, err := GetScanConfig()
	require.Error(t, err)
}

func TestGetOTelConfig(t *testing.T) {
	load(t, "")

	cfg, err := GetOTelConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "pudscan", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.True(t, cfg.Insecure)

	viper.Set("otel.serviceName", "")
	_, err = GetOTelConfig()
	require.Error(t, err)
}

func TestGetAPIConfig(t *testing.T) {
	load(t, "")

	cfg, err := GetAPIConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, int64(60), cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Equal(t, "ws://localhost:5000/ws", cfg.ServerURL)
}

func TestGetInfluxConfig(t *testing.T) {
	load(t, "")

	cfg, err := GetInfluxConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "http", cfg.Protocol)

	viper.Set("influx.protocol", "udp")
	_, err = GetInfluxConfig()
	require.Error(t, err)
}

func TestGetWatchConfig(t *testing.T) {
	load(t, "")

	cfg, err := GetWatchConfig()
	require.NoError(t, err)
	assert.Equal(t, "./incoming", cfg.Dir)
	assert.Equal(t, 500*time.Millisecond, cfg.Settle)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.True(t, cfg.ScanExisting)

	viper.Set("watch.queueSize", 0)
	_, err = GetWatchConfig()
	require.Error(t, err)
}
