package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "pudscan.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. PUDSCAN_SCAN_WORKERS.
const EnvPrefix = "PUDSCAN"

var validate = validator.New(validator.WithRequiredStructEnabled())

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir" validate:"required"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval" validate:"gte=0"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required,numeric"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" validate:"required"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type" validate:"oneof=memory sqlite postgres websocket"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	DB     DBConfig     `json:"-" mapstructure:"-" validate:"-"`
}

// OTelConfig holds OpenTelemetry log export settings
type OTelConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ServiceName  string        `mapstructure:"serviceName" validate:"required"`
	BatchTimeout time.Duration `mapstructure:"batchTimeout" validate:"gt=0"`
	Endpoint     string        `mapstructure:"endpoint"`
	Insecure     bool          `mapstructure:"insecure"`
}

// ScanConfig controls the scanner pipeline
type ScanConfig struct {
	Workers     int   `mapstructure:"workers" validate:"min=1,max=256"`
	MaxFileSize int64 `mapstructure:"maxFileSize" validate:"gt=0"`
	CacheSize   int   `mapstructure:"cacheSize" validate:"gte=0"`
	DebugTrace  bool  `mapstructure:"-"`
}

// WatchConfig controls the upload directory watcher
type WatchConfig struct {
	Dir          string        `mapstructure:"dir" validate:"required"`
	Settle       time.Duration `mapstructure:"settle" validate:"gt=0"`
	QueueSize    int           `mapstructure:"queueSize" validate:"min=1"`
	ScanExisting bool          `mapstructure:"scanExisting"`
}

// APIConfig holds the upload API and the websocket sink settings
type APIConfig struct {
	ListenAddr string        `mapstructure:"listenAddr" validate:"required"`
	APIKey     string        `mapstructure:"apiKey"`
	RateLimit  int64         `mapstructure:"rateLimit" validate:"gt=0"`
	RateWindow time.Duration `mapstructure:"rateWindow" validate:"gt=0"`
	ServerURL  string        `mapstructure:"serverUrl" validate:"omitempty,url"`
}

// InfluxConfig holds InfluxDB metrics sink settings
type InfluxConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     string `mapstructure:"port" validate:"required_if=Enabled true"`
	Protocol string `mapstructure:"protocol" validate:"oneof=http https"`
	Token    string `mapstructure:"token"`
	Org      string `mapstructure:"org"`
	Bucket   string `mapstructure:"bucket" validate:"required_if=Enabled true"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file and an optional .env
// file. A missing config file is not an error; a malformed one is.
func Load(configDir string) error {
	setDefaults()

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pudlogs")
	viper.SetDefault("logToFile", false)
	viper.SetDefault("debugTrace", false)

	viper.SetDefault("scan.workers", 4)
	viper.SetDefault("scan.maxFileSize", 1<<20)
	viper.SetDefault("scan.cacheSize", 256)

	viper.SetDefault("watch.dir", "./incoming")
	viper.SetDefault("watch.settle", "500ms")
	viper.SetDefault("watch.queueSize", 64)
	viper.SetDefault("watch.scanExisting", true)
	viper.SetDefault("watch.statusInterval", "10s")

	viper.SetDefault("api.listenAddr", ":8080")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.rateLimit", 60)
	viper.SetDefault("api.rateWindow", "1m")
	viper.SetDefault("api.serverUrl", "ws://localhost:5000/ws")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "pudscan")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "wcarena")
	viper.SetDefault("influx.bucket", "pudscan")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./scans")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./pudscan.db")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "pudscan")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the validated storage backend settings.
func GetStorageConfig() (StorageConfig, error) {
	cfg := StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid storage config: %w", err)
	}
	if cfg.Type == "postgres" {
		if err := validate.Struct(cfg.DB); err != nil {
			return cfg, fmt.Errorf("invalid db config: %w", err)
		}
	}
	return cfg, nil
}

// GetOTelConfig returns the validated OpenTelemetry settings.
func GetOTelConfig() (OTelConfig, error) {
	cfg := OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid otel config: %w", err)
	}
	return cfg, nil
}

// GetScanConfig returns the validated scanner settings.
func GetScanConfig() (ScanConfig, error) {
	cfg := ScanConfig{
		Workers:     viper.GetInt("scan.workers"),
		MaxFileSize: viper.GetInt64("scan.maxFileSize"),
		CacheSize:   viper.GetInt("scan.cacheSize"),
		DebugTrace:  viper.GetBool("debugTrace"),
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid scan config: %w", err)
	}
	return cfg, nil
}

// GetWatchConfig returns the validated directory watcher settings.
func GetWatchConfig() (WatchConfig, error) {
	cfg := WatchConfig{
		Dir:          viper.GetString("watch.dir"),
		Settle:       viper.GetDuration("watch.settle"),
		QueueSize:    viper.GetInt("watch.queueSize"),
		ScanExisting: viper.GetBool("watch.scanExisting"),
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid watch config: %w", err)
	}
	return cfg, nil
}

// GetAPIConfig returns the validated upload API settings.
func GetAPIConfig() (APIConfig, error) {
	cfg := APIConfig{
		ListenAddr: viper.GetString("api.listenAddr"),
		APIKey:     viper.GetString("api.apiKey"),
		RateLimit:  viper.GetInt64("api.rateLimit"),
		RateWindow: viper.GetDuration("api.rateWindow"),
		ServerURL:  viper.GetString("api.serverUrl"),
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid api config: %w", err)
	}
	return cfg, nil
}

// GetInfluxConfig returns the validated InfluxDB settings.
func GetInfluxConfig() (InfluxConfig, error) {
	cfg := InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid influx config: %w", err)
	}
	return cfg, nil
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
