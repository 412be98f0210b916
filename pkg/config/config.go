// Package config loads blocksync's static configuration: the Index Store
// backend, logging behavior, and the metrics endpoint. Grounded on the
// teacher's pkg/config/config.go (viper + mapstructure, env-var precedence
// over file over defaults), trimmed to the settings this system actually
// has — there is no per-request routing, share, or adapter configuration to
// carry over, and chunking parameters are fixed (spec §6), not configurable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/blocksync/internal/bytesize"
	"github.com/marmos91/blocksync/pkg/index"
)

// Config is blocksync's static configuration.
//
// When a configuration file is found, environment variables (BLOCKSYNC_*)
// override the keys present in that file, and built-in defaults fill the
// fields left empty. Environment variables for keys absent from the file are
// not read, and without a configuration file the environment is not read at
// all.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Index configures the Index Store backend this process opens.
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	// Metrics controls the Prometheus metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the output encoding: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// IndexConfig selects and parameterizes the Index Store (pkg/index.Config).
type IndexConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// SQLitePath is the backing file for BackendSQLite; ":memory:" selects an
	// in-memory, process-local store. Validation rejects an empty path when
	// the backend is sqlite.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`

	// Postgres carries connection parameters for BackendPostgres.
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`

	// LargeFileThreshold is the file size above which the File Indexer logs
	// its per-file chunk count at Info instead of Debug, so operators
	// tailing production logs at Info see progress on large files without
	// being flooded by every small one. Supports human-readable sizes:
	// "64Mi", "100MB". Default: 64Mi.
	LargeFileThreshold bytesize.ByteSize `mapstructure:"large_file_threshold" yaml:"large_file_threshold,omitempty"`
}

// PostgresConfig mirrors index.PostgresConfig for file-based configuration.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host,omitempty"`
	Port         int    `mapstructure:"port" yaml:"port,omitempty"`
	Database     string `mapstructure:"database" yaml:"database,omitempty"`
	User         string `mapstructure:"user" yaml:"user,omitempty"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"ssl_mode" yaml:"ssl_mode,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port serving /metrics.
	Port int `mapstructure:"port" yaml:"port,omitempty"`
}

// IndexStoreConfig converts cfg.Index into the pkg/index.Config the
// Index Store's Open function accepts.
func (cfg *Config) IndexStoreConfig() index.Config {
	backend := index.BackendSQLite
	if strings.EqualFold(cfg.Index.Backend, "postgres") {
		backend = index.BackendPostgres
	}
	return index.Config{
		Backend: backend,
		SQLite:  index.SQLiteConfig{Path: cfg.Index.SQLitePath},
		Postgres: index.PostgresConfig{
			Host:         cfg.Index.Postgres.Host,
			Port:         cfg.Index.Postgres.Port,
			Database:     cfg.Index.Postgres.Database,
			User:         cfg.Index.Postgres.User,
			Password:     cfg.Index.Postgres.Password,
			SSLMode:      cfg.Index.Postgres.SSLMode,
			MaxOpenConns: cfg.Index.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Index.Postgres.MaxIdleConns,
		},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// configPath == "" searches the default location
// ($XDG_CONFIG_HOME/blocksync/config.yaml). If no file is found, Load
// returns the built-in defaults without reading the environment and
// without validating them.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := defaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path in YAML, mirroring the teacher's
// SaveConfig (restrictive permissions: Postgres credentials may live here).
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "sqlite"
	}
	if cfg.Index.LargeFileThreshold == 0 {
		cfg.Index.LargeFileThreshold = 64 * bytesize.MiB
	}
	if cfg.Index.Backend == "postgres" {
		if cfg.Index.Postgres.Port == 0 {
			cfg.Index.Postgres.Port = 5432
		}
		if cfg.Index.Postgres.SSLMode == "" {
			cfg.Index.Postgres.SSLMode = "disable"
		}
		if cfg.Index.Postgres.MaxOpenConns == 0 {
			cfg.Index.Postgres.MaxOpenConns = 25
		}
		if cfg.Index.Postgres.MaxIdleConns == 0 {
			cfg.Index.Postgres.MaxIdleConns = 5
		}
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func validate(cfg *Config) error {
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	switch strings.ToLower(cfg.Index.Backend) {
	case "sqlite":
		if cfg.Index.SQLitePath == "" {
			return fmt.Errorf("index.sqlite_path is required when index.backend is sqlite (use \":memory:\" for an ephemeral store)")
		}
	case "postgres":
		if cfg.Index.Postgres.Database == "" {
			return fmt.Errorf("index.postgres.database is required when index.backend is postgres")
		}
	default:
		return fmt.Errorf("index.backend must be sqlite or postgres, got %q", cfg.Index.Backend)
	}
	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", cfg.Metrics.Port)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BLOCKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook lets config files spell sizes as "64Mi", "100MB", or a
// plain byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "blocksync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "blocksync")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}
